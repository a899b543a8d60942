package transfer

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/executor"
	"github.com/yuya-takeyama/hardcopy/pkg/preflight"
)

// ToolCopier copies by running an external tool.
type ToolCopier struct {
	tool    Tool
	opts    CommandOptions
	runner  executor.Runner
	checker *preflight.Checker
	stdout  io.Writer
	stderr  io.Writer
	log     zerolog.Logger
}

// ToolCopierOption configures a ToolCopier.
type ToolCopierOption func(*ToolCopier)

// WithToolOutput streams the tool's output, which is discarded otherwise.
func WithToolOutput(stdout, stderr io.Writer) ToolCopierOption {
	return func(c *ToolCopier) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithRunner replaces the command runner.
func WithRunner(runner executor.Runner) ToolCopierOption {
	return func(c *ToolCopier) {
		c.runner = runner
	}
}

// WithLogger sets the logger for tool invocations.
func WithLogger(logger zerolog.Logger) ToolCopierOption {
	return func(c *ToolCopier) {
		c.log = logger
	}
}

func NewToolCopier(tool Tool, opts CommandOptions, options ...ToolCopierOption) (*ToolCopier, error) {
	if err := ValidateArgs(opts.Args); err != nil {
		return nil, err
	}

	c := &ToolCopier{
		tool: tool,
		opts: opts,
		log:  zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	if c.runner == nil {
		c.runner = executor.New(&c.log)
	}
	c.checker = preflight.NewChecker(c.runner)
	return c, nil
}

// Tool returns the profile in use.
func (c *ToolCopier) Tool() Tool {
	return c.tool
}

func (c *ToolCopier) Preflight(ctx context.Context) error {
	return c.checker.AssertAvailable(ctx, c.tool.Preflight())
}

// Copy runs the tool once. A failing exit status is reported as
// TRANSFER_FAILED, a tool that cannot be started as TOOL_NOT_FOUND.
func (c *ToolCopier) Copy(ctx context.Context, src, dest string) error {
	args, err := c.tool.Command(src, dest, c.opts)
	if err != nil {
		return err
	}

	res, err := c.runner.Run(ctx, c.tool.executable(), args, executor.WithOutput(c.stdout, c.stderr))
	if err != nil {
		if errors.Is(err, executor.ErrNotFound) {
			return hcerrors.Wrapf(err, hcerrors.ErrToolNotFound, "start %s", c.tool.Name).
				WithDetail("tool", c.tool.Name)
		}
		return err
	}

	if !c.tool.Succeeded(res.ExitCode) {
		return hcerrors.Newf(hcerrors.ErrTransferFailed, "%s exited with status %d", c.tool.Name, res.ExitCode).
			WithDetail("tool", c.tool.Name).
			WithDetail("exitCode", res.ExitCode).
			WithDetail("source", src).
			WithDetail("destination", dest)
	}

	c.log.Info().
		Str("tool", c.tool.Name).
		Str("source", src).
		Str("destination", dest).
		Int("exitCode", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("Transfer finished")
	return nil
}
