// Package preflight verifies that a transfer tool can run before any copy
// is attempted.
package preflight

import (
	"context"
	"errors"
	"runtime"

	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/executor"
)

// Spec describes how to probe a tool.
type Spec struct {
	// Name is the executable, looked up on PATH unless it is a path.
	Name string
	// HelpArgs make the tool print its usage and exit.
	HelpArgs []string
	// HelpExitCode is the exit status the help invocation must return.
	HelpExitCode int
	// Platform is the GOOS the tool ships with, "" if any.
	Platform string
}

// Checker runs preflight probes.
type Checker struct {
	runner executor.Runner
	goos   string
}

func NewChecker(runner executor.Runner) *Checker {
	return &Checker{runner: runner, goos: runtime.GOOS}
}

// AssertAvailable checks spec with a default command runner.
func AssertAvailable(ctx context.Context, spec Spec) error {
	return NewChecker(executor.New(nil)).AssertAvailable(ctx, spec)
}

// AssertAvailable runs the tool's help invocation with output discarded.
func (c *Checker) AssertAvailable(ctx context.Context, spec Spec) error {
	if spec.Name == "" {
		return hcerrors.New(hcerrors.ErrInvalidInput, "no tool name given")
	}

	res, err := c.runner.Run(ctx, spec.Name, spec.HelpArgs)
	if err != nil {
		if !errors.Is(err, executor.ErrNotFound) {
			return err
		}
		if spec.Platform != "" && spec.Platform != c.goos {
			return hcerrors.Wrapf(err, hcerrors.ErrPlatformUnsupported,
				"%s is only available on %s: running on %s", spec.Name, spec.Platform, c.goos).
				WithDetail("tool", spec.Name)
		}
		return hcerrors.Wrapf(err, hcerrors.ErrToolNotFound, "%s could not be found in PATH", spec.Name).
			WithDetail("tool", spec.Name)
	}

	if res.ExitCode != spec.HelpExitCode {
		return hcerrors.Newf(hcerrors.ErrUnexpectedExitStatus,
			"%s: expected exit status %d from help invocation, got %d", spec.Name, spec.HelpExitCode, res.ExitCode).
			WithDetail("tool", spec.Name).
			WithDetail("exitCode", res.ExitCode)
	}

	return nil
}
