// Package executor runs external commands and reports their exit status.
// A non-zero exit status is not an error at this level; callers decide
// which codes mean success.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when the executable cannot be started because it
// does not exist.
var ErrNotFound = errors.New("executable not found")

// Result holds the outcome of one command execution
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior
type Options struct {
	// Capture keeps stdout and stderr in the Result.
	Capture bool
	// Stdout and Stderr receive the output as it is produced.
	Stdout     io.Writer
	Stderr     io.Writer
	WorkingDir string
	// Env is appended to the current environment.
	Env map[string]string
}

// Option is a function that modifies Options
type Option func(*Options)

// WithCapture keeps the command output in the Result
func WithCapture() Option {
	return func(o *Options) {
		o.Capture = true
	}
}

// WithOutput streams the command output to stdout and stderr
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		o.Stdout = stdout
		o.Stderr = stderr
	}
}

// WithWorkingDir sets the working directory
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnvVar adds a single environment variable
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// CommandRunner runs commands with os/exec.
type CommandRunner struct {
	log zerolog.Logger
}

// New creates a CommandRunner. A nil logger disables command logging.
func New(logger *zerolog.Logger) *CommandRunner {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &CommandRunner{log: l}
}

func (r *CommandRunner) Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = writerFor(options.Capture, &stdoutBuf, options.Stdout)
	cmd.Stderr = writerFor(options.Capture, &stderrBuf, options.Stderr)

	r.log.Debug().Str("command", name).Strs("args", args).Msg("Executing command")

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", name, ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		result.ExitCode = -1
		return result, fmt.Errorf("%w: %s: %w", ErrNotFound, name, err)
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("command execution failed: %w", err)
	}

	r.log.Debug().
		Str("command", name).
		Int("exitCode", result.ExitCode).
		Dur("duration", result.Duration).
		Msg("Command finished")

	return result, nil
}

// writerFor returns nil when output is neither captured nor streamed, which
// makes os/exec discard it.
func writerFor(capture bool, buf *bytes.Buffer, stream io.Writer) io.Writer {
	var writers []io.Writer
	if capture {
		writers = append(writers, buf)
	}
	if stream != nil {
		writers = append(writers, stream)
	}
	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	}
	return io.MultiWriter(writers...)
}
