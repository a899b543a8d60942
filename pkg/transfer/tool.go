// Package transfer moves bytes from a source to a destination. It never
// checks the result; validation is the caller's job.
package transfer

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/preflight"
)

const (
	ToolRobocopy = "robocopy"
	ToolRsync    = "rsync"
)

// CommandOptions are the caller-supplied parts of a tool invocation.
type CommandOptions struct {
	// Args are passed through to the tool unchanged.
	Args []string
	// ExcludeFiles and ExcludeDirs are base-name wildcards.
	ExcludeFiles []string
	ExcludeDirs  []string
}

// Tool is the invocation profile of an external copy program.
type Tool struct {
	Name string
	// Executable overrides the program that is run, Name by default.
	Executable   string
	Platform     string
	HelpArgs     []string
	HelpExitCode int
	// FailureExitCode is the lowest exit status that means the copy failed.
	FailureExitCode int

	build func(src, dest string, srcIsDir bool, opts CommandOptions) ([]string, error)
}

// Robocopy copies with eight threads. Its exit status is a bit field where
// values below 8 report success.
func Robocopy() Tool {
	return Tool{
		Name:            ToolRobocopy,
		Platform:        "windows",
		HelpArgs:        []string{"/?"},
		HelpExitCode:    16,
		FailureExitCode: 8,
		build:           robocopyArgs,
	}
}

// Rsync copies in archive mode.
func Rsync() Tool {
	return Tool{
		Name:            ToolRsync,
		HelpArgs:        []string{"--help"},
		HelpExitCode:    0,
		FailureExitCode: 1,
		build:           rsyncArgs,
	}
}

var tools = map[string]func() Tool{
	ToolRobocopy: Robocopy,
	ToolRsync:    Rsync,
}

// ToolNames lists the known tool profiles.
func ToolNames() []string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupTool returns the profile registered under name.
func LookupTool(name string) (Tool, error) {
	newTool, ok := tools[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Tool{}, errors.Newf(errors.ErrInvalidInput, "unknown transfer tool %q (known: %s)",
			name, strings.Join(ToolNames(), ", "))
	}
	return newTool(), nil
}

// DefaultToolName is robocopy on Windows and rsync elsewhere.
func DefaultToolName() string {
	if runtime.GOOS == "windows" {
		return ToolRobocopy
	}
	return ToolRsync
}

func (t Tool) executable() string {
	if t.Executable != "" {
		return t.Executable
	}
	return t.Name
}

// Preflight returns the availability probe for t.
func (t Tool) Preflight() preflight.Spec {
	return preflight.Spec{
		Name:         t.executable(),
		HelpArgs:     t.HelpArgs,
		HelpExitCode: t.HelpExitCode,
		Platform:     t.Platform,
	}
}

// Succeeded reports whether exitCode means the copy went through.
func (t Tool) Succeeded(exitCode int) bool {
	return exitCode >= 0 && exitCode < t.FailureExitCode
}

// Command returns the arguments that copy src to dest.
func (t Tool) Command(src, dest string, opts CommandOptions) ([]string, error) {
	if err := ValidateArgs(opts.Args); err != nil {
		return nil, err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "stat source %s", src)
	}
	return t.build(src, dest, fi.IsDir(), opts)
}

func robocopyArgs(src, dest string, srcIsDir bool, opts CommandOptions) ([]string, error) {
	args := []string{"/mt:8"}
	if srcIsDir {
		args = append(args, src, dest)
	} else {
		// robocopy copies named files between directories and cannot rename
		if filepath.Base(src) != filepath.Base(dest) {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"robocopy cannot rename %s to %s", filepath.Base(src), filepath.Base(dest))
		}
		args = append(args, filepath.Dir(src), filepath.Dir(dest), filepath.Base(src))
	}
	args = append(args, opts.Args...)
	if len(opts.ExcludeFiles) > 0 {
		args = append(args, "/XF")
		args = append(args, opts.ExcludeFiles...)
	}
	if len(opts.ExcludeDirs) > 0 {
		args = append(args, "/XD")
		args = append(args, opts.ExcludeDirs...)
	}
	return args, nil
}

func rsyncArgs(src, dest string, srcIsDir bool, opts CommandOptions) ([]string, error) {
	args := []string{"-a"}
	if srcIsDir {
		// trailing slash copies the contents rather than the directory itself
		args = append(args, strings.TrimRight(src, "/")+"/", dest)
	} else {
		args = append(args, src, dest)
	}
	args = append(args, opts.Args...)
	for _, pattern := range opts.ExcludeFiles {
		args = append(args, "--exclude="+pattern)
	}
	for _, pattern := range opts.ExcludeDirs {
		args = append(args, "--exclude="+strings.TrimRight(pattern, "/")+"/")
	}
	return args, nil
}

// ValidateArgs checks that pass-through options are well-formed text tokens.
func ValidateArgs(args []string) error {
	for i, arg := range args {
		var problem string
		switch {
		case arg == "":
			problem = "is empty"
		case !utf8.ValidString(arg):
			problem = "is not valid UTF-8"
		case strings.ContainsAny(arg, "\x00\n\r"):
			problem = "contains a NUL or newline"
		}
		if problem != "" {
			return errors.Newf(errors.ErrInvalidInput, "tool argument %d %s: %q", i, problem, arg).
				WithDetail("index", i)
		}
	}
	return nil
}
