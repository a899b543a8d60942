package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/executor"
)

type fakeRunner struct {
	exitCode int
	err      error
	gotName  string
	gotArgs  []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, _ ...executor.Option) (*executor.Result, error) {
	f.gotName = name
	f.gotArgs = args
	if f.err != nil {
		return &executor.Result{ExitCode: -1}, f.err
	}
	return &executor.Result{ExitCode: f.exitCode}, nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", executor.ErrNotFound, name)
}

func TestAssertAvailable(t *testing.T) {
	robocopy := Spec{Name: "robocopy", HelpArgs: []string{"/?"}, HelpExitCode: 16, Platform: "windows"}

	tests := []struct {
		name     string
		spec     Spec
		goos     string
		runner   *fakeRunner
		wantCode errors.ErrorCode
	}{
		{"available", robocopy, "windows", &fakeRunner{exitCode: 16}, ""},
		{"unexpected exit status", robocopy, "windows", &fakeRunner{exitCode: 0}, errors.ErrUnexpectedExitStatus},
		{"not on path", robocopy, "windows", &fakeRunner{err: notFound("robocopy")}, errors.ErrToolNotFound},
		{"wrong platform", robocopy, "linux", &fakeRunner{err: notFound("robocopy")}, errors.ErrPlatformUnsupported},
		{"any platform tool missing", Spec{Name: "rsync", HelpArgs: []string{"--help"}}, "linux", &fakeRunner{err: notFound("rsync")}, errors.ErrToolNotFound},
		{"empty name", Spec{}, "linux", &fakeRunner{}, errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Checker{runner: tt.runner, goos: tt.goos}
			err := c.AssertAvailable(context.Background(), tt.spec)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.spec.Name, tt.runner.gotName)
				assert.Equal(t, tt.spec.HelpArgs, tt.runner.gotArgs)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
		})
	}
}

func TestAssertAvailableOtherErrorsPassThrough(t *testing.T) {
	c := &Checker{runner: &fakeRunner{err: context.Canceled}, goos: "linux"}
	err := c.AssertAvailable(context.Background(), Spec{Name: "rsync"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssertAvailableRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}

	tool := filepath.Join(t.TempDir(), "fake-robocopy")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n[ \"$1\" = \"/?\" ] && exit 16\nexit 0\n"), 0755))

	err := AssertAvailable(context.Background(), Spec{Name: tool, HelpArgs: []string{"/?"}, HelpExitCode: 16})
	assert.NoError(t, err)

	err = AssertAvailable(context.Background(), Spec{Name: tool, HelpArgs: []string{"--help"}, HelpExitCode: 16})
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnexpectedExitStatus))

	err = AssertAvailable(context.Background(), Spec{Name: "not-robocopy-4711", Platform: runtime.GOOS})
	assert.True(t, errors.IsErrorCode(err, errors.ErrToolNotFound))
}
