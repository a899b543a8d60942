package executor

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRun(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name       string
		script     string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{"success", "echo hello", 0, "hello\n", ""},
		{"exit status", "echo oops >&2; exit 3", 3, "", "oops\n"},
		{"robocopy style status", "exit 16", 16, "", ""},
	}

	r := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), "sh", []string{"-c", tt.script}, WithCapture())
			require.NoError(t, err, "a non-zero exit status is not an error")
			assert.Equal(t, tt.wantExit, res.ExitCode)
			assert.Equal(t, tt.wantStdout, res.Stdout)
			assert.Equal(t, tt.wantStderr, res.Stderr)
		})
	}
}

func TestRunNotFound(t *testing.T) {
	r := New(nil)

	_, err := r.Run(context.Background(), "definitely-not-a-real-tool-4711", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunOptions(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	var streamed bytes.Buffer

	res, err := New(nil).Run(context.Background(), "sh", []string{"-c", `echo "$HARDCOPY_TEST" && pwd -P`},
		WithCapture(),
		WithOutput(&streamed, nil),
		WithEnvVar("HARDCOPY_TEST", "value"),
		WithWorkingDir(dir),
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "value", lines[0])
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, lines[1])
	assert.Equal(t, res.Stdout, streamed.String())
}

func TestRunOutputDiscardedByDefault(t *testing.T) {
	skipOnWindows(t)

	res, err := New(nil).Run(context.Background(), "sh", []string{"-c", "echo hidden"})
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)
}

func TestRunCancelled(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := New(nil).Run(ctx, "sh", []string{"-c", "sleep 10"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}
