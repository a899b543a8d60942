package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
)

// chdir moves into dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "crc32c", cfg.Algorithm)
	assert.Equal(t, "concurrent", cfg.Engine)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.False(t, cfg.ReuseExisting)
	assert.Empty(t, cfg.Tool.Args)
	assert.Equal(t, 5, cfg.AWS.MaxRetries)
	assert.Equal(t, 32, cfg.AWS.UploadConcurrency)
	assert.Equal(t, 5, cfg.AWS.PartConcurrency)
	assert.True(t, cfg.AWS.SkipUnchanged)

	if runtime.GOOS == "windows" {
		assert.Equal(t, "robocopy", cfg.Tool.Name)
	} else {
		assert.Equal(t, "rsync", cfg.Tool.Name)
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeConfig(t, dir, DefaultFile, `
algorithm = "SHA256"
max_attempts = 5

[tool]
name = "robocopy"
args = ["/E", "/R:2"]

[exclude]
files = ["*.tmp"]
`)

	t.Setenv("HARDCOPY_MAX_ATTEMPTS", "7")
	t.Setenv("HARDCOPY_EXCLUDE__DIRS", ".git,node_modules")
	t.Setenv("HARDCOPY_AWS__REGION", "ap-northeast-1")

	cfg, err := Load("", map[string]interface{}{
		"engine":     "serial",
		"aws.region": "us-west-2",
	})
	require.NoError(t, err)

	assert.Equal(t, "sha256", cfg.Algorithm)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, "serial", cfg.Engine)
	assert.Equal(t, "robocopy", cfg.Tool.Name)
	assert.Equal(t, []string{"/E", "/R:2"}, cfg.Tool.Args)
	assert.Equal(t, []string{"*.tmp"}, cfg.Exclude.Files)
	assert.Equal(t, []string{".git", "node_modules"}, cfg.Exclude.Dirs)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
}

func TestLoadExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, t.TempDir(), "custom.toml", "reuse_existing = true\nworkers = 4\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.True(t, cfg.ReuseExisting)
	assert.Equal(t, 4, cfg.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.True(t, hcerrors.IsErrorCode(err, hcerrors.ErrConfigLoad))
}

func TestLoadMalformedFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, t.TempDir(), "broken.toml", "algorithm = \n")

	_, err := Load(path, nil)
	assert.True(t, hcerrors.IsErrorCode(err, hcerrors.ErrConfigLoad))
}

func TestLoadInvalid(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name     string
		override map[string]interface{}
		key      string
	}{
		{"unknown algorithm", map[string]interface{}{"algorithm": "adler32"}, "algorithm"},
		{"unknown engine", map[string]interface{}{"engine": "parallel"}, "engine"},
		{"unknown tool", map[string]interface{}{"tool.name": "xcopy"}, "tool.name"},
		{"bad tool arg", map[string]interface{}{"tool.args": []string{"ok", ""}}, "tool.args"},
		{"zero attempts", map[string]interface{}{"max_attempts": 0}, "max_attempts"},
		{"negative workers", map[string]interface{}{"workers": -1}, "workers"},
		{"no upload concurrency", map[string]interface{}{"aws.upload_concurrency": 0}, "aws.upload_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.override)
			require.Error(t, err)
			assert.True(t, hcerrors.IsErrorCode(err, hcerrors.ErrConfigInvalid), err.Error())
			assert.Equal(t, tt.key, hcerrors.GetErrorDetails(err)["key"])
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "max_attempts", envKey("HARDCOPY_MAX_ATTEMPTS"))
	assert.Equal(t, "tool.show_output", envKey("HARDCOPY_TOOL__SHOW_OUTPUT"))
	assert.Equal(t, "aws.upload_concurrency", envKey("HARDCOPY_AWS__UPLOAD_CONCURRENCY"))
}
