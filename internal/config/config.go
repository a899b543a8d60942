// Package config loads hardcopy settings from built-in defaults, a TOML
// file, HARDCOPY_ environment variables and command-line overrides, in
// that order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/transfer"
	"github.com/yuya-takeyama/hardcopy/pkg/validator"
)

const (
	// DefaultFile is read from the working directory when no config file is
	// named explicitly.
	DefaultFile = ".hardcopy.toml"

	envPrefix = "HARDCOPY_"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

type Config struct {
	Algorithm     string        `koanf:"algorithm"`
	Engine        string        `koanf:"engine"`
	Workers       int           `koanf:"workers"`
	MaxAttempts   int           `koanf:"max_attempts"`
	ReuseExisting bool          `koanf:"reuse_existing"`
	Tool          ToolConfig    `koanf:"tool"`
	Exclude       ExcludeConfig `koanf:"exclude"`
	AWS           AWSConfig     `koanf:"aws"`
}

type ToolConfig struct {
	Name       string   `koanf:"name"`
	Executable string   `koanf:"executable"`
	Args       []string `koanf:"args"`
	ShowOutput bool     `koanf:"show_output"`
}

type ExcludeConfig struct {
	Files  []string `koanf:"files"`
	Dirs   []string `koanf:"dirs"`
	Ignore []string `koanf:"ignore"`
}

type AWSConfig struct {
	Profile           string `koanf:"profile"`
	Region            string `koanf:"region"`
	MaxRetries        int    `koanf:"max_retries"`
	UploadConcurrency int    `koanf:"upload_concurrency"`
	PartConcurrency   int    `koanf:"part_concurrency"`
	SkipUnchanged     bool   `koanf:"skip_unchanged"`
}

// Load builds the configuration. path names a config file that must exist;
// when empty, DefaultFile is used if present. overrides are dotted keys
// such as "tool.name" and take precedence over everything else.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	// 1. Built-in defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, hcerrors.Wrap(err, hcerrors.ErrConfigLoad, "failed to load defaults")
	}

	// 2. Config file
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, hcerrors.Wrapf(err, hcerrors.ErrConfigLoad, "failed to load config from %s", path).
				WithDetail("path", path)
		}
	}

	// 3. Environment
	err := k.Load(env.Provider(envPrefix, ".", envKey), nil)
	if err != nil {
		return nil, hcerrors.Wrap(err, hcerrors.ErrConfigLoad, "failed to load env vars")
	}

	// 4. Flags
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, hcerrors.Wrap(err, hcerrors.ErrConfigLoad, "failed to load overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, hcerrors.Wrap(err, hcerrors.ErrConfigLoad, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HARDCOPY_TOOL__NAME to tool.name. A single underscore stays
// part of the key, so HARDCOPY_MAX_ATTEMPTS is max_attempts.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Validate checks every setting and fills in the platform default tool.
func (c *Config) Validate() error {
	alg, err := checksum.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return invalid(err, "algorithm")
	}
	c.Algorithm = string(alg)

	kind, err := validator.ParseKind(c.Engine)
	if err != nil {
		return invalid(err, "engine")
	}
	c.Engine = string(kind)

	if c.Tool.Name == "" {
		c.Tool.Name = transfer.DefaultToolName()
	}
	if _, err := transfer.LookupTool(c.Tool.Name); err != nil {
		return invalid(err, "tool.name")
	}
	if err := transfer.ValidateArgs(c.Tool.Args); err != nil {
		return invalid(err, "tool.args")
	}

	switch {
	case c.Workers < 0:
		return invalid(fmt.Errorf("must not be negative: %d", c.Workers), "workers")
	case c.MaxAttempts < 1:
		return invalid(fmt.Errorf("must be at least 1: %d", c.MaxAttempts), "max_attempts")
	case c.AWS.MaxRetries < 0:
		return invalid(fmt.Errorf("must not be negative: %d", c.AWS.MaxRetries), "aws.max_retries")
	case c.AWS.UploadConcurrency < 1:
		return invalid(fmt.Errorf("must be at least 1: %d", c.AWS.UploadConcurrency), "aws.upload_concurrency")
	case c.AWS.PartConcurrency < 1:
		return invalid(fmt.Errorf("must be at least 1: %d", c.AWS.PartConcurrency), "aws.part_concurrency")
	}
	return nil
}

func invalid(err error, key string) error {
	return hcerrors.Wrapf(err, hcerrors.ErrConfigInvalid, "invalid %s", key).WithDetail("key", key)
}
