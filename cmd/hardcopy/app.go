package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/config"
	"github.com/yuya-takeyama/hardcopy/internal/logging"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/internal/worker"
	"github.com/yuya-takeyama/hardcopy/pkg/hardcopy"
	"github.com/yuya-takeyama/hardcopy/pkg/logger"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
	"github.com/yuya-takeyama/hardcopy/pkg/transfer"
	"github.com/yuya-takeyama/hardcopy/pkg/validator"
)

// app holds what every command builds from flags and configuration.
type app struct {
	cfg    *config.Config
	pool   *worker.Pool
	s3     s3client.Client
	events logger.Logger
}

// flagOverrides maps explicitly set flags to config keys.
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	overrides := map[string]interface{}{}
	flags := cmd.Flags()
	set := func(flag, key string, value interface{}) {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			overrides[key] = value
		}
	}

	set("algorithm", "algorithm", algorithm)
	set("engine", "engine", engine)
	set("workers", "workers", workers)
	set("exclude-file", "exclude.files", excludeFiles)
	set("exclude-dir", "exclude.dirs", excludeDirs)
	set("ignore", "exclude.ignore", ignores)
	set("profile", "aws.profile", profile)
	set("region", "aws.region", region)
	set("max-attempts", "max_attempts", maxAttempts)
	set("reuse-existing", "reuse_existing", reuseExisting)
	set("tool", "tool.name", toolName)
	set("tool-arg", "tool.args", toolArgs)
	set("tool-output", "tool.show_output", toolOutput)
	return overrides
}

// newApp sets up logging and loads configuration. locations are the paths
// the command works on; an S3 client is only created when one of them is
// an s3:// URI.
func newApp(cmd *cobra.Command, locations ...string) (*app, error) {
	logging.SetupLogger(verbosity, quiet)

	cfg, err := config.Load(configFile, flagOverrides(cmd))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if quiet {
		a.events = logger.NewQuietLogger(os.Stderr)
	} else {
		a.events = logger.NewVerboseLogger(logging.GetLogger("hardcopy"))
	}

	for _, location := range locations {
		if s3client.IsURI(location) {
			awsCfg, err := s3client.LoadConfig(cmd.Context(), cfg.AWS.Profile, cfg.AWS.Region)
			if err != nil {
				return nil, err
			}
			a.s3 = s3client.NewAWSClient(awsCfg,
				s3client.WithMaxRetries(cfg.AWS.MaxRetries),
				s3client.WithUploadConcurrency(cfg.AWS.PartConcurrency),
			)
			break
		}
	}

	return a, nil
}

// Close stops the worker pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) walkOptions() walker.Options {
	return walker.Options{
		ExcludeFiles: a.cfg.Exclude.Files,
		ExcludeDirs:  a.cfg.Exclude.Dirs,
		Ignore:       a.cfg.Exclude.Ignore,
	}
}

func (a *app) validator() (validator.Validator, error) {
	kind, err := validator.ParseKind(a.cfg.Engine)
	if err != nil {
		return nil, err
	}
	if kind == validator.KindConcurrent && a.pool == nil {
		a.pool = worker.NewPool(a.cfg.Workers)
	}

	log := logging.GetLogger("validator")
	return validator.New(kind, a.pool, validator.Options{
		Algorithm: checksum.Algorithm(a.cfg.Algorithm),
		S3:        a.s3,
		Walk:      a.walkOptions(),
		Logger:    &log,
	})
}

// copier picks the S3 uploader for s3:// destinations and the configured
// transfer tool otherwise.
func (a *app) copier(dest string) (hardcopy.Copier, error) {
	if s3client.IsURI(dest) {
		log := logging.GetLogger("s3")
		return transfer.NewS3Copier(a.s3, transfer.S3CopierOptions{
			Algorithm:     checksum.Algorithm(a.cfg.Algorithm),
			Concurrency:   a.cfg.AWS.UploadConcurrency,
			Walk:          a.walkOptions(),
			SkipUnchanged: a.cfg.AWS.SkipUnchanged,
			Logger:        &log,
		})
	}

	tool, err := transfer.LookupTool(a.cfg.Tool.Name)
	if err != nil {
		return nil, err
	}
	if a.cfg.Tool.Executable != "" {
		tool.Executable = a.cfg.Tool.Executable
	}

	options := []transfer.ToolCopierOption{transfer.WithLogger(logging.GetLogger("transfer"))}
	if a.cfg.Tool.ShowOutput {
		options = append(options, transfer.WithToolOutput(os.Stdout, os.Stderr))
	}
	return transfer.NewToolCopier(tool, transfer.CommandOptions{
		Args:         a.cfg.Tool.Args,
		ExcludeFiles: a.cfg.Exclude.Files,
		ExcludeDirs:  a.cfg.Exclude.Dirs,
	}, options...)
}

func (a *app) orchestrator(dest string) (*hardcopy.Orchestrator, error) {
	c, err := a.copier(dest)
	if err != nil {
		return nil, err
	}
	v, err := a.validator()
	if err != nil {
		return nil, err
	}
	return hardcopy.New(c, v, hardcopy.Options{
		MaxAttempts:   a.cfg.MaxAttempts,
		ReuseExisting: a.cfg.ReuseExisting,
		Logger:        a.events,
	})
}

// copyOrchestrator only transfers, so it needs no validator or worker pool.
func (a *app) copyOrchestrator(dest string) (*hardcopy.Orchestrator, error) {
	c, err := a.copier(dest)
	if err != nil {
		return nil, err
	}
	return hardcopy.New(c, noValidator{}, hardcopy.Options{Logger: a.events})
}

// sourceBytes adds up the sizes of the files validation covers.
func (a *app) sourceBytes(ctx context.Context, src string) int64 {
	fi, err := os.Stat(src)
	if err != nil {
		return 0
	}
	if !fi.IsDir() {
		return fi.Size()
	}

	w, err := walker.NewWalker(src, a.walkOptions())
	if err != nil {
		return 0
	}
	var total int64
	err = w.Walk(ctx, func(e walker.Entry) error {
		if !e.IsDir {
			total += e.Size
		}
		return nil
	})
	if err != nil {
		log := logging.GetLogger("hardcopy")
		log.Debug().Err(err).Str("source", src).Msg("Could not size source")
	}
	return total
}
