package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	configFile   string
	algorithm    string
	engine       string
	workers      int
	excludeFiles []string
	excludeDirs  []string
	ignores      []string
	profile      string
	region       string
	verbosity    int
	quiet        bool

	maxAttempts    int
	reuseExisting  bool
	toolName       string
	toolArgs       []string
	toolOutput     bool
	resultJSONFile string
	base64Output   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hardcopy",
		Short: "Copy files with an external tool and verify the copy by checksum",
		Long: `hardcopy runs a transfer tool (robocopy, rsync, or an S3 upload) and then
compares checksums of every file in the source with the copy, transferring
again until the copy is byte-identical or the attempt budget is spent.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default .hardcopy.toml if present)")
	flags.StringVar(&algorithm, "algorithm", "", "Checksum algorithm: crc32, crc32c, md5, sha1, sha256, sha512")
	flags.StringVar(&engine, "engine", "", "Validation engine: serial or concurrent")
	flags.IntVar(&workers, "workers", 0, "Checksum workers for the concurrent engine (0 picks from CPU count)")
	flags.StringSliceVar(&excludeFiles, "exclude-file", nil, "Exclude files by name wildcard (multiple allowed)")
	flags.StringSliceVar(&excludeDirs, "exclude-dir", nil, "Exclude directories by name wildcard (multiple allowed)")
	flags.StringSliceVar(&ignores, "ignore", nil, "Skip source paths matching a glob during validation (multiple allowed)")
	flags.StringVar(&profile, "profile", "", "AWS profile to use")
	flags.StringVar(&region, "region", "", "AWS region (uses default if not specified)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v, -vv, -vvv)")
	flags.BoolVar(&quiet, "quiet", false, "Suppress non-error output")

	rootCmd.AddCommand(newRunCmd(), newValidateCmd(), newCopyCmd(), newChecksumCmd())
	return rootCmd
}

func addToolFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&toolName, "tool", "", "Transfer tool: robocopy or rsync (default depends on the OS)")
	cmd.Flags().StringArrayVar(&toolArgs, "tool-arg", nil, "Extra argument passed to the transfer tool (multiple allowed)")
	cmd.Flags().BoolVar(&toolOutput, "tool-output", false, "Show the transfer tool's output")
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <Source> <Destination>",
		Short: "Transfer and validate, retrying until the copy is valid",
		Args:  cobra.ExactArgs(2),
		RunE:  runHardCopy,
	}
	addToolFlags(cmd)
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Maximum number of transfers (default 3)")
	cmd.Flags().BoolVar(&reuseExisting, "reuse-existing", false, "Validate an existing destination before transferring")
	cmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <Source> <Destination>...",
		Short: "Check that each destination is a valid copy of the source",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runValidate,
	}
	cmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
	return cmd
}

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <Source> <Destination>",
		Short: "Transfer once without validating",
		Args:  cobra.ExactArgs(2),
		RunE:  runCopy,
	}
	addToolFlags(cmd)
	return cmd
}

func newChecksumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum <Path>...",
		Short: "Print the checksum of files, directory trees or S3 objects",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChecksum,
	}
	cmd.Flags().BoolVar(&base64Output, "base64", false, "Print checksums base64 encoded, as S3 reports them")
	return cmd
}
