package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/logging"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/pkg/hardcopy"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
	"github.com/yuya-takeyama/hardcopy/pkg/validator"
)

// RunResult is written by --result-json-file.
type RunResult struct {
	Source         string            `json:"source"`
	Destination    string            `json:"destination"`
	Valid          bool              `json:"valid"`
	Transfers      int               `json:"transfers"`
	States         []string          `json:"states"`
	TransferErrors []string          `json:"transferErrors"`
	Failure        *validator.Result `json:"failure,omitempty"`
	DurationMs     int64             `json:"durationMs"`
	Error          string            `json:"error,omitempty"`
}

// ValidateResult is written by validate --result-json-file.
type ValidateResult struct {
	Source       string   `json:"source"`
	Destinations []string `json:"destinations"`
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
}

func runHardCopy(cmd *cobra.Command, args []string) error {
	src, dest := absolutePath(args[0]), absolutePath(args[1])
	ctx := cmd.Context()

	a, err := newApp(cmd, src, dest)
	if err != nil {
		return err
	}
	defer a.Close()

	o, err := a.orchestrator(dest)
	if err != nil {
		return err
	}

	report, runErr := o.HardCopy(ctx, src, dest)

	if resultJSONFile != "" {
		if err := writeJSON(resultJSONFile, newRunResult(report, runErr)); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	summary := logging.Summary{
		Attempts:       report.Transfers,
		TransferErrors: len(report.TransferErrors),
		Valid:          report.Valid,
		Duration:       report.Duration,
	}
	if report.Valid {
		summary.BytesValidated = a.sourceBytes(ctx, src)
	}
	logging.PrintSummary(cmd.OutOrStdout(), summary, quiet)

	return runErr
}

func newRunResult(report *hardcopy.Report, err error) RunResult {
	result := RunResult{
		Source:         report.Source,
		Destination:    report.Destination,
		Valid:          report.Valid,
		Transfers:      report.Transfers,
		States:         make([]string, 0, len(report.States)),
		TransferErrors: make([]string, 0, len(report.TransferErrors)),
		DurationMs:     report.Duration.Milliseconds(),
	}
	for _, s := range report.States {
		result.States = append(result.States, string(s))
	}
	for _, e := range report.TransferErrors {
		result.TransferErrors = append(result.TransferErrors, e.Error())
	}
	if report.Result != nil && !report.Result.Valid {
		result.Failure = report.Result
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func runValidate(cmd *cobra.Command, args []string) error {
	src := absolutePath(args[0])
	dests := make([]string, 0, len(args)-1)
	for _, d := range args[1:] {
		dests = append(dests, absolutePath(d))
	}
	start := time.Now()

	a, err := newApp(cmd, args...)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.validator()
	if err != nil {
		return err
	}
	o, err := hardcopy.New(noCopier{}, v, hardcopy.Options{Logger: a.events})
	if err != nil {
		return err
	}

	validateErr := o.Validate(cmd.Context(), src, dests...)
	logging.LogDuration(start, "validate")

	if resultJSONFile != "" {
		result := ValidateResult{Source: src, Destinations: dests, Valid: validateErr == nil}
		if validateErr != nil {
			result.Error = validateErr.Error()
		}
		if err := writeJSON(resultJSONFile, result); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	if validateErr == nil && !quiet {
		for _, dest := range dests {
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s\n", dest)
		}
	}
	return validateErr
}

func runCopy(cmd *cobra.Command, args []string) error {
	src, dest := absolutePath(args[0]), absolutePath(args[1])
	start := time.Now()

	a, err := newApp(cmd, src, dest)
	if err != nil {
		return err
	}
	defer a.Close()

	o, err := a.copyOrchestrator(dest)
	if err != nil {
		return err
	}

	defer logging.LogDuration(start, "copy")
	return o.Copy(cmd.Context(), src, dest)
}

func runChecksum(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd, args...)
	if err != nil {
		return err
	}
	defer a.Close()

	computer, err := checksum.NewComputer(checksum.Algorithm(a.cfg.Algorithm))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	emit := func(sum checksum.Checksum, location string) {
		value := sum.Hex()
		if base64Output {
			value = sum.Base64()
		}
		fmt.Fprintf(out, "%s  %s\n", value, location)
	}

	for _, location := range args {
		if s3client.IsURI(location) {
			if err := checksumS3(ctx, a.s3, computer, location, emit); err != nil {
				return err
			}
			continue
		}

		fi, err := os.Stat(location)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", location, err)
		}
		if !fi.IsDir() {
			sum, err := computer.SumFile(ctx, location)
			if err != nil {
				return err
			}
			emit(sum, location)
			continue
		}

		w, err := walker.NewWalker(location, a.walkOptions())
		if err != nil {
			return err
		}
		err = w.Walk(ctx, func(e walker.Entry) error {
			if e.IsDir {
				return nil
			}
			sum, err := computer.SumFile(ctx, e.Path)
			if err != nil {
				return err
			}
			emit(sum, filepath.Join(location, filepath.FromSlash(e.RelPath)))
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// checksumS3 sums every object under uri, or the object uri names when
// nothing is stored below it.
func checksumS3(ctx context.Context, client s3client.Client, computer *checksum.Computer, uri string, emit func(checksum.Checksum, string)) error {
	bucket, prefix, err := s3client.ParseURI(uri)
	if err != nil {
		return err
	}

	items, err := client.ListObjects(ctx, &s3client.ListObjectsRequest{Bucket: bucket, Prefix: prefix})
	if err != nil {
		return err
	}

	var keys []string
	for _, item := range items {
		keys = append(keys, walker.JoinKey(prefix, item.Path))
	}
	if len(keys) == 0 {
		if prefix == "" {
			return fmt.Errorf("no objects found in %s", uri)
		}
		keys = []string{prefix}
	}
	sort.Strings(keys)

	for _, key := range keys {
		body, err := client.GetObject(ctx, &s3client.GetObjectRequest{Bucket: bucket, Key: key})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", s3client.FormatURI(bucket, key), err)
		}
		sum, err := computer.SumReader(ctx, body)
		body.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s3client.FormatURI(bucket, key), err)
		}
		emit(sum, s3client.FormatURI(bucket, key))
	}
	return nil
}

// noCopier backs the validate command, which never transfers.
type noCopier struct{}

func (noCopier) Preflight(context.Context) error { return nil }

func (noCopier) Copy(context.Context, string, string) error {
	return errors.New("validate does not transfer")
}

// noValidator backs the copy command, which never validates.
type noValidator struct{}

var errNoValidation = errors.New("copy does not validate")

func (noValidator) IsValidCopy(context.Context, string, ...string) (validator.Result, error) {
	return validator.Result{}, errNoValidation
}

func (noValidator) IsValidCopyTree(context.Context, string, string) (validator.Result, error) {
	return validator.Result{}, errNoValidation
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// absolutePath leaves s3:// URIs untouched.
func absolutePath(path string) string {
	if s3client.IsURI(path) {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // fallback to original path
	}
	return absPath
}
