// Package validator decides whether a copy is indistinguishable from its
// source by comparing checksums of every reachable file.
package validator

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/hardcopy/internal/checksum"
	"github.com/yuya-takeyama/hardcopy/internal/walker"
	"github.com/yuya-takeyama/hardcopy/internal/worker"
	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
)

// Validator compares a source against one or more copies.
type Validator interface {
	// IsValidCopy reports whether every candidate is a valid copy of src,
	// which may be a file or a directory. The first failing candidate is
	// returned.
	IsValidCopy(ctx context.Context, src string, candidates ...string) (Result, error)
	// IsValidCopyTree reports whether copyDir holds an identical counterpart
	// of every entry under srcDir. Extra entries in copyDir are ignored.
	IsValidCopyTree(ctx context.Context, srcDir, copyDir string) (Result, error)
}

// Kind selects a Validator implementation.
type Kind string

const (
	KindSerial     Kind = "serial"
	KindConcurrent Kind = "concurrent"
)

func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindSerial, KindConcurrent:
		return k, nil
	}
	return "", hcerrors.Newf(hcerrors.ErrInvalidInput, "unknown validation engine %q", name)
}

// Options configures a Validator.
type Options struct {
	// Algorithm defaults to checksum.DefaultAlgorithm.
	Algorithm checksum.Algorithm
	// S3 enables s3:// candidates.
	S3 s3client.Client
	// Resolver overrides how candidate locations become targets.
	Resolver Resolver
	Walk     walker.Options
	Logger   *zerolog.Logger
}

// New creates a validator of the given kind. pool is only used by the
// concurrent kind.
func New(kind Kind, pool *worker.Pool, opts Options) (Validator, error) {
	switch kind {
	case KindSerial:
		return NewSerial(opts)
	case KindConcurrent:
		return NewConcurrent(pool, opts)
	}
	return nil, hcerrors.Newf(hcerrors.ErrInvalidInput, "unknown validation engine %q", kind)
}

// errStop ends a walk early once a failure is known.
var errStop = errors.New("stop")

// fileJob is one file comparison. want is the source checksum when it was
// computed up front.
type fileJob struct {
	src    string
	size   int64
	target Target
	rel    string
	want   *checksum.Checksum
}

// producer enumerates the jobs of one call and hands them to submit. A
// failure it detects on its own, such as a missing directory, is returned
// as a Result.
type producer func(ctx context.Context, submit func(fileJob) error) (*Result, error)

// batchRunner drives a producer to completion.
type batchRunner func(ctx context.Context, produce producer) (Result, error)

type engine struct {
	computer *checksum.Computer
	resolver Resolver
	walk     walker.Options
	log      zerolog.Logger
}

func newEngine(opts Options) (*engine, error) {
	alg := opts.Algorithm
	if alg == "" {
		alg = checksum.DefaultAlgorithm
	}
	computer, err := checksum.NewComputer(alg)
	if err != nil {
		return nil, hcerrors.Wrap(err, hcerrors.ErrInvalidInput, "checksum algorithm")
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewResolver(computer, opts.S3)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	walk := opts.Walk
	walk.Logger = &logger

	return &engine{
		computer: computer,
		resolver: resolver,
		walk:     walk,
		log:      logger,
	}, nil
}

// Algorithm returns the checksum algorithm in use.
func (e *engine) Algorithm() checksum.Algorithm {
	return e.computer.Algorithm()
}

func (e *engine) isValidCopy(ctx context.Context, run batchRunner, src string, candidates []string) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, hcerrors.New(hcerrors.ErrInvalidInput, "no copy locations given")
	}

	src, err := canonical(src)
	if err != nil {
		return Result{}, err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return Result{}, sourceError(src, err)
	}

	if fi.IsDir() {
		for _, candidate := range candidates {
			res, err := e.isValidCopyTree(ctx, run, src, candidate)
			if err != nil || !res.Valid {
				return res, err
			}
		}
		return valid(), nil
	}

	if !fi.Mode().IsRegular() {
		return Result{}, hcerrors.Newf(hcerrors.ErrInvalidInput, "source is not a regular file or directory: %s", src)
	}

	return run(ctx, func(ctx context.Context, submit func(fileJob) error) (*Result, error) {
		sum, err := e.computer.SumFile(ctx, src)
		if err != nil {
			return nil, readError(src, err)
		}
		for _, candidate := range candidates {
			target, err := e.resolver.Resolve(ctx, candidate)
			if err != nil {
				return nil, hcerrors.Wrapf(err, hcerrors.ErrInvalidInput, "resolve %s", candidate)
			}
			if err := submit(fileJob{src: src, size: fi.Size(), target: target, want: &sum}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

func (e *engine) isValidCopyTree(ctx context.Context, run batchRunner, srcDir, copyDir string) (Result, error) {
	srcDir, err := canonical(srcDir)
	if err != nil {
		return Result{}, err
	}
	fi, err := os.Stat(srcDir)
	if err != nil {
		return Result{}, sourceError(srcDir, err)
	}
	if !fi.IsDir() {
		return Result{}, hcerrors.Newf(hcerrors.ErrInvalidInput, "source is not a directory: %s", srcDir)
	}

	target, err := e.resolver.Resolve(ctx, copyDir)
	if err != nil {
		return Result{}, hcerrors.Wrapf(err, hcerrors.ErrInvalidInput, "resolve %s", copyDir)
	}

	w, err := walker.NewWalker(srcDir, e.walk)
	if err != nil {
		return Result{}, hcerrors.Wrapf(err, hcerrors.ErrInvalidInput, "walk %s", srcDir)
	}

	e.log.Debug().Str("source", srcDir).Str("copy", target.Location("")).Msg("Validating tree")

	return run(ctx, func(ctx context.Context, submit func(fileJob) error) (*Result, error) {
		root, err := target.Stat(ctx, "", true)
		if err != nil {
			return nil, readError(target.Location(""), err)
		}
		if failure := dirFailure(root, srcDir, target.Location("")); failure != nil {
			return failure, nil
		}

		var failure *Result
		err = w.Walk(ctx, func(entry walker.Entry) error {
			if !entry.IsDir {
				return submit(fileJob{src: entry.Path, size: entry.Size, target: target, rel: entry.RelPath})
			}

			info, err := target.Stat(ctx, entry.RelPath, true)
			if err != nil {
				return readError(target.Location(entry.RelPath), err)
			}
			if failure = dirFailure(info, entry.Path, target.Location(entry.RelPath)); failure != nil {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			err = nil
		}
		return failure, err
	})
}

func dirFailure(info Info, src, path string) *Result {
	switch {
	case !info.Exists:
		r := invalid(src, path, ReasonMissing)
		return &r
	case !info.IsDir:
		r := invalid(src, path, ReasonMismatch)
		return &r
	}
	return nil
}

// check compares one file with its counterpart.
func (e *engine) check(ctx context.Context, j fileJob) (Result, error) {
	path := j.target.Location(j.rel)

	info, err := j.target.Stat(ctx, j.rel, false)
	if err != nil {
		return Result{}, readError(path, err)
	}
	switch {
	case !info.Exists:
		return invalid(j.src, path, ReasonMissing), nil
	case info.IsDir:
		return invalid(j.src, path, ReasonMismatch), nil
	case j.size >= 0 && info.Size >= 0 && j.size != info.Size:
		e.log.Debug().Str("path", path).Int64("want", j.size).Int64("got", info.Size).Msg("Size differs")
		return invalid(j.src, path, ReasonMismatch), nil
	}

	want := j.want
	if want == nil {
		sum, err := e.computer.SumFile(ctx, j.src)
		if err != nil {
			return Result{}, readError(j.src, err)
		}
		want = &sum
	}

	got, err := j.target.Sum(ctx, j.rel)
	if err != nil {
		return Result{}, readError(path, err)
	}

	if !got.Equal(*want) {
		e.log.Debug().Str("path", path).Stringer("want", *want).Stringer("got", got).Msg("Checksum differs")
		return invalid(j.src, path, ReasonMismatch), nil
	}

	e.log.Trace().Str("path", path).Stringer("checksum", got).Msg("Checked")
	return valid(), nil
}

// readError marks an I/O failure. Cancellation passes through unchanged.
func readError(location string, err error) error {
	if isCancellation(err) {
		return err
	}
	return hcerrors.Wrapf(err, hcerrors.ErrReadFailed, "read %s", location)
}

func sourceError(src string, err error) error {
	if os.IsNotExist(err) {
		return hcerrors.Wrapf(err, hcerrors.ErrInvalidInput, "source does not exist: %s", src).
			WithDetail("source", src)
	}
	return readError(src, err)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
