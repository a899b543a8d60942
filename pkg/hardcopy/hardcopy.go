// Package hardcopy drives an external transfer until the destination is a
// validated copy of the source or the attempt budget runs out.
package hardcopy

import (
	"context"
	"os"
	"strings"
	"time"

	hcerrors "github.com/yuya-takeyama/hardcopy/pkg/errors"
	"github.com/yuya-takeyama/hardcopy/pkg/logger"
	"github.com/yuya-takeyama/hardcopy/pkg/s3client"
	"github.com/yuya-takeyama/hardcopy/pkg/validator"
)

// DefaultMaxAttempts is the transfer budget of one HardCopy call.
const DefaultMaxAttempts = 3

// State is a step of the copy state machine.
type State string

const (
	StateIdle         State = "idle"
	StateTransferring State = "transferring"
	StateValidating   State = "validating"
	StateRetrying     State = "retrying"
	StateSuccess      State = "success"
	StateFailed       State = "failed"
)

// Copier moves bytes from src to dest. A Copy error coded TRANSFER_FAILED
// is recorded and the copy is validated anyway; any other error is fatal.
type Copier interface {
	Preflight(ctx context.Context) error
	Copy(ctx context.Context, src, dest string) error
}

type Options struct {
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// ReuseExisting validates an existing destination before the first
	// transfer and skips transferring when it is already valid.
	ReuseExisting bool
	Logger        logger.Logger
}

// Report describes one HardCopy call.
type Report struct {
	Source         string
	Destination    string
	Transfers      int
	States         []State
	TransferErrors []error
	// Result is the last validation outcome, nil if validation never ran.
	Result   *validator.Result
	Valid    bool
	Duration time.Duration
}

// Orchestrator runs copies. It holds no per-call state and may be used
// from several goroutines.
type Orchestrator struct {
	copier        Copier
	validator     validator.Validator
	maxAttempts   int
	reuseExisting bool
	events        logger.Logger
}

func New(copier Copier, v validator.Validator, opts Options) (*Orchestrator, error) {
	if copier == nil {
		return nil, hcerrors.New(hcerrors.ErrInvalidInput, "no copier given")
	}
	if v == nil {
		return nil, hcerrors.New(hcerrors.ErrInvalidInput, "no validator given")
	}

	maxAttempts := opts.MaxAttempts
	switch {
	case maxAttempts == 0:
		maxAttempts = DefaultMaxAttempts
	case maxAttempts < 0:
		return nil, hcerrors.Newf(hcerrors.ErrInvalidInput, "max attempts must be positive: %d", maxAttempts)
	}

	events := opts.Logger
	if events == nil {
		events = &logger.NullLogger{}
	}

	return &Orchestrator{
		copier:        copier,
		validator:     v,
		maxAttempts:   maxAttempts,
		reuseExisting: opts.ReuseExisting,
		events:        events,
	}, nil
}

// MaxAttempts returns the transfer budget of one HardCopy call.
func (o *Orchestrator) MaxAttempts() int {
	return o.maxAttempts
}

// call tracks the state of one HardCopy call.
type call struct {
	events logger.Logger
	report *Report
}

func (c *call) current() State {
	return c.report.States[len(c.report.States)-1]
}

func (c *call) enter(next State) {
	c.events.Transition(string(c.current()), string(next))
	c.report.States = append(c.report.States, next)
}

// HardCopy transfers src to dest and validates the result, transferring
// again while the copy is invalid and attempts remain. The destination is
// never deleted or modified on failure. The returned Report is non-nil even
// when an error is returned.
func (o *Orchestrator) HardCopy(ctx context.Context, src, dest string) (*Report, error) {
	start := time.Now()
	c := &call{
		events: o.events,
		report: &Report{Source: src, Destination: dest, States: []State{StateIdle}},
	}
	defer func() { c.report.Duration = time.Since(start) }()

	if err := o.copier.Preflight(ctx); err != nil {
		return c.report, o.fail(c, "preflight", dest, err)
	}

	if o.reuseExisting && destinationExists(dest) {
		c.enter(StateValidating)
		valid, err := o.validate(ctx, c, src, dest)
		if err != nil {
			return c.report, o.fail(c, "validate", dest, err)
		}
		if valid {
			c.enter(StateSuccess)
			return c.report, nil
		}
	}

	for attempt := 1; ; attempt++ {
		c.enter(StateTransferring)
		c.report.Transfers++
		o.events.Transfer(src, dest, attempt)

		if err := o.copier.Copy(ctx, src, dest); err != nil {
			if !hcerrors.IsErrorCode(err, hcerrors.ErrTransferFailed) {
				return c.report, o.fail(c, "transfer", dest, err)
			}
			o.events.Error("transfer", dest, err)
			c.report.TransferErrors = append(c.report.TransferErrors, err)
		}

		c.enter(StateValidating)
		valid, err := o.validate(ctx, c, src, dest)
		if err != nil {
			return c.report, o.fail(c, "validate", dest, err)
		}
		if valid {
			c.enter(StateSuccess)
			return c.report, nil
		}

		if attempt >= o.maxAttempts {
			c.enter(StateFailed)
			return c.report, validationFailed(src, dest, attempt, c.report.Result)
		}
		c.enter(StateRetrying)
	}
}

func (o *Orchestrator) validate(ctx context.Context, c *call, src, dest string) (bool, error) {
	res, err := o.validator.IsValidCopy(ctx, src, dest)
	if err != nil {
		return false, err
	}
	c.report.Result = &res
	c.report.Valid = res.Valid
	if res.Valid {
		o.events.Validated(src, dest)
	} else {
		o.events.Invalid(res.Source, dest, res.Path, string(res.Reason))
	}
	return res.Valid, nil
}

func (o *Orchestrator) fail(c *call, operation, path string, err error) error {
	o.events.Error(operation, path, err)
	c.enter(StateFailed)
	return err
}

// Validate checks that every dest is a valid copy of src without
// transferring anything.
func (o *Orchestrator) Validate(ctx context.Context, src string, dests ...string) error {
	res, err := o.validator.IsValidCopy(ctx, src, dests...)
	if err != nil {
		return err
	}
	if !res.Valid {
		dest := strings.Join(dests, ", ")
		o.events.Invalid(res.Source, dest, res.Path, string(res.Reason))
		return validationFailed(src, dest, 0, &res)
	}
	for _, dest := range dests {
		o.events.Validated(src, dest)
	}
	return nil
}

// Copy runs the preflight check and a single transfer without validation.
func (o *Orchestrator) Copy(ctx context.Context, src, dest string) error {
	if err := o.copier.Preflight(ctx); err != nil {
		o.events.Error("preflight", dest, err)
		return err
	}
	o.events.Transfer(src, dest, 1)
	if err := o.copier.Copy(ctx, src, dest); err != nil {
		o.events.Error("transfer", dest, err)
		return err
	}
	return nil
}

// destinationExists reports whether a local dest is present. Object storage
// has no directories to stat, so s3:// destinations always count.
func destinationExists(dest string) bool {
	if s3client.IsURI(dest) {
		return true
	}
	_, err := os.Stat(dest)
	return err == nil
}

func validationFailed(src, dest string, attempts int, res *validator.Result) error {
	var err *hcerrors.Error
	if attempts > 0 {
		err = hcerrors.Newf(hcerrors.ErrValidationFailed,
			"%s is not a valid copy of %s after %d attempts", dest, src, attempts).
			WithDetail("attempts", attempts)
	} else {
		err = hcerrors.Newf(hcerrors.ErrValidationFailed, "%s is not a valid copy of %s", dest, src)
	}
	err.WithDetail("source", src).WithDetail("destination", dest)
	if res != nil {
		err.WithDetail("path", res.Path).WithDetail("reason", string(res.Reason))
	}
	return err
}
