package validator

import (
	"context"
)

// Serial compares one pair at a time and returns on the first failure.
type Serial struct {
	*engine
}

func NewSerial(opts Options) (*Serial, error) {
	e, err := newEngine(opts)
	if err != nil {
		return nil, err
	}
	return &Serial{engine: e}, nil
}

func (s *Serial) IsValidCopy(ctx context.Context, src string, candidates ...string) (Result, error) {
	return s.isValidCopy(ctx, s.run, src, candidates)
}

func (s *Serial) IsValidCopyTree(ctx context.Context, srcDir, copyDir string) (Result, error) {
	return s.isValidCopyTree(ctx, s.run, srcDir, copyDir)
}

func (s *Serial) run(ctx context.Context, produce producer) (Result, error) {
	var failed *Result
	res, err := produce(ctx, func(j fileJob) error {
		r, err := s.check(ctx, j)
		if err != nil {
			return err
		}
		if !r.Valid {
			failed = &r
			return errStop
		}
		return nil
	})
	switch {
	case res != nil:
		return *res, nil
	case failed != nil:
		return *failed, nil
	case err != nil:
		return Result{}, err
	}
	return valid(), nil
}
