package validator

import "fmt"

// Reason explains why a copy is not valid.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonMissing  Reason = "missing"
	ReasonMismatch Reason = "mismatch"
)

// Result is the outcome of one validation call. When Valid is false,
// Source names the source entry and Path the copy location that failed.
type Result struct {
	Valid  bool   `json:"valid"`
	Source string `json:"source,omitempty"`
	Path   string `json:"path,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(source, path string, reason Reason) Result {
	return Result{Source: source, Path: path, Reason: reason}
}

func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	return fmt.Sprintf("%s: %s (source %s)", r.Reason, r.Path, r.Source)
}
