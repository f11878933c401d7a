package engine

import "fmt"

// Kind classifies an engine failure for the presentation layer. Only
// KindLoadFailure is fatal for a load; everything else is recovered
// where it happens and listed here so callers share one vocabulary.
type Kind string

const (
	// KindMalformedIdentifier: non-hex or odd-length hardware id.
	// Recovered by skipping the decode.
	KindMalformedIdentifier Kind = "malformed-identifier"
	// KindMissingSheet: an expected sheet was absent. Recovered by
	// proceeding with partial device info.
	KindMissingSheet Kind = "missing-sheet"
	// KindInvalidSample: a value outside validity bounds. Recovered by
	// excluding it from aggregates; the sample is retained.
	KindInvalidSample Kind = "invalid-sample"
	// KindUnmatchedFaultClear: a clear event with no open interval.
	// Ignored.
	KindUnmatchedFaultClear Kind = "unmatched-fault-clear"
	// KindLoadFailure: the input could not be parsed at all. Fatal for
	// that load; prior engine state stays valid.
	KindLoadFailure Kind = "load-failure"
)

// Error is the single structured failure message crossing the engine
// boundary: a kind plus human-readable text, never a raw error chain.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func loadFailure(format string, args ...interface{}) *Error {
	return &Error{Kind: KindLoadFailure, Message: fmt.Sprintf(format, args...)}
}
