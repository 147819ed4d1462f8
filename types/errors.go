// This file defines the stable failure codes surfaced by the pipeline and
// the RunError wrapper that carries them. Callers classify failures with
// errors.As/RunError.Code rather than string matching.
package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable failure code.
type ErrorCode string

const (
	// CodeSchemaUnavailable - the schema snapshot could not be produced.
	CodeSchemaUnavailable ErrorCode = "schema_unavailable"
	// CodeGenerationUnavailable - the text-generation collaborator failed
	// or timed out after its single retry.
	CodeGenerationUnavailable ErrorCode = "generation_unavailable"
	// CodeUnsafeStatement - the validator rejected the candidate, both on
	// the initial attempt and on the single self-correction attempt.
	CodeUnsafeStatement ErrorCode = "unsafe_statement"
	// CodeConnectionUnavailable - no database connection could be acquired.
	CodeConnectionUnavailable ErrorCode = "connection_unavailable"
	// CodeTimeout - execution exceeded the wall-clock limit.
	CodeTimeout ErrorCode = "timeout"
	// CodeEngineRejected - the database engine itself refused the statement.
	CodeEngineRejected ErrorCode = "engine_rejected"
	// CodeResultTooLarge - the engine returned more rows than the cap
	// despite the injected limit; the result was truncated.
	CodeResultTooLarge ErrorCode = "result_too_large"
	// CodeCapacityExceeded - the concurrent-run limit was reached.
	CodeCapacityExceeded ErrorCode = "capacity_exceeded"
	// CodeCancelled - the run's cancellation signal fired.
	CodeCancelled ErrorCode = "cancelled"
)

// Retryable reports whether the pipeline grants this code a single retry.
func (c ErrorCode) Retryable() bool {
	return c == CodeGenerationUnavailable || c == CodeConnectionUnavailable
}

// RunError is a classified pipeline failure. It preserves the underlying
// error in the chain for inspection via errors.Is/As.
type RunError struct {
	// Code is the stable failure code.
	Code ErrorCode
	// Reason carries the validator's specific rejection reason for
	// unsafe_statement failures; empty otherwise.
	Reason string
	// Message is the human-readable description.
	Message string
	// Err is the underlying error, if any.
	Err error
}

func (e *RunError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *RunError) Unwrap() error { return e.Err }

// NewRunError creates a classified run error.
func NewRunError(code ErrorCode, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the failure code from an error chain.
// Returns false when the chain carries no RunError.
func CodeOf(err error) (ErrorCode, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}
