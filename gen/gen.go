// Package gen is the text-generation boundary. A TextGenerator turns a
// question plus a schema description into a candidate SQL statement, and
// turns a bounded result set into a prose answer.
//
// The orchestrator treats the generator as an unreliable collaborator:
// transient failures are surfaced as retryable run errors and every call
// honors its context deadline.
package gen

import (
	"context"

	"github.com/arbelos-io/glean/types"
)

// SQLRequest asks for one candidate statement.
type SQLRequest struct {
	// Question is the user's natural-language question, already masked
	// of sensitive values when masking is enabled.
	Question string
	// Schema is the structural description the statement must target.
	Schema *types.SchemaSnapshot
	// PriorSQL and PriorRejection carry the failed candidate and the
	// validator's reason on a self-correction attempt; empty on the
	// first attempt.
	PriorSQL       string
	PriorRejection string
}

// SummaryRequest asks for a prose answer over an executed result.
type SummaryRequest struct {
	Question string
	SQL      string
	Result   *types.QueryResult
}

// ChunkFunc receives answer fragments in order. Returning an error
// aborts the stream.
type ChunkFunc func(chunk string) error

// TextGenerator produces SQL candidates and result summaries.
type TextGenerator interface {
	// GenerateSQL returns exactly one candidate statement.
	GenerateSQL(ctx context.Context, req SQLRequest) (string, error)

	// Summarize returns a complete prose answer.
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// StreamingSummarizer is implemented by generators that can deliver the
// answer incrementally. Callers fall back to Summarize when absent.
type StreamingSummarizer interface {
	SummarizeStream(ctx context.Context, req SummaryRequest, fn ChunkFunc) error
}
