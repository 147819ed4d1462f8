package gen

import (
	"context"
	"sync"
)

// Fake is a scripted generator for tests. SQL candidates are replayed in
// order; Summarize returns Answer or Err.
type Fake struct {
	mu sync.Mutex

	// SQL holds the candidates to replay, one per GenerateSQL call. The
	// last entry repeats once exhausted.
	SQL []string
	// SQLErrs, when non-nil, is consulted per call before SQL; a nil
	// entry means return the candidate.
	SQLErrs []error

	Answer string
	// Chunks, when set, makes the fake a StreamingSummarizer source.
	Chunks     []string
	SummaryErr error

	sqlCalls     int
	summaryCalls int
	// Requests records every SQLRequest seen, for asserting that
	// self-correction context was passed through.
	Requests []SQLRequest
}

func (f *Fake) GenerateSQL(_ context.Context, req SQLRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.sqlCalls
	f.sqlCalls++
	f.Requests = append(f.Requests, req)

	if i < len(f.SQLErrs) && f.SQLErrs[i] != nil {
		return "", f.SQLErrs[i]
	}
	if len(f.SQL) == 0 {
		return "SELECT 1", nil
	}
	if i >= len(f.SQL) {
		i = len(f.SQL) - 1
	}
	return f.SQL[i], nil
}

func (f *Fake) Summarize(_ context.Context, _ SummaryRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	if f.SummaryErr != nil {
		return "", f.SummaryErr
	}
	return f.Answer, nil
}

// SummarizeStream replays Chunks through fn. When Chunks is empty the
// whole Answer is delivered as one chunk.
func (f *Fake) SummarizeStream(_ context.Context, _ SummaryRequest, fn ChunkFunc) error {
	f.mu.Lock()
	f.summaryCalls++
	err := f.SummaryErr
	chunks := f.Chunks
	if len(chunks) == 0 {
		chunks = []string{f.Answer}
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// SQLCalls reports how many candidates were requested.
func (f *Fake) SQLCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sqlCalls
}

// SummaryCalls reports how many summaries were requested.
func (f *Fake) SummaryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryCalls
}

var (
	_ TextGenerator       = (*Fake)(nil)
	_ StreamingSummarizer = (*Fake)(nil)
)
