package engine

import (
	"context"
	"sync"

	"github.com/arbelos-io/glean/types"
)

// Stub is a scripted engine for tests. It records every statement it was
// asked to run and replays canned results in order, repeating the last
// entry once the script is exhausted.
type Stub struct {
	mu      sync.Mutex
	script  []stubStep
	pos     int
	queries []string
}

type stubStep struct {
	result *types.QueryResult
	err    error
}

// NewStub returns an empty stub. Use Push to script responses.
func NewStub() *Stub { return &Stub{} }

// Push appends one scripted response.
func (s *Stub) Push(result *types.QueryResult, err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, stubStep{result: result, err: err})
	return s
}

// Query replays the next scripted response.
func (s *Stub) Query(_ context.Context, sql string) (*types.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, sql)
	if len(s.script) == 0 {
		return &types.QueryResult{Columns: []string{}}, nil
	}
	step := s.script[s.pos]
	if s.pos < len(s.script)-1 {
		s.pos++
	}
	return step.result, step.err
}

// Queries returns a copy of the statements seen so far.
func (s *Stub) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

var _ Engine = (*Stub)(nil)
