package types

import (
	"testing"
	"time"
)

func TestQueryResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  QueryResult
		wantErr bool
	}{
		{
			name: "aligned rows",
			result: QueryResult{
				Columns:  []string{"id", "name"},
				Rows:     [][]any{{int64(1), "a"}, {int64(2), "b"}},
				RowCount: 2,
			},
			wantErr: false,
		},
		{
			name: "empty result",
			result: QueryResult{
				Columns:  []string{"count"},
				Rows:     [][]any{},
				RowCount: 0,
			},
			wantErr: false,
		},
		{
			name: "row_count mismatch",
			result: QueryResult{
				Columns:  []string{"id"},
				Rows:     [][]any{{int64(1)}},
				RowCount: 2,
			},
			wantErr: true,
		},
		{
			name: "ragged row",
			result: QueryResult{
				Columns:  []string{"id", "name"},
				Rows:     [][]any{{int64(1), "a"}, {int64(2)}},
				RowCount: 2,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunOutcome_String(t *testing.T) {
	failed := RunOutcome{
		Status:  OutcomeFailed,
		Code:    CodeTimeout,
		Message: "statement exceeded 5s",
		Elapsed: 5 * time.Second,
		Steps:   4,
	}
	got := failed.String()
	want := "failed (timeout): statement exceeded 5s after 5s, 4 steps"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	ok := RunOutcome{Status: OutcomeSuccess, Elapsed: time.Second, Steps: 4}
	if got := ok.String(); got != "success after 1s, 4 steps" {
		t.Errorf("String() = %q", got)
	}
}
