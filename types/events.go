package types

// EventType is the type discriminator for progress events.
type EventType string

// Event type constants. The set is closed; subscribers may rely on every
// stream ending with exactly one terminal event.
const (
	EventTypeStepStarted   EventType = "step_started"
	EventTypeStepCompleted EventType = "step_completed"
	EventTypeAnswerChunk   EventType = "answer_chunk"
	EventTypeDone          EventType = "done"
	EventTypeFailed        EventType = "failed"
)

// IsTerminal returns true if this event type ends the stream.
func (e EventType) IsTerminal() bool {
	return e == EventTypeDone || e == EventTypeFailed
}

// StepName identifies one pipeline step in progress events.
type StepName string

const (
	StepFetchingSchema StepName = "fetching_schema"
	StepGeneratingSQL  StepName = "generating_sql"
	StepValidating     StepName = "validating"
	StepExecuting      StepName = "executing"
	StepSummarizing    StepName = "summarizing"
)

// EventEnvelope is the envelope for all progress events. Exactly one of the
// payload pointers is set, matching Type. Fields carry both json and msgpack
// tags; the text stream and the binary frame codec share this shape.
type EventEnvelope struct {
	// ContractVersion is the semantic version of the event contract.
	ContractVersion string `json:"contract_version" msgpack:"contract_version"`
	// RunID is the canonical run identifier.
	RunID string `json:"run_id" msgpack:"run_id"`
	// Seq is the monotonic sequence number within the run, starts at 1.
	Seq int64 `json:"seq" msgpack:"seq"`
	// Type is the event type discriminator.
	Type EventType `json:"type" msgpack:"type"`
	// Ts is the event timestamp in RFC 3339 UTC format.
	Ts string `json:"ts" msgpack:"ts"`

	Step   *StepPayload   `json:"step,omitempty" msgpack:"step,omitempty"`
	Chunk  *ChunkPayload  `json:"chunk,omitempty" msgpack:"chunk,omitempty"`
	Done   *DonePayload   `json:"done,omitempty" msgpack:"done,omitempty"`
	Failed *FailedPayload `json:"failed,omitempty" msgpack:"failed,omitempty"`
}

// StepPayload accompanies step_started and step_completed events.
type StepPayload struct {
	// Name is the pipeline step.
	Name StepName `json:"name" msgpack:"name"`
	// ElapsedMs is the step duration; zero on step_started.
	ElapsedMs int64 `json:"elapsed_ms,omitempty" msgpack:"elapsed_ms,omitempty"`
	// Detail is optional step-specific context, e.g. the applied rewrite
	// on a completed validation step.
	Detail string `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

// ChunkPayload carries one incremental piece of the streamed answer.
type ChunkPayload struct {
	Content string `json:"content" msgpack:"content"`
}

// DonePayload carries the final answer and run accounting.
type DonePayload struct {
	Answer string       `json:"answer" msgpack:"answer"`
	Result *QueryResult `json:"result,omitempty" msgpack:"result,omitempty"`
	// Degraded reports that the query succeeded but summarization failed.
	Degraded  bool  `json:"degraded,omitempty" msgpack:"degraded,omitempty"`
	ElapsedMs int64 `json:"elapsed_ms" msgpack:"elapsed_ms"`
	Steps     int   `json:"steps" msgpack:"steps"`
	// Masked is the number of sensitive values tokenized during the run.
	Masked int `json:"masked,omitempty" msgpack:"masked,omitempty"`
}

// FailedPayload carries the terminal error.
type FailedPayload struct {
	Code      ErrorCode `json:"code" msgpack:"code"`
	Message   string    `json:"message" msgpack:"message"`
	ElapsedMs int64     `json:"elapsed_ms" msgpack:"elapsed_ms"`
	Steps     int       `json:"steps" msgpack:"steps"`
}
