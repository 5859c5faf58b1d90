package pipeline

import (
	"context"

	"tcm-backend/openai"
)

// Invoker is the minimal provider surface the pipeline drives. It is
// implemented by openai.Client and mocked in tests.
type Invoker interface {
	Complete(ctx context.Context, model string, opts openai.CallOptions) (string, error)
	Stream(ctx context.Context, model string, opts openai.CallOptions) (<-chan string, error)
}

// Request describes one pipeline run. Candidates must be non-empty and
// ordered most-capable-first; they are tried strictly in order.
type Request struct {
	// Endpoint labels logs and metrics ("inquiry", "inspection", ...).
	Endpoint string

	SystemPrompt string
	Messages     []openai.Message

	// ImageURL, when set, rides along to the provider as a vision part.
	ImageURL string

	Candidates []string

	// JSONMode switches the run to structured-object output: the raw
	// text is fence-stripped, repaired if needed, parsed, and checked
	// against Schema / is_valid / confidence before being accepted.
	JSONMode bool

	// Schema, when non-empty, is a JSON schema the parsed payload must
	// satisfy to count as valid.
	Schema string

	// Aliases are tried in order against the parsed payload to extract
	// the primary value (e.g. observation, analysis, description).
	Aliases []string

	// FallbackPayload / FallbackText are returned verbatim when every
	// candidate fails or yields an invalid result.
	FallbackPayload map[string]any
	FallbackText    string
}

// Attempt records one candidate invocation. Created once per candidate
// tried, never mutated afterwards, and discarded with the run.
type Attempt struct {
	ModelID       string
	RawResult     string
	Succeeded     bool
	FailureReason string
}

// ValidatedResult is the validator's verdict over a raw completion.
type ValidatedResult struct {
	IsValid    bool
	Confidence float64 // -1 when the payload carries no confidence field
	Payload    map[string]any
	Text       string
	Diagnostic string
}

// Result is what a pipeline run resolves to. Degraded means every
// candidate was exhausted and the fallback payload was served; callers
// still answer 200 in that case.
type Result struct {
	Payload   map[string]any
	Text      string
	ModelUsed string
	Degraded  bool
	Attempts  []Attempt
}

// Fallback controller states. Succeeded and Exhausted are terminal.
type runState int

const (
	stateNotStarted runState = iota
	stateTrying
	stateSucceeded
	stateExhausted
)

func (s runState) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateTrying:
		return "trying"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}
