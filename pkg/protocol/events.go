// Package protocol defines the wire-level vocabulary shared by every
// transport: the Streaming Bus event names and the REST/MCP method names.
// Keeping them in one leaf package is what lets all three transports stay
// generated from, and consistent with, a single source of truth.
package protocol

// Streaming Bus event names. Exactly one of these arrives as the
// Payload of a bus.Event with Name set to the constant below.
const (
	EventTurnStart  = "turn.start"
	EventTextDelta  = "text.delta"
	EventToolCall   = "tool.call"
	EventToolResult = "tool.result"
	EventTurnDone   = "turn.done"
	EventTurnError  = "turn.error"
)

// TurnStartPayload carries no fields beyond the envelope; kept as a type for
// symmetry with the other payloads and so transports can type-switch on it.
type TurnStartPayload struct{}

// TextDeltaPayload carries the cumulative assistant text produced so far in
// the current iteration. The core always emits cumulative (not incremental)
// deltas; see agent/loop.go.
type TextDeltaPayload struct {
	Content string `json:"content"`
}

// ToolCallPayload announces a tool invocation beginning.
type ToolCallPayload struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolResultPayload announces a tool invocation's completion.
type ToolResultPayload struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // "success" | "error"
	Content string `json:"content"`
}

// UsagePayload reports token accounting for a completed turn.
type UsagePayload struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd,omitempty"`
}

// TurnDonePayload marks successful completion of a user message's processing.
type TurnDonePayload struct {
	Usage UsagePayload `json:"usage"`
}

// TurnErrorPayload marks fatal termination of a turn.
type TurnErrorPayload struct {
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}
