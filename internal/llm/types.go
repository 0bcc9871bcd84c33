// Package llm defines the streaming tool-calling model contract the agent
// loop drives. The core assumes exactly one provider at a time — Provider
// is a narrow seam for testing, not a multi-backend router.
package llm

import "context"

// Provider is the streaming-chat interface the agent core requires. The
// concrete implementation and its credentials are opaque to every caller.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)
	DefaultModel() string
	Name() string
}

// Message is one entry in the conversation sent to the model. Role is one of
// "system", "user", "assistant", "tool".
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	// RawAssistantContent preserves provider-specific content blocks (e.g.
	// Anthropic thinking blocks) verbatim so they can be passed back on the
	// next request without the core needing to understand their shape.
	RawAssistantContent []byte `json:"-"`
}

// ToolDefinition is the schema the model sees for one callable tool.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ChatRequest is one LLM call: the full composed history plus the currently
// visible tool schema.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
	Thinking    ThinkingLevel
}

// ChatResponse is the result of a (possibly streamed) LLM call.
type ChatResponse struct {
	Content      string
	Thinking     string // extended-thinking transcript, when enabled
	ToolCalls    []ToolCall
	FinishReason string // "stop" | "tool_calls" | "length"
	Usage        *Usage

	// RawAssistantContent is threaded back into the next Message so the
	// provider can replay content blocks (thinking, etc.) it emitted.
	RawAssistantContent []byte
}

// StreamChunk is one piece of a streaming response, forwarded to the
// Streaming Bus as a text.delta event. Content holds the response text
// accumulated so far, not only the newest fragment.
type StreamChunk struct {
	Content  string
	Thinking string
	Done     bool
}

// Usage tracks token consumption for the Session Manager's running totals.
type Usage struct {
	PromptTokens        int64
	CompletionTokens    int64
	TotalTokens         int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	ThinkingTokens       int64
}

// ThinkingLevel controls the Anthropic extended-thinking budget. "off" (the
// zero value) disables it entirely.
type ThinkingLevel string

const (
	ThinkingOff    ThinkingLevel = ""
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// retryHookKey threads a callback through context so a transport can surface
// automatic-retry progress (e.g. update a "thinking…" placeholder) without
// the provider needing to know about transports.
type retryHookKey struct{}

// RetryHook is invoked before each retry attempt of a failed stream connect.
type RetryHook func(attempt, maxAttempts int, err error)

// WithRetryHook attaches a RetryHook to ctx.
func WithRetryHook(ctx context.Context, hook RetryHook) context.Context {
	return context.WithValue(ctx, retryHookKey{}, hook)
}

// RetryHookFromContext returns the RetryHook attached to ctx, or nil.
func RetryHookFromContext(ctx context.Context) RetryHook {
	hook, _ := ctx.Value(retryHookKey{}).(RetryHook)
	return hook
}
