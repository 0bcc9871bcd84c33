// Package agent implements the ReAct Agent Loop: compose history, call the
// model, stream deltas, dispatch tool calls, persist the turn, and repeat
// until the model stops calling tools or a budget is exhausted. Dispatch is
// sequential for a single tool call and a goroutine fan-out with
// indexed-result collection for several, and a tool-call loop detector
// guards against the model looping on one tool with no progress.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forgeline/forgeline/internal/bus"
	"github.com/forgeline/forgeline/internal/llm"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/internal/tool"
	"github.com/forgeline/forgeline/pkg/protocol"
)

// Loop is the ReAct Agent Loop bound to one provider, tool registry, and
// session store. A single Loop serves every session; nothing here is
// per-session state.
type Loop struct {
	provider llm.Provider
	model    string

	maxIterations int
	turnBudget    time.Duration

	sessions *session.Manager
	registry *tool.Registry
	filters  *tool.FilterStore
	executor *tool.Executor
	bus      *bus.Bus
	tracer   *Tracer

	toolCtxFactory func(sessionID string) *tool.Context
}

// Config constructs a Loop.
type Config struct {
	Provider       llm.Provider
	Model          string
	MaxIterations  int
	TurnBudget     time.Duration
	Sessions       *session.Manager
	Registry       *tool.Registry
	Filters        *tool.FilterStore
	Executor       *tool.Executor
	Bus            *bus.Bus
	Tracer         *Tracer // optional; nil disables span collection
	ToolCtxFactory func(sessionID string) *tool.Context
}

// New builds a Loop from cfg, applying the documented defaults
// for any zero-valued bound.
func New(cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 40
	}
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = 10 * time.Minute
	}
	return &Loop{
		provider:       cfg.Provider,
		model:          cfg.Model,
		maxIterations:  cfg.MaxIterations,
		turnBudget:     cfg.TurnBudget,
		sessions:       cfg.Sessions,
		registry:       cfg.Registry,
		filters:        cfg.Filters,
		executor:       cfg.Executor,
		bus:            cfg.Bus,
		tracer:         cfg.Tracer,
		toolCtxFactory: cfg.ToolCtxFactory,
	}
}

// Result is what one call to Run produces.
type Result struct {
	Content    string
	Iterations int
	Usage      llm.Usage
	Stopped    bool // the turn was cancelled before reaching a natural stop
}

// Run drives one user message through the ReAct loop for sessionID: compose
// history, call the model, dispatch any requested tool calls, append the
// resulting turns atomically, and repeat until the model stops calling
// tools, the iteration cap is hit, or ctx is cancelled.
func (l *Loop) Run(ctx context.Context, sessionID, userMessage string) (*Result, error) {
	turnCtx, cancel := context.WithTimeout(ctx, l.turnBudget)
	defer cancel()

	sess, err := l.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", sessionID, err)
	}

	messages := composeMessages(sess.History, userMessage)
	pending := []session.Turn{{Role: "user", Content: userMessage}}

	l.bus.Publish(sessionID, protocol.EventTurnStart, protocol.TurnStartPayload{})

	toolDefs := l.toolDefinitionsFor(sessionID)
	tc := l.toolCtxFactory(sessionID)

	var loopDetector toolLoopState
	var totalUsage llm.Usage
	var finalContent string
	stopped := false
	iteration := 0

	for iteration < l.maxIterations {
		iteration++

		if turnCtx.Err() != nil {
			finalContent = "[Stopped]"
			stopped = true
			break
		}

		req := llm.ChatRequest{
			Messages:  messages,
			Tools:     toolDefs,
			Model:     l.model,
			MaxTokens: 8192,
		}

		resp, err := l.call(turnCtx, sessionID, req)
		if err != nil {
			if turnCtx.Err() != nil {
				finalContent = "[Stopped]"
				stopped = true
				break
			}
			l.bus.Publish(sessionID, protocol.EventTurnError, protocol.TurnErrorPayload{Kind: "LLMCallFailed", Error: err.Error()})
			return nil, fmt.Errorf("LLM call failed (iteration %d): %w", iteration, err)
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		assistantMsg := llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls, RawAssistantContent: resp.RawAssistantContent}
		messages = append(messages, assistantMsg)
		pending = append(pending, session.Turn{Role: "assistant", Content: assistantContentForHistory(resp)})

		toolMsgs, loopStop, loopMsg := l.dispatchToolCalls(turnCtx, sessionID, tc, resp.ToolCalls, &loopDetector)
		for _, tm := range toolMsgs {
			messages = append(messages, tm)
			pending = append(pending, session.Turn{Role: "tool", Content: tm.ToolCallID + ": " + tm.Content})
		}
		if loopStop {
			finalContent = loopMsg
			break
		}
	}

	if finalContent == "" && !stopped {
		finalContent = "[StepBudgetExhausted] no final response after the iteration budget"
	}
	pending = append(pending, session.Turn{Role: "assistant", Content: finalContent})

	if err := l.sessions.AppendTurn(ctx, sessionID, pending...); err != nil {
		slog.Warn("agent.append_turn_failed", "session", sessionID, "error", err)
	}
	if totalUsage.PromptTokens > 0 || totalUsage.CompletionTokens > 0 {
		if err := l.sessions.RecordUsage(ctx, sessionID, totalUsage.PromptTokens, totalUsage.CompletionTokens, 0); err != nil {
			slog.Warn("agent.record_usage_failed", "session", sessionID, "error", err)
		}
	}

	l.bus.Publish(sessionID, protocol.EventTurnDone, protocol.TurnDonePayload{
		Usage: protocol.UsagePayload{InputTokens: totalUsage.PromptTokens, OutputTokens: totalUsage.CompletionTokens},
	})

	return &Result{Content: finalContent, Iterations: iteration, Usage: totalUsage, Stopped: stopped}, nil
}

func (l *Loop) call(ctx context.Context, sessionID string, req llm.ChatRequest) (*llm.ChatResponse, error) {
	end := l.tracer.StartSpan(sessionID, "llm.call")
	resp, err := l.provider.ChatStream(ctx, req, func(chunk llm.StreamChunk) {
		if chunk.Content == "" {
			return
		}
		l.bus.Publish(sessionID, protocol.EventTextDelta, protocol.TextDeltaPayload{Content: chunk.Content})
	})
	end(err)
	return resp, err
}

func (l *Loop) toolDefinitionsFor(sessionID string) []llm.ToolDefinition {
	defs := l.filters.VisibleDefs(l.registry, sessionID)
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		schema := tool.ExportSchema(d)
		params := map[string]interface{}{
			"type":       schema.Type,
			"properties": schema.Properties,
		}
		if len(schema.Required) > 0 {
			params["required"] = schema.Required
		}
		out[i] = llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: params}
	}
	return out
}

// dispatchToolCalls executes calls sequentially when there is exactly one
// (no goroutine overhead) and in parallel otherwise, collecting results back
// into call order for deterministic message ordering.
func (l *Loop) dispatchToolCalls(ctx context.Context, sessionID string, tc *tool.Context, calls []llm.ToolCall, detector *toolLoopState) ([]llm.Message, bool, string) {
	if len(calls) == 1 {
		msg, stop, stopMsg := l.runOneToolCall(ctx, sessionID, tc, calls[0], detector)
		return []llm.Message{msg}, stop, stopMsg
	}

	type indexed struct {
		idx int
		msg llm.Message
		res tool.ExecutionResult
	}
	resultCh := make(chan indexed, len(calls))
	var wg sync.WaitGroup

	for _, c := range calls {
		l.bus.Publish(sessionID, protocol.EventToolCall, protocol.ToolCallPayload{ID: c.ID, Name: c.Name, Args: c.Arguments})
	}

	for i, c := range calls {
		wg.Add(1)
		go func(idx int, c llm.ToolCall) {
			defer wg.Done()
			msg, res := l.executeTool(ctx, sessionID, tc, c)
			resultCh <- indexed{idx: idx, msg: msg, res: res}
		}(i, c)
	}
	go func() { wg.Wait(); close(resultCh) }()

	collected := make([]indexed, 0, len(calls))
	for r := range resultCh {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })

	// Results are published only after the sort, so the event stream pairs
	// each tool.result with its tool.call in the model's emission order
	// even though execution completed in arbitrary order.
	msgs := make([]llm.Message, len(collected))
	var stop bool
	var stopMsg string
	for pos, r := range collected {
		l.publishToolResult(sessionID, r.res)
		msgs[pos] = r.msg
		argsHash := detector.record(calls[r.idx].Name, calls[r.idx].Arguments)
		detector.recordResult(argsHash, r.msg.Content)
		if level, _ := detector.detect(calls[r.idx].Name, argsHash); level == "critical" {
			stop = true
			stopMsg = toolLoopStuckMessage(calls[r.idx].Name)
		}
	}
	return msgs, stop, stopMsg
}

func (l *Loop) runOneToolCall(ctx context.Context, sessionID string, tc *tool.Context, c llm.ToolCall, detector *toolLoopState) (llm.Message, bool, string) {
	l.bus.Publish(sessionID, protocol.EventToolCall, protocol.ToolCallPayload{ID: c.ID, Name: c.Name, Args: c.Arguments})
	msg, res := l.executeTool(ctx, sessionID, tc, c)
	l.publishToolResult(sessionID, res)

	argsHash := detector.record(c.Name, c.Arguments)
	detector.recordResult(argsHash, msg.Content)
	if level, warnMsg := detector.detect(c.Name, argsHash); level != "" {
		if level == "critical" {
			slog.Warn("agent.tool_loop_critical", "session", sessionID, "tool", c.Name)
			return msg, true, toolLoopStuckMessage(c.Name)
		}
		slog.Warn("agent.tool_loop_warning", "session", sessionID, "tool", c.Name, "message", warnMsg)
	}
	return msg, false, ""
}

// executeTool dispatches c through the Tool Executor. Callers publish both
// the tool.call and tool.result events themselves: the parallel-dispatch
// path must hold results back until it can emit them in call order, so
// publishing cannot happen here at completion time.
func (l *Loop) executeTool(ctx context.Context, sessionID string, tc *tool.Context, c llm.ToolCall) (llm.Message, tool.ExecutionResult) {
	start := time.Now()
	end := l.tracer.StartSpan(sessionID, "tool:"+c.Name)
	res := l.executor.Execute(ctx, sessionID, tool.Invocation{CallID: c.ID, Name: c.Name, Args: c.Arguments}, tc)
	var spanErr error
	if res.Status == "error" {
		spanErr = fmt.Errorf("%s", res.Payload)
	}
	end(spanErr)
	slog.Debug("agent.tool_call", "session", sessionID, "tool", c.Name, "status", res.Status, "duration", time.Since(start))
	return llm.Message{Role: "tool", Content: res.Payload, ToolCallID: c.ID}, res
}

func (l *Loop) publishToolResult(sessionID string, res tool.ExecutionResult) {
	l.bus.Publish(sessionID, protocol.EventToolResult, protocol.ToolResultPayload{ID: res.CallID, Status: res.Status, Content: truncateForEvent(res.Payload)})
}

func composeMessages(history []session.Turn, userMessage string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: "system", Content: SystemPrompt})
	for _, t := range history {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	out = append(out, llm.Message{Role: "user", Content: userMessage})
	return out
}

// assistantContentForHistory persists the assistant's text plus a compact
// marker of which tools it called, since session.Turn has no structured
// tool-call field.
func assistantContentForHistory(resp *llm.ChatResponse) string {
	if resp.Content != "" {
		return resp.Content
	}
	names := make([]string, len(resp.ToolCalls))
	for i, c := range resp.ToolCalls {
		names[i] = c.Name
	}
	raw, _ := json.Marshal(names)
	return "[tool_calls:" + string(raw) + "]"
}

func truncateForEvent(s string) string {
	const max = 4000
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
