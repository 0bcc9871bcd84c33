package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/forgeline/forgeline/internal/apperr"
)

// Invocation is one resolved ToolCall ready for dispatch.
type Invocation struct {
	CallID string
	Name   string
	Args   map[string]interface{}
}

// ExecutionResult is what the Tool Executor hands back to the agent loop
// step 6: status, payload, duration, and byte count.
type ExecutionResult struct {
	CallID   string
	Status   string // "success" | "error"
	Payload  string
	Duration time.Duration
	Bytes    int
	Async    bool
}

// Executor dispatches ToolCalls: resolves the tool, validates arguments
// against its schema, resolves the session context, invokes the handler,
// and captures a structured result. Validation goes through
// santhosh-tekuri/jsonschema/v6 so a BadArgs failure lists every missing
// or mistyped field uniformly, instead of each handler hand-rolling its
// own `args["x"].(string)` checks.
type Executor struct {
	registry *Registry
	filters  *FilterStore

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewExecutor constructs an Executor over registry, using filters to resolve
// each session's current tool visibility.
func NewExecutor(registry *Registry, filters *FilterStore) *Executor {
	return &Executor{registry: registry, filters: filters, compiled: make(map[string]*jsonschema.Schema)}
}

// Execute dispatches one tool call scoped to sessionID. The executor never
// retries and never
// propagates handler panics into the agent loop's control flow beyond a
// converted error ExecutionResult.
func (e *Executor) Execute(ctx context.Context, sessionID string, inv Invocation, tc *Context) ExecutionResult {
	start := time.Now()

	// Step 1: resolve tool + visibility.
	def, ok := e.registry.Lookup(inv.Name)
	if !ok {
		return e.errorResult(inv, start, apperr.New(apperr.KindToolNotVisible, "unknown tool %q", inv.Name).Error())
	}
	if e.filters != nil && !e.filters.Get(sessionID).Visible(def) {
		return e.errorResult(inv, start, apperr.New(apperr.KindToolNotVisible, "tool %q is not visible under the active filter", inv.Name).Error())
	}

	// Step 2: validate arguments against schema.
	if msg := e.validate(def, inv.Args); msg != "" {
		return e.errorResult(inv, start, apperr.New(apperr.KindBadArgs, "%s", msg).Error())
	}

	// Step 3: session context is already bound via tc (caller resolves it).
	tc.SessionID = sessionID

	// Step 4/5: invoke handler, recovering from a handler panic as a
	// structured error rather than letting it unwind into the agent loop.
	result := e.invoke(ctx, def, tc, inv.Args)

	elapsed := time.Since(start)
	status := "success"
	if result.IsError {
		status = "error"
	}
	if status == "error" {
		slog.Warn("tool.error", "tool", inv.Name, "call_id", inv.CallID, "message", truncate(result.Text, 200))
	} else {
		slog.Debug("tool.ok", "tool", inv.Name, "call_id", inv.CallID, "duration", elapsed)
	}

	return ExecutionResult{
		CallID:   inv.CallID,
		Status:   status,
		Payload:  result.Text,
		Duration: elapsed,
		Bytes:    len(result.Text),
		Async:    result.Async,
	}
}

func (e *Executor) invoke(ctx context.Context, def Definition, tc *Context, args map[string]interface{}) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Err("tool %q panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, tc, args)
}

func (e *Executor) errorResult(inv Invocation, start time.Time, message string) ExecutionResult {
	return ExecutionResult{
		CallID:   inv.CallID,
		Status:   "error",
		Payload:  message,
		Duration: time.Since(start),
		Bytes:    len(message),
	}
}

// validate returns a non-empty BadArgs message listing every missing or
// mistyped field, or "" if args satisfy def's schema.
func (e *Executor) validate(def Definition, args map[string]interface{}) string {
	sch, err := e.schemaFor(def)
	if err != nil {
		slog.Warn("tool.schema_compile_failed", "tool", def.Name, "error", err)
		return ""
	}
	instance := normalizeForValidation(args)
	if err := sch.Validate(instance); err != nil {
		return fmt.Sprintf("invalid arguments for %q: %v", def.Name, err)
	}
	return ""
}

func (e *Executor) schemaFor(def Definition) (*jsonschema.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sch, ok := e.compiled[def.Name]; ok {
		return sch, nil
	}

	raw, err := json.Marshal(ExportSchema(def))
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", def.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", def.Name, err)
	}

	c := jsonschema.NewCompiler()
	resourceURL := "forgeline://tool/" + def.Name
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", def.Name, err)
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", def.Name, err)
	}
	e.compiled[def.Name] = sch
	return sch, nil
}

// normalizeForValidation round-trips args through JSON so numeric types
// match what jsonschema expects from decoded JSON (float64), since model/
// MCP-supplied arguments may arrive as typed Go values (e.g. int).
func normalizeForValidation(args map[string]interface{}) map[string]interface{} {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
