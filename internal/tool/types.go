// Package tool implements the Tool Registry and Tool Executor: the single
// source of truth for every callable tool, its argument schema, its
// category, and the per-session visibility filter (one filter per session,
// shared by every transport),
// dispatched to a handler bound to one session's context. Tools live in an
// explicit table populated at startup — no reflection or auto-discovery —
// with schema export as a pure function over that table.
package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeline/forgeline/internal/job"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/internal/subprocess"
	"github.com/forgeline/forgeline/internal/workspace"
)

// Category is one of the fixed tags from the catalog.
type Category string

const (
	CategoryEssential    Category = "essential"
	CategoryVerification Category = "verification"
	CategorySynthesis    Category = "synthesis"
	CategoryEditing      Category = "editing"
	CategoryReporting    Category = "reporting"
	CategorySession      Category = "session"
	CategoryOther        Category = "other"
)

// Result is the unified return value of a tool handler; the executor fills
// in duration and byte count around whatever the handler returns.
type Result struct {
	Text    string // textual payload sent back to the model
	IsError bool
	Async   bool // the underlying operation is running asynchronously (e.g. start_synthesis)
}

// Ok builds a successful Result.
func Ok(text string) *Result { return &Result{Text: text} }

// Err builds an error Result. Tool handlers never panic/return a Go error
// for expected failures — Go errors are
// reserved for programming bugs the executor itself cannot recover from.
func Err(format string, args ...interface{}) *Result {
	return &Result{Text: fmt.Sprintf(format, args...), IsError: true}
}

// AsyncOk marks a Result as an asynchronous kickoff (e.g. start_synthesis
// returning a run-id immediately).
func AsyncOk(text string) *Result { return &Result{Text: text, Async: true} }

// Context is the per-invocation handle passed to every tool handler. Tools
// never receive a global/ambient session; every call is explicitly scoped.
type Context struct {
	SessionID  string
	Sessions   *session.Manager
	Workspace  *workspace.Store
	Jobs       *job.Supervisor
	Runner     *subprocess.Runner
	Config     ToolConfig
	SetFilter  func(mode FilterMode, categories []Category) // configure_tool_filter's effect
	Registry   *Registry                                    // self-reference, for configure_tool_filter's "active tool count"
}

// workspaceDir returns the absolute host directory backing this call's
// session workspace, for tools that shell out with a working directory
// rather than going through the confined Read/Write API.
func (tc *Context) workspaceDir() string {
	return tc.Workspace.Root(tc.SessionID)
}

// ToolConfig is the subset of internal/config.Config individual tools need,
// kept narrow so this package doesn't import internal/config directly.
type ToolConfig struct {
	LinterPath       string
	LinterArgs       []string
	SimulatorPath    string
	SimulatorArgs    []string
	CocotbPath       string
	FormalPath       string
	SchematicScript  string
	DefaultSoftTO    time.Duration
	DefaultHardTO    time.Duration
	MaxOutputBytes   int64
}

// Handler executes one tool call against a bound session Context.
type Handler func(ctx context.Context, tc *Context, args map[string]interface{}) *Result

// Param describes one named argument in a tool's schema.
type Param struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "array", "object"
	Description string
	Required    bool
	Default     interface{}
	Enum        []string
	Items       string // element type, when Type == "array"
}

// Definition is one entry in the Tool Registry: everything the three
// transports and the agent loop need to call and describe a tool.
type Definition struct {
	Name        string
	Description string
	Category    Category
	Params      []Param
	Handler     Handler
}
