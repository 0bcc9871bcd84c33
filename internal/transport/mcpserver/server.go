// Package mcpserver implements the MCP transport: every tool in the Tool
// Registry, the session-management tools, and the fixed workflow-prompt
// resource exposed over the Model Context Protocol via
// github.com/mark3labs/mcp-go. Tool registration is driven entirely by the
// registry — nothing here hardcodes a tool list.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgeline/forgeline/internal/tool"
	"github.com/forgeline/forgeline/pkg/protocol"
)

// TransportTag is this transport's identifier in the Session Manager's
// per-transport active-session index.
const TransportTag = "mcp"

// ContextFactory builds the per-call tool.Context for sessionID, mirroring
// the agent loop's own toolCtxFactory (internal/agent.Config.ToolCtxFactory)
// so both entry points construct tool contexts identically.
type ContextFactory func(sessionID string) *tool.Context

// Server wraps an *server.MCPServer configured from this repo's Tool
// Registry rather than a fixed tool list.
type Server struct {
	mcp        *server.MCPServer
	registry   *tool.Registry
	filters    *tool.FilterStore
	executor   *tool.Executor
	ctxFactory ContextFactory
}

// New builds a Server, registering every definition in registry
// (regardless of any session's current filter — the filter gates the agent
// loop and this server's own per-call visibility check, not registration)
// plus the fixed workflow-prompt resource.
func New(registry *tool.Registry, filters *tool.FilterStore, executor *tool.Executor, ctxFactory ContextFactory, workflowPrompt string) *Server {
	s := &Server{
		mcp:        server.NewMCPServer("forgeline", "1.0.0", server.WithToolCapabilities(true), server.WithResourceCapabilities(true, true)),
		registry:   registry,
		filters:    filters,
		executor:   executor,
		ctxFactory: ctxFactory,
	}
	for _, def := range registry.All() {
		s.mcp.AddTool(toMCPTool(def), s.handlerFor(def.Name))
	}
	s.mcp.AddResource(mcp.NewResource(
		protocol.WorkflowPromptResourceURI,
		"workflow-prompt",
		mcp.WithResourceDescription("The agent's fixed ReAct system prompt."),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: protocol.WorkflowPromptResourceURI, MIMEType: "text/plain", Text: workflowPrompt},
		}, nil
	})
	return s
}

// toMCPTool renders one Definition into an mcp.Tool via the registry's
// ExportSchema, so the MCP tool list and the LLM tool-binding payload are
// never allowed to describe a tool's parameters differently.
func toMCPTool(def tool.Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	schema := tool.ExportSchema(def)
	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}
	for name, prop := range schema.Properties {
		opts = append(opts, propOption(name, prop, required[name]))
	}
	return mcp.NewTool(def.Name, opts...)
}

func propOption(name string, p tool.PropSchema, required bool) mcp.ToolOption {
	var propOpts []mcp.PropertyOption
	if p.Description != "" {
		propOpts = append(propOpts, mcp.Description(p.Description))
	}
	if required {
		propOpts = append(propOpts, mcp.Required())
	}
	if len(p.Enum) > 0 {
		propOpts = append(propOpts, mcp.Enum(p.Enum...))
	}
	switch p.Type {
	case "number":
		return mcp.WithNumber(name, propOpts...)
	case "integer":
		return mcp.WithNumber(name, propOpts...)
	case "boolean":
		return mcp.WithBoolean(name, propOpts...)
	case "array":
		itemType := "string"
		if p.Items != nil {
			itemType = p.Items.Type
		}
		propOpts = append(propOpts, mcp.Items(map[string]any{"type": itemType}))
		return mcp.WithArray(name, propOpts...)
	case "object":
		return mcp.WithObject(name, propOpts...)
	default:
		return mcp.WithString(name, propOpts...)
	}
}

// handlerFor adapts one tool.Definition's dispatch path — the same
// Executor.Execute call the agent loop makes — to an mcp.CallToolRequest,
// recovering the session id from a "session_id" argument every MCP call
// must carry since, unlike the chat transport, one MCP connection is not
// implicitly bound to one session.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID, _ := args["session_id"].(string)
		if sessionID == "" {
			return mcp.NewToolResultError("session_id argument is required"), nil
		}
		delete(args, "session_id")

		tc := s.ctxFactory(sessionID)
		if !s.filters.Get(sessionID).Visible(mustLookup(s.registry, name)) {
			return mcp.NewToolResultError(fmt.Sprintf("tool %q is not visible under this session's current filter", name)), nil
		}

		res := s.executor.Execute(ctx, sessionID, tool.Invocation{CallID: req.Params.Name, Name: name, Args: args}, tc)
		if res.Status == "error" {
			return mcp.NewToolResultError(res.Payload), nil
		}
		return mcp.NewToolResultText(res.Payload), nil
	}
}

func mustLookup(r *tool.Registry, name string) tool.Definition {
	d, _ := r.Lookup(name)
	return d
}

// ServeStdio runs the server over stdio until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// ServeSSE starts the SSE-framed HTTP server on addr; it blocks until the
// server stops or errors.
func (s *Server) ServeSSE(addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcp, server.WithBaseURL(baseURL))
	return sseServer.Start(addr)
}

// ServeStreamableHTTP starts the streamable-HTTP-framed server on addr; it
// blocks until the server stops or errors. All three framings expose the
// same tool set — they share s.mcp.
func (s *Server) ServeStreamableHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcp)
	return httpServer.Start(addr)
}
