package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/forgeline/forgeline/internal/apperr"
)

// SessionTools returns create_session, list_sessions, set_active_session,
// get_current_session, and delete_session: the Session Manager's
// operations exposed as tools, always visible regardless of the active
// filter (internal/tool/policy.go's sessionToolNames).
func SessionTools() []Definition {
	return []Definition{
		{
			Name:        "create_session",
			Description: "Create a new session. The new session does not become any transport's active session.",
			Category:    CategorySession,
			Params: []Param{
				{Name: "model", Type: "string", Description: "Model identifier to associate with the new session.", Required: true},
				{Name: "id", Type: "string", Description: "Explicit session id; a uuid is generated if omitted.", Default: ""},
			},
			Handler: handleCreateSession,
		},
		{
			Name:        "list_sessions",
			Description: "List every known session, most recently updated first.",
			Category:    CategorySession,
			Params:      nil,
			Handler:     handleListSessions,
		},
		{
			Name:        "set_active_session",
			Description: "Mark a session as this transport's current active session.",
			Category:    CategorySession,
			Params: []Param{
				{Name: "id", Type: "string", Description: "Session id to activate.", Required: true},
				{Name: "transport", Type: "string", Description: "Transport tag (e.g. chat-ws, rest, mcp).", Required: true},
			},
			Handler: handleSetActiveSession,
		},
		{
			Name:        "get_current_session",
			Description: "Get the session currently active for a transport.",
			Category:    CategorySession,
			Params: []Param{
				{Name: "transport", Type: "string", Description: "Transport tag.", Required: true},
			},
			Handler: handleGetCurrentSession,
		},
		{
			Name:        "delete_session",
			Description: "Delete a session's metadata, history, checkpoints, and workspace files.",
			Category:    CategorySession,
			Params: []Param{
				{Name: "id", Type: "string", Description: "Session id to delete.", Required: true},
			},
			Handler: handleDeleteSession,
		},
	}
}

func handleCreateSession(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	model, _ := args["model"].(string)
	if model == "" {
		return Err("create_session: model is required")
	}
	id, _ := args["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	if _, err := tc.Sessions.Create(ctx, id, model); err != nil {
		return Err("create_session: %v", err)
	}
	return Ok(fmt.Sprintf("created session %s (model %s)", id, model))
}

func handleListSessions(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	infos, err := tc.Sessions.List(ctx)
	if err != nil {
		return Err("list_sessions: %v", err)
	}
	if len(infos) == 0 {
		return Ok("(no sessions)")
	}
	var b strings.Builder
	for _, info := range infos {
		fmt.Fprintf(&b, "%s\tmodel=%s\tturns=%d\tupdated=%s\n", info.ID, info.Model, info.TurnCount, info.Updated.Format("2006-01-02T15:04:05Z07:00"))
	}
	return Ok(b.String())
}

func handleSetActiveSession(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	id, _ := args["id"].(string)
	transport, _ := args["transport"].(string)
	if id == "" || transport == "" {
		return Err("set_active_session: id and transport are required")
	}
	if _, err := tc.Sessions.Open(ctx, id); err != nil {
		return Err("set_active_session: %v", err)
	}
	tc.Sessions.SetActive(transport, id)
	return Ok(fmt.Sprintf("session %s is now active for transport %s", id, transport))
}

func handleGetCurrentSession(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	transport, _ := args["transport"].(string)
	if transport == "" {
		return Err("get_current_session: transport is required")
	}
	id := tc.Sessions.CurrentOf(transport)
	if id == "" {
		return Err("get_current_session: %v", apperr.New(apperr.KindSessionNotFound, "no active session for transport %q", transport))
	}
	return Ok(id)
}

func handleDeleteSession(ctx context.Context, tc *Context, args map[string]interface{}) *Result {
	id, _ := args["id"].(string)
	if id == "" {
		return Err("delete_session: id is required")
	}
	if err := tc.Sessions.Delete(ctx, id); err != nil {
		return Err("delete_session: %v", err)
	}
	return Ok(fmt.Sprintf("deleted session %s", id))
}
