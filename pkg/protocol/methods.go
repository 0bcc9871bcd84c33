package protocol

// ProtocolVersion gates wire-compatibility across transports; bump on any
// breaking change to the event or method vocabulary.
const ProtocolVersion = 1

// REST route names. Declared as constants rather than scattered
// string literals so each route has one spelling; only the REST transport
// mounts them.
const (
	RouteSessionsList   = "/sessions"
	RouteSessionsCreate = "/sessions"
	RouteSessionsGet    = "/sessions/{id}"
	RouteSessionsDelete = "/sessions/{id}"

	RouteWorkspaceList = "/sessions/{id}/files"
	RouteWorkspaceRead = "/sessions/{id}/files/{path}"

	RouteJobStart  = "/sessions/{id}/synthesis"
	RouteJobStatus = "/synthesis/{runId}"
	RouteJobWait   = "/synthesis/{runId}/wait"
	RouteJobCancel = "/synthesis/{runId}/cancel"
)

// Session-management tool names exposed identically by the Tool Registry
// and the MCP transport's extra session-management operations.
const (
	ToolCreateSession    = "create_session"
	ToolListSessions     = "list_sessions"
	ToolSetActiveSession = "set_active_session"
	ToolGetCurrentSession = "get_current_session"
	ToolDeleteSession    = "delete_session"
)

// WorkflowPromptResourceURI names the fixed MCP resource exposing the system prompt.
const WorkflowPromptResourceURI = "forgeline://workflow-prompt"
