// Package rest implements the REST transport: session CRUD, workspace
// file access, and synthesis job control over plain JSON request/response
// bodies. One handler struct per resource group, RegisterRoutes(mux)
// mounting Go 1.22+ method-pattern routes. Route spellings come from
// pkg/protocol.
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/forgeline/forgeline/internal/agent"
	"github.com/forgeline/forgeline/internal/apperr"
	"github.com/forgeline/forgeline/internal/job"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/internal/workspace"
	"github.com/forgeline/forgeline/pkg/protocol"
)

// TransportTag is this transport's identifier in the Session Manager's
// per-transport active-session index.
const TransportTag = "rest"

// Server exposes the core over REST.
type Server struct {
	loop       *agent.Loop
	sessions   *session.Manager
	workspaces *workspace.Store
	jobs       *job.Supervisor
}

// New constructs a rest Server.
func New(loop *agent.Loop, sessions *session.Manager, workspaces *workspace.Store, jobs *job.Supervisor) *Server {
	return &Server{loop: loop, sessions: sessions, workspaces: workspaces, jobs: jobs}
}

// RegisterRoutes mounts every REST endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+protocol.RouteSessionsList, s.handleListSessions)
	mux.HandleFunc("POST "+protocol.RouteSessionsCreate, s.handleCreateSession)
	mux.HandleFunc("GET "+protocol.RouteSessionsGet, s.handleGetSession)
	mux.HandleFunc("DELETE "+protocol.RouteSessionsDelete, s.handleDeleteSession)
	mux.HandleFunc("POST "+protocol.RouteSessionsGet+"/message", s.handleSendMessage)

	mux.HandleFunc("GET "+protocol.RouteWorkspaceList, s.handleListFiles)
	mux.HandleFunc("GET "+protocol.RouteWorkspaceRead, s.handleReadFile)

	mux.HandleFunc("POST "+protocol.RouteJobStart, s.handleStartJob)
	mux.HandleFunc("GET "+protocol.RouteJobStatus, s.handleJobStatus)
	mux.HandleFunc("GET "+protocol.RouteJobWait, s.handleJobWait)
	mux.HandleFunc("POST "+protocol.RouteJobCancel, s.handleJobCancel)
}

// -- sessions --------------------------------------------------------------

type createSessionRequest struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.ID, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	s.sessions.SetActive(TransportTag, req.ID)
	writeJSON(w, http.StatusCreated, sess.Info)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Open(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// handleSendMessage runs one synchronous turn and returns its final result;
// intermediate streaming is the chat transport's concern.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	s.sessions.SetActive(TransportTag, id)
	res, err := s.loop.Run(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// -- workspace ---------------------------------------------------------------

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rel := r.URL.Query().Get("path")
	entries, err := s.workspaces.ListFiles(id, rel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path := r.PathValue("path")
	content, err := s.workspaces.ReadFile(id, path)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(content)
}

// -- synthesis jobs ----------------------------------------------------------

type startJobRequest struct {
	job.Params
	BindMounts map[string]string `json:"bind_mounts,omitempty"`
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	runID, err := s.jobs.Start(r.Context(), id, req.Params, req.BindMounts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	j, err := s.jobs.Status(runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleJobWait(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	upTo := 60 * time.Second
	if v := r.URL.Query().Get("timeout_s"); v != "" {
		if secs, err := time.ParseDuration(v + "s"); err == nil {
			upTo = secs
		}
	}
	j, err := s.jobs.Wait(r.Context(), runID, upTo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	s.jobs.Cancel(runID)
	w.WriteHeader(http.StatusNoContent)
}

// -- helpers ------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an apperr.Kind to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindSessionNotFound, apperr.KindNotFound, apperr.KindConflictNotFound:
		status = http.StatusNotFound
	case apperr.KindSessionConflict, apperr.KindJobConflict:
		status = http.StatusConflict
	case apperr.KindBadArgs, apperr.KindWorkspacePathEscape, apperr.KindFileTooLarge:
		status = http.StatusBadRequest
	case apperr.KindTimeout:
		status = http.StatusGatewayTimeout
	case apperr.KindCancelled:
		status = http.StatusRequestTimeout
	case apperr.KindToolNotVisible, apperr.KindToolMissing:
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
