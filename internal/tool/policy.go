package tool

import "sync"

// FilterMode selects a tool-visibility view: "all" (every tool),
// "essential" (fixed allow-list), or "custom" (union of category tags).
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterEssential FilterMode = "essential"
	FilterCustom    FilterMode = "custom"
)

// essentialAllowList is the fixed minimum workflow subset: spec
// create/read, file write/read, list files, linter, simulator.
var essentialAllowList = map[string]bool{
	"write_spec":       true,
	"read_spec":        true,
	"write_file":       true,
	"read_file":        true,
	"list_files_tool":  true,
	"linter_tool":      true,
	"simulation_tool":  true,
}

// sessionToolNames is always included regardless of mode.
var sessionToolNames = map[string]bool{
	"create_session":        true,
	"list_sessions":         true,
	"set_active_session":    true,
	"get_current_session":   true,
	"delete_session":        true,
	"configure_tool_filter": true,
}

// Filter is one session's currently active visibility configuration.
type Filter struct {
	Mode       FilterMode
	Categories []Category // only meaningful when Mode == FilterCustom
}

// Visible reports whether d is visible under f. The underlying handler for
// an invisible tool still exists in the Registry
// — Visible only gates the executor's dispatch and the schema export seen
// by the model/MCP client.
func (f Filter) Visible(d Definition) bool {
	if sessionToolNames[d.Name] {
		return true
	}
	switch f.Mode {
	case FilterEssential:
		return essentialAllowList[d.Name]
	case FilterCustom:
		for _, c := range f.Categories {
			if d.Category == c {
				return true
			}
		}
		return false
	default: // FilterAll, or zero-value defaults to "all"
		return true
	}
}

// FilterStore tracks each session's active Filter, defaulting new sessions
// to defaultMode. The store is keyed by session id only, since
// configure_tool_filter itself is session-scoped (no transport parameter
// in its contract).
type FilterStore struct {
	mu      sync.RWMutex
	filters map[string]Filter
	deflt   Filter
}

// NewFilterStore builds a FilterStore with the given default filter for
// sessions that have never called configure_tool_filter.
func NewFilterStore(deflt Filter) *FilterStore {
	return &FilterStore{filters: make(map[string]Filter), deflt: deflt}
}

// Get returns sessionID's active filter, or the store default if unset.
func (s *FilterStore) Get(sessionID string) Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.filters[sessionID]; ok {
		return f
	}
	return s.deflt
}

// Set updates sessionID's active filter.
func (s *FilterStore) Set(sessionID string, f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[sessionID] = f
}

// VisibleDefs returns every definition from r visible under sessionID's
// current filter, sorted by name.
func (s *FilterStore) VisibleDefs(r *Registry, sessionID string) []Definition {
	f := s.Get(sessionID)
	all := r.All()
	out := make([]Definition, 0, len(all))
	for _, d := range all {
		if f.Visible(d) {
			out = append(out, d)
		}
	}
	return out
}
