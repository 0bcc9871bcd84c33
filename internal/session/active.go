package session

import "sync"

// ActiveIndex tracks each transport's notion of "current session"
// independently, so a websocket client and a REST client (or two distinct
// websocket connections) never trample each other's active session. A
// session may be current in many transports at once. This is explicit
// per-transport state — there is no process-wide "current session".
type ActiveIndex struct {
	mu      sync.RWMutex
	current map[string]string // transport tag -> session id
}

func newActiveIndex() *ActiveIndex {
	return &ActiveIndex{current: make(map[string]string)}
}

// Set marks id as the current session for transport.
func (a *ActiveIndex) Set(transport, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current[transport] = id
}

// Get returns the current session id for transport, or "" if none is set.
func (a *ActiveIndex) Get(transport string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current[transport]
}

// Clear removes transport's active-session mark, if any.
func (a *ActiveIndex) Clear(transport string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.current, transport)
}

// activeIn reports whether id is the current session in any transport.
func (a *ActiveIndex) activeIn(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, v := range a.current {
		if v == id {
			return true
		}
	}
	return false
}
