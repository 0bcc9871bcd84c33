// Package session implements the Session Manager: session lifecycle,
// conversation history, durable checkpoint persistence, and token/cost
// accounting, keyed by a flat, human-chosen session id.
package session

import "time"

// Turn is one entry in a session's conversation history. Role is one of
// "system", "user", "assistant", "tool".
type Turn struct {
	Role    string
	Content string
}

// Info is lightweight session metadata for listing.
type Info struct {
	ID           string
	Model        string
	Created      time.Time
	Updated      time.Time
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	TurnCount    int
}

// Session is the full in-memory state for one session: metadata plus the
// complete turn history. It is never mutated outside Manager's per-session
// lock.
type Session struct {
	Info
	History []Turn
}

// Checkpoint is an opaque per-transport blob (e.g. a websocket connection's
// resume cursor, or a REST client's ETag) the transport itself defines the
// shape of. The Session Manager only stores and retrieves it by
// (sessionID, transportTag).
type Checkpoint []byte
