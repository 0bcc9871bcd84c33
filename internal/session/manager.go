package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgeline/forgeline/internal/apperr"
	"github.com/forgeline/forgeline/internal/store/sqlite"
)

// WorkspaceRemover deletes a session's confined filesystem directory.
// Implemented by internal/workspace.Store; declared here (rather than
// imported concretely) so the Session Manager only depends on the one
// method it actually calls, per the deletion-ordering rule.
type WorkspaceRemover interface {
	RemoveSession(id string) error
}

// Manager is the Session Manager: in-memory cache of hot sessions backed by
// the sqlite store, one write-lock per session (serial writes per session,
// concurrent reads of last-committed state across sessions), and the
// per-transport active-session indirection.
type Manager struct {
	store     *sqlite.Store
	workspace WorkspaceRemover

	mu    sync.RWMutex
	cache map[string]*Session

	locks sync.Map // session id -> *sync.Mutex, serializes writes per session

	active *ActiveIndex
}

// NewManager constructs a Manager over an already-migrated sqlite.Store.
// workspace may be nil in tests that don't exercise deletion.
func NewManager(store *sqlite.Store, workspace WorkspaceRemover) *Manager {
	return &Manager{
		store:     store,
		workspace: workspace,
		cache:     make(map[string]*Session),
		active:    newActiveIndex(),
	}
}

func (m *Manager) writeLock(id string) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Create inserts a new session row with the given id and model. Fails with
// apperr.KindSessionConflict if id already exists.
func (m *Manager) Create(ctx context.Context, id, model string) (*Session, error) {
	lock := m.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	_, cached := m.cache[id]
	m.mu.RUnlock()
	if cached {
		return nil, apperr.New(apperr.KindSessionConflict, "session %q already exists", id)
	}

	now := time.Now()
	if err := m.store.CreateSession(ctx, id, model, now); err != nil {
		return nil, apperr.Wrap(apperr.KindSessionConflict, fmt.Errorf("session %q: %w", id, err))
	}

	s := &Session{Info: Info{ID: id, Model: model, Created: now, Updated: now}}
	m.mu.Lock()
	m.cache[id] = s
	m.mu.Unlock()
	return s, nil
}

// Open returns the session's current state, loading from the store and
// populating the cache on a miss. Read failure yields empty
// history rather than an error — new-session semantics — except when the
// session row itself is absent, which is SessionNotFound.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	// Clone while still holding the lock: writers mutate the cached
	// session's History under m.mu, so the copy must not race them.
	m.mu.RLock()
	if s, ok := m.cache[id]; ok {
		out := cloneSession(s)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	row, err := m.store.GetSession(ctx, id)
	if err != nil {
		// Persistence read failure: behave as if the session were new/empty
		// rather than fail the caller outright.
		return &Session{Info: Info{ID: id}}, nil
	}
	if row == nil {
		return nil, apperr.New(apperr.KindSessionNotFound, "session %q not found", id)
	}

	turns, err := m.store.GetTurns(ctx, id)
	if err != nil {
		turns = nil
	}
	history := make([]Turn, len(turns))
	for i, t := range turns {
		history[i] = Turn{Role: t.Role, Content: t.Content}
	}

	s := &Session{
		Info: Info{
			ID: row.ID, Model: row.Model, Created: row.CreatedAt, Updated: row.UpdatedAt,
			InputTokens: row.InputTokens, OutputTokens: row.OutputTokens, CostUSD: row.CostUSD,
			TurnCount: len(history),
		},
		History: history,
	}

	m.mu.Lock()
	m.cache[id] = s
	out := cloneSession(s)
	m.mu.Unlock()
	return out, nil
}

// List returns metadata for every session, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	rows, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistenceError, err)
	}
	out := make([]Info, len(rows))
	for i, r := range rows {
		out[i] = Info{
			ID: r.ID, Model: r.Model, Created: r.CreatedAt, Updated: r.UpdatedAt,
			InputTokens: r.InputTokens, OutputTokens: r.OutputTokens, CostUSD: r.CostUSD,
		}
	}
	return out, nil
}

// Delete removes a session's metadata, turns, checkpoints, and workspace
// directory. Refuses (apperr.KindSessionConflict) if id is the active
// session in any transport
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.active.activeIn(id) {
		return apperr.New(apperr.KindSessionConflict, "session %q is active in a transport; clear it first", id)
	}

	lock := m.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, err)
	}

	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
	m.locks.Delete(id)

	if m.workspace != nil {
		if err := m.workspace.RemoveSession(id); err != nil {
			return apperr.Wrap(apperr.KindPersistenceError, fmt.Errorf("remove workspace for %q: %w", id, err))
		}
	}
	return nil
}

// AppendTurn persists one or more turns as one atomic unit, so a crash
// mid-turn cannot leave a partial turn persisted. The agent loop calls it
// once per user message, passing the turns of every iteration of that run
// (assistant turns, their tool-result turns, and the final assistant turn).
func (m *Manager) AppendTurn(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	lock := m.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.openLocked(ctx, id)
	if err != nil {
		return err
	}

	startSeq := len(s.History)
	rows := make([]sqlite.TurnRow, len(turns))
	for i, t := range turns {
		rows[i] = sqlite.TurnRow{SessionID: id, Seq: startSeq + i, Role: t.Role, Content: t.Content}
	}

	now := time.Now()
	if err := m.store.AppendTurnTx(ctx, id, startSeq, rows, 0, 0, 0, now); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, err)
	}

	m.mu.Lock()
	s.History = append(s.History, turns...)
	s.Updated = now
	s.TurnCount = len(s.History)
	m.mu.Unlock()
	return nil
}

// RecordUsage accumulates token counts and cost onto the session's running
// totals, committed in the same transactional style as AppendTurn.
func (m *Manager) RecordUsage(ctx context.Context, id string, inTok, outTok int64, costUSD float64) error {
	lock := m.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.openLocked(ctx, id); err != nil {
		return err
	}

	now := time.Now()
	if err := m.store.AppendTurnTx(ctx, id, -1, nil, inTok, outTok, costUSD, now); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, err)
	}

	m.mu.Lock()
	if s, ok := m.cache[id]; ok {
		s.InputTokens += inTok
		s.OutputTokens += outTok
		s.CostUSD += costUSD
		s.Updated = now
	}
	m.mu.Unlock()
	return nil
}

// Touch bumps the session's updated-at timestamp without recording any
// usage or history, so callers that mutate session-scoped state outside the
// Manager (typically internal/workspace.Store's OnMutate hook on a file
// write) can keep Session.Updated accurate without the Workspace Store
// depending on the Manager.
func (m *Manager) Touch(ctx context.Context, id string) error {
	return m.RecordUsage(ctx, id, 0, 0, 0)
}

// SaveCheckpoint persists an opaque per-transport blob. A write failure is
// fatal to the in-flight turn — callers should treat a
// non-nil error as terminating the current operation, not a warning.
func (m *Manager) SaveCheckpoint(ctx context.Context, id, transportTag string, blob Checkpoint) error {
	if err := m.store.SaveCheckpoint(ctx, id, transportTag, blob, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindPersistenceError, err)
	}
	return nil
}

// LoadCheckpoint returns the last saved checkpoint, or nil if none exists.
// A read failure yields empty-checkpoint (new-session) semantics rather
// than an error.
func (m *Manager) LoadCheckpoint(ctx context.Context, id, transportTag string) Checkpoint {
	blob, err := m.store.LoadCheckpoint(ctx, id, transportTag)
	if err != nil {
		return nil
	}
	return blob
}

// SetActive marks id as transport's current session.
func (m *Manager) SetActive(transport, id string) { m.active.Set(transport, id) }

// CurrentOf returns transport's current session id, or "" if unset.
func (m *Manager) CurrentOf(transport string) string { return m.active.Get(transport) }

// ClearActive removes transport's active-session mark.
func (m *Manager) ClearActive(transport string) { m.active.Clear(transport) }

// openLocked loads id into the cache if needed. Caller must hold id's write lock.
func (m *Manager) openLocked(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.cache[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	row, err := m.store.GetSession(ctx, id)
	if err != nil || row == nil {
		return nil, apperr.New(apperr.KindSessionNotFound, "session %q not found", id)
	}
	turns, _ := m.store.GetTurns(ctx, id)
	history := make([]Turn, len(turns))
	for i, t := range turns {
		history[i] = Turn{Role: t.Role, Content: t.Content}
	}
	s = &Session{
		Info: Info{
			ID: row.ID, Model: row.Model, Created: row.CreatedAt, Updated: row.UpdatedAt,
			InputTokens: row.InputTokens, OutputTokens: row.OutputTokens, CostUSD: row.CostUSD,
			TurnCount: len(history),
		},
		History: history,
	}
	m.mu.Lock()
	m.cache[id] = s
	m.mu.Unlock()
	return s, nil
}

func cloneSession(s *Session) *Session {
	out := *s
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return &out
}
