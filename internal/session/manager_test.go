package session

import (
	"context"
	"testing"

	"github.com/forgeline/forgeline/internal/apperr"
	"github.com/forgeline/forgeline/internal/store/sqlite"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(sqlite.NewStore(db), nil)
}

func TestManager_CreateAndOpen(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "sess-1", "claude-sonnet-4-5"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s, err := m.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want claude-sonnet-4-5", s.Model)
	}
	if len(s.History) != 0 {
		t.Errorf("History = %v, want empty", s.History)
	}
}

func TestManager_CreateDuplicateConflicts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx, "sess-1", "model"); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := m.Create(ctx, "sess-1", "model")
	if apperr.KindOf(err) != apperr.KindSessionConflict {
		t.Fatalf("second Create() kind = %v, want SessionConflict", apperr.KindOf(err))
	}
}

func TestManager_OpenMissingIsNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Open(context.Background(), "nope")
	if apperr.KindOf(err) != apperr.KindSessionNotFound {
		t.Fatalf("Open() kind = %v, want SessionNotFound", apperr.KindOf(err))
	}
}

func TestManager_AppendTurnAndUsage(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Create(ctx, "sess-1", "model"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.AppendTurn(ctx, "sess-1",
		Turn{Role: "user", Content: "lint top module"},
		Turn{Role: "assistant", Content: "running lint..."},
	); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := m.RecordUsage(ctx, "sess-1", 100, 40, 0.02); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	s, err := m.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(s.History) != 2 {
		t.Fatalf("History = %v, want 2 turns", s.History)
	}
	if s.InputTokens != 100 || s.OutputTokens != 40 {
		t.Errorf("usage = %d/%d, want 100/40", s.InputTokens, s.OutputTokens)
	}

	// A second Open against the now-evicted-from-memory-or-not cache must
	// still reflect the persisted history, proving the cache isn't lying.
	delete(m.cache, "sess-1")
	s2, err := m.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if len(s2.History) != 2 || s2.History[0].Content != "lint top module" {
		t.Fatalf("reloaded History = %v, want 2 turns starting with the user turn", s2.History)
	}
}

func TestManager_DeleteRefusesActiveSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Create(ctx, "sess-1", "model"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	m.SetActive("chatws", "sess-1")

	err := m.Delete(ctx, "sess-1")
	if apperr.KindOf(err) != apperr.KindSessionConflict {
		t.Fatalf("Delete() kind = %v, want SessionConflict while active", apperr.KindOf(err))
	}

	m.ClearActive("chatws")
	if err := m.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete() after clearing active error = %v", err)
	}
	if _, err := m.Open(ctx, "sess-1"); apperr.KindOf(err) != apperr.KindSessionNotFound {
		t.Fatalf("Open() after Delete() kind = %v, want SessionNotFound", apperr.KindOf(err))
	}
}

func TestManager_ActiveSessionPerTransport(t *testing.T) {
	m := newTestManager(t)
	m.SetActive("chatws", "sess-a")
	m.SetActive("rest", "sess-b")

	if got := m.CurrentOf("chatws"); got != "sess-a" {
		t.Errorf("CurrentOf(chatws) = %q, want sess-a", got)
	}
	if got := m.CurrentOf("rest"); got != "sess-b" {
		t.Errorf("CurrentOf(rest) = %q, want sess-b", got)
	}
	if got := m.CurrentOf("mcp"); got != "" {
		t.Errorf("CurrentOf(mcp) = %q, want empty", got)
	}
}

func TestManager_CheckpointRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Create(ctx, "sess-1", "model"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got := m.LoadCheckpoint(ctx, "sess-1", "chatws"); got != nil {
		t.Errorf("LoadCheckpoint() before save = %v, want nil", got)
	}

	want := Checkpoint(`{"lastSeq":3}`)
	if err := m.SaveCheckpoint(ctx, "sess-1", "chatws", want); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}
	got := m.LoadCheckpoint(ctx, "sess-1", "chatws")
	if string(got) != string(want) {
		t.Errorf("LoadCheckpoint() = %s, want %s", got, want)
	}
}
