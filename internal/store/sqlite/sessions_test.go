package sqlite

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestStore_CreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateSession(ctx, "sess-1", "claude-sonnet-4-5", now); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	r, err := s.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if r == nil {
		t.Fatal("GetSession() = nil, want row")
	}
	if r.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q", r.Model)
	}
	if !r.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, now)
	}
}

func TestStore_GetMissingSessionIsNil(t *testing.T) {
	s := newTestStore(t)
	r, err := s.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if r != nil {
		t.Fatalf("GetSession() = %+v, want nil", r)
	}
}

func TestStore_DuplicateCreateFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateSession(ctx, "sess-1", "m", now); err != nil {
		t.Fatalf("first CreateSession() error = %v", err)
	}
	if err := s.CreateSession(ctx, "sess-1", "m", now); err == nil {
		t.Fatal("second CreateSession() succeeded, want primary-key violation")
	}
}

func TestStore_AppendTurnTxAtomicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.CreateSession(ctx, "sess-1", "m", now); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	turns := []TurnRow{
		{Role: "user", Content: "build a 4-bit counter"},
		{Role: "assistant", Content: "writing the spec first"},
	}
	if err := s.AppendTurnTx(ctx, "sess-1", 0, turns, 120, 45, 0.015, now); err != nil {
		t.Fatalf("AppendTurnTx() error = %v", err)
	}

	got, err := s.GetTurns(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetTurns() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetTurns() = %d turns, want 2", len(got))
	}
	if got[0].Seq != 0 || got[1].Seq != 1 {
		t.Errorf("sequences = %d,%d, want 0,1", got[0].Seq, got[1].Seq)
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Errorf("roles = %q,%q", got[0].Role, got[1].Role)
	}

	r, _ := s.GetSession(ctx, "sess-1")
	if r.InputTokens != 120 || r.OutputTokens != 45 {
		t.Errorf("usage = %d/%d, want 120/45", r.InputTokens, r.OutputTokens)
	}

	// A duplicate seq violates the (session_id, seq) primary key and must
	// roll back the whole batch, usage update included.
	err = s.AppendTurnTx(ctx, "sess-1", 1, []TurnRow{{Role: "user", Content: "again"}}, 10, 10, 0, now)
	if err == nil {
		t.Fatal("AppendTurnTx() with colliding seq succeeded, want error")
	}
	r, _ = s.GetSession(ctx, "sess-1")
	if r.InputTokens != 120 {
		t.Errorf("usage after failed tx = %d, want unchanged 120", r.InputTokens)
	}
	got, _ = s.GetTurns(ctx, "sess-1")
	if len(got) != 2 {
		t.Errorf("turns after failed tx = %d, want unchanged 2", len(got))
	}
}

func TestStore_ListSessionsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()

	if err := s.CreateSession(ctx, "older", "m", t0); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := s.CreateSession(ctx, "newer", "m", t0.Add(time.Second)); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	rows, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "newer" {
		t.Fatalf("ListSessions() = %+v, want newer first", rows)
	}
}

func TestStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateSession(ctx, "sess-1", "m", now); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := s.AppendTurnTx(ctx, "sess-1", 0, []TurnRow{{Role: "user", Content: "hi"}}, 1, 1, 0, now); err != nil {
		t.Fatalf("AppendTurnTx() error = %v", err)
	}
	if err := s.SaveCheckpoint(ctx, "sess-1", "chat-ws", []byte(`{}`), now); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}

	if err := s.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	turns, err := s.GetTurns(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetTurns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns after delete = %d, want 0", len(turns))
	}
	blob, err := s.LoadCheckpoint(ctx, "sess-1", "chat-ws")
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if blob != nil {
		t.Errorf("checkpoint after delete = %q, want nil", blob)
	}
}

func TestStore_CheckpointUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.CreateSession(ctx, "sess-1", "m", now); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := s.SaveCheckpoint(ctx, "sess-1", "chat-ws", []byte(`{"v":1}`), now); err != nil {
		t.Fatalf("first SaveCheckpoint() error = %v", err)
	}
	if err := s.SaveCheckpoint(ctx, "sess-1", "chat-ws", []byte(`{"v":2}`), now); err != nil {
		t.Fatalf("second SaveCheckpoint() error = %v", err)
	}

	blob, err := s.LoadCheckpoint(ctx, "sess-1", "chat-ws")
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if string(blob) != `{"v":2}` {
		t.Errorf("LoadCheckpoint() = %s, want {\"v\":2}", blob)
	}

	// Transport tags are independent keys.
	if blob, _ := s.LoadCheckpoint(ctx, "sess-1", "mcp"); blob != nil {
		t.Errorf("LoadCheckpoint(mcp) = %s, want nil", blob)
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
}
