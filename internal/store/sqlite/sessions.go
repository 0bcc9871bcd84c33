package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Row is the persisted metadata row for one session.
type Row struct {
	ID           string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// TurnRow is one persisted turn (system/user/assistant/tool message).
type TurnRow struct {
	SessionID string
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store is the DAO over the sqlite schema. It holds no cache and no locks —
// internal/session.Manager owns the per-session serialization the spec
// requires; this type only turns SQL into Go values.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const timeLayout = time.RFC3339Nano

// CreateSession inserts a new session row. If id is already taken, the
// driver's primary-key error is returned wrapped as "insert session: ...".
func (s *Store) CreateSession(ctx context.Context, id, model string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, model, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads one session row, or (nil, nil) if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*Row, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model, created_at, updated_at, input_tokens, output_tokens, cost_usd
		 FROM sessions WHERE id = ?`, id)

	var r Row
	var created, updated string
	if err := row.Scan(&r.ID, &r.Model, &created, &updated, &r.InputTokens, &r.OutputTokens, &r.CostUSD); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	r.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &r, nil
}

// ListSessions returns every session row, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, created_at, updated_at, input_tokens, output_tokens, cost_usd
		 FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var created, updated string
		if err := rows.Scan(&r.ID, &r.Model, &created, &updated, &r.InputTokens, &r.OutputTokens, &r.CostUSD); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		r.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes the session row and cascades to its turns/checkpoints.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetTurns loads every persisted turn for a session, in sequence order.
func (s *Store) GetTurns(ctx context.Context, sessionID string) ([]TurnRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, role, content, created_at FROM turns
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRow
	for rows.Next() {
		var t TurnRow
		var created string
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.Role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendTurnTx is the per-turn atomic unit of work: it inserts one or more
// turns, bumps the session's usage counters, and commits as a single
// transaction so a crash mid-turn can never leave a partial turn
// persisted. startSeq is the sequence number of the first turn in turns.
func (s *Store) AppendTurnTx(ctx context.Context, sessionID string, startSeq int, turns []TurnRow, inTok, outTok int64, costUSD float64, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		if _, err := stmt.ExecContext(ctx, sessionID, startSeq+i, t.Role, t.Content, now.Format(timeLayout)); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ?, input_tokens = input_tokens + ?, output_tokens = output_tokens + ?, cost_usd = cost_usd + ?
		 WHERE id = ?`, now.Format(timeLayout), inTok, outTok, costUSD, sessionID); err != nil {
		return fmt.Errorf("update session usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn tx: %w", err)
	}
	return nil
}

// SaveCheckpoint upserts the opaque per-transport checkpoint blob.
func (s *Store) SaveCheckpoint(ctx context.Context, sessionID, transportTag string, blob []byte, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, transport_tag, blob, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, transport_tag) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		sessionID, transportTag, blob, now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint blob for (sessionID, transportTag),
// or (nil, nil) if none has ever been saved.
func (s *Store) LoadCheckpoint(ctx context.Context, sessionID, transportTag string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM checkpoints WHERE session_id = ? AND transport_tag = ?`,
		sessionID, transportTag).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return blob, nil
}
