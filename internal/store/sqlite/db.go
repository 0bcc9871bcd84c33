// Package sqlite is the core's single persistence backend: session
// metadata, turn history, and per-transport checkpoints in one local
// database file. Multi-tenant deployments are out of scope, so there is
// exactly one store — no backend selection at startup.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if necessary) the sqlite database at dataRoot and
// applies any pending migrations.
func Open(dataRoot string) (*sql.DB, error) {
	path := filepath.Join(dataRoot, "forgeline.db")

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite tolerates exactly one writer; cap the pool so concurrent
	// sessions queue on busy_timeout instead of racing into SQLITE_BUSY.
	db.SetMaxOpenConns(8)

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migration is one embedded up-migration, ordered by its numeric prefix.
type migration struct {
	version int
	name    string
	upSQL   string
}

// migrateDB applies every embedded migration not yet recorded in
// schema_migrations, in version order, each inside its own transaction.
//
// golang-migrate/migrate/v4's only sqlite backend imports
// mattn/go-sqlite3, a cgo driver — pulling it in would silently
// reintroduce the cgo dependency the pure-Go modernc.org/sqlite choice
// exists to avoid. The same idiom (ordered, numbered, embedded .sql files
// with up/down pairs, version tracked in a table) is applied directly
// against database/sql instead.
func migrateDB(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.upSQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		versionStr, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(versionStr)
		if err != nil {
			return nil, fmt.Errorf("migration filename %q: not numbered", name)
		}
		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, upSQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
