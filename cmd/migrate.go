package cmd

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/store/sqlite"
)

// migrateCmd manages the embedded sqlite schema. Migrations are compiled
// into the binary and applied automatically on gateway start; this command
// exists for running them ahead of time (e.g. in a container entrypoint)
// and for inspecting the current schema version.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration management",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateVersionCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			db, err := sqlite.Open(cfg.DataRoot)
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			defer db.Close()

			v, err := schemaVersion(db)
			if err != nil {
				return err
			}
			cmd.Printf("migration complete, schema version %d\n", v)
			return nil
		},
	}
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			// Open the raw file rather than sqlite.Open so "version" never
			// mutates the schema as a side effect.
			path := filepath.Join(cfg.DataRoot, "forgeline.db")
			db, err := sql.Open("sqlite", path+"?mode=ro")
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer db.Close()

			v, err := schemaVersion(db)
			if err != nil {
				return err
			}
			cmd.Printf("schema version: %d\n", v)
			return nil
		},
	}
}

func schemaVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}
