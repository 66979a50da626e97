package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/tagtrack-api/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator aplica las migraciones embebidas y registra las aplicadas en schema_migrations.
type Migrator struct {
	pool  *pgxpool.Pool
	files fs.FS
	log   *logger.Logger
}

// NewMigrator crea el runner con las migraciones del binario.
func NewMigrator(pool *pgxpool.Pool, log *logger.Logger) *Migrator {
	sub, _ := fs.Sub(migrationsFS, "migrations")
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{pool: pool, files: sub, log: log.Named("migrator")}
}

// Run aplica en orden alfabético las migraciones pendientes, cada una en su transacción.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	if _, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	names, err := PendingMigrations(m.files, applied)
	if err != nil {
		return 0, err
	}

	for _, name := range names {
		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := m.apply(ctx, name, string(content)); err != nil {
			return 0, err
		}
		m.log.Info().Str("migration", name).Msg("migración aplicada")
	}
	if len(names) == 0 {
		m.log.Debug().Msg("base de datos al día")
	}
	return len(names), nil
}

func (m *Migrator) apply(ctx context.Context, name, sql string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("run migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// PendingMigrations devuelve los .sql de files que no están en applied, ordenados.
func PendingMigrations(files fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") || applied[e.Name()] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
