package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/manifest-network/factoryctl/internal/models"
)

const migrationsTable = "factoryctl_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresOutputHandler stores the run journal in PostgreSQL.
type PostgresOutputHandler struct {
	db *sql.DB
}

// NewPostgresOutputHandler connects to connString and applies pending migrations.
func NewPostgresOutputHandler(ctx context.Context, connString string) (*PostgresOutputHandler, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Connected to journal database")
	return NewWithDB(db), nil
}

// NewWithDB wraps an open database whose schema is already migrated.
func NewWithDB(db *sql.DB) *PostgresOutputHandler {
	return &PostgresOutputHandler{db: db}
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (h *PostgresOutputHandler) WriteRun(ctx context.Context, run *models.Run) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (id, master_account, factory_account, dao_account, network, phases, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`,
		run.ID,
		run.MasterAccount,
		run.FactoryAccount,
		run.DAOAccount,
		run.Network,
		strings.Join(run.Phases, ","),
		string(run.Status),
		nullString(run.Error),
		run.StartedAt,
		nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}
	return nil
}

func (h *PostgresOutputHandler) WriteStep(ctx context.Context, step *models.StepResult) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, seq, name, phase, status, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, seq) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms`,
		step.RunID,
		step.Seq,
		step.Name,
		step.Phase,
		string(step.Status),
		nullString(step.Error),
		step.StartedAt,
		step.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to write step %s: %w", step.Name, err)
	}
	return nil
}

func (h *PostgresOutputHandler) WriteArtifact(ctx context.Context, a *models.ArtifactRecord) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, label, path, hash, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, label) DO UPDATE SET
			path = EXCLUDED.path,
			hash = EXCLUDED.hash,
			size = EXCLUDED.size`,
		a.RunID,
		a.Label,
		a.Path,
		a.Hash,
		a.Size,
	)
	if err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", a.Label, err)
	}
	return nil
}

func (h *PostgresOutputHandler) Close() error {
	return h.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
