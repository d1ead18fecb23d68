package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and applies connection pragmas.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordActivation inserts an activation record
func (s *SQLiteStore) RecordActivation(ctx context.Context, a *Activation) error {
	if a.ID == "" {
		return fmt.Errorf("activation id is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO activations (id, component, component_type, app_id, namespace, status, error, error_code, property_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.Component,
		a.ComponentType,
		a.AppID,
		a.Namespace,
		a.Status,
		a.Error,
		a.ErrorCode,
		a.PropertyCount,
		a.Duration.Milliseconds(),
		a.CreatedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to record activation: %w", err)
	}

	return nil
}

// GetActivation retrieves an activation by ID
func (s *SQLiteStore) GetActivation(ctx context.Context, id string) (*Activation, error) {
	query := `
		SELECT id, component, component_type, app_id, namespace, status, error, error_code, property_count, duration_ms, created_at
		FROM activations
		WHERE id = ?
	`

	a, err := scanActivation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: activation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activation: %w", err)
	}

	return a, nil
}

// ListActivations lists activations matching filter, newest first
func (s *SQLiteStore) ListActivations(ctx context.Context, filter ActivationFilter) ([]*Activation, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Component != "" {
		conditions = append(conditions, "component = ?")
		args = append(args, filter.Component)
	}
	if filter.AppID != "" {
		conditions = append(conditions, "app_id = ?")
		args = append(args, filter.AppID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, component, component_type, app_id, namespace, status, error, error_code, property_count, duration_ms, created_at
		FROM activations
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	defer rows.Close()

	activations := []*Activation{}
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}
		activations = append(activations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activations: %w", err)
	}

	return activations, nil
}

// DeleteActivationsBefore deletes activations created before the given time
func (s *SQLiteStore) DeleteActivationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM activations WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete activations: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivation(row rowScanner) (*Activation, error) {
	a := &Activation{}
	var durationMs int64

	err := row.Scan(
		&a.ID,
		&a.Component,
		&a.ComponentType,
		&a.AppID,
		&a.Namespace,
		&a.Status,
		&a.Error,
		&a.ErrorCode,
		&a.PropertyCount,
		&durationMs,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Duration = time.Duration(durationMs) * time.Millisecond
	return a, nil
}
