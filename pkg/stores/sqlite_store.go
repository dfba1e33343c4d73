package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements AssemblyStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
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

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

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

// Close closes the database connection.
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
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// GetAssembly returns the cached record for (path, modTime), or (nil, nil)
// on a cache miss.
func (s *SQLiteStore) GetAssembly(ctx context.Context, path string, modTime int64) (*AssemblyRecord, error) {
	query := `
		SELECT path, mod_time, name, version, inspected_at
		FROM assembly_metadata
		WHERE path = ? AND mod_time = ?
	`

	rec := &AssemblyRecord{}
	err := s.db.QueryRowContext(ctx, query, path, modTime).Scan(
		&rec.Path,
		&rec.ModTime,
		&rec.Name,
		&rec.Version,
		&rec.InspectedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assembly record: %w", err)
	}

	return rec, nil
}

// PutAssembly stores a record. Any row for the same path with a different
// mtime is stale and removed in the same transaction.
func (s *SQLiteStore) PutAssembly(ctx context.Context, rec *AssemblyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assembly_metadata WHERE path = ? AND mod_time != ?`,
		rec.Path, rec.ModTime,
	); err != nil {
		return fmt.Errorf("failed to prune stale records: %w", err)
	}

	query := `
		INSERT INTO assembly_metadata (path, mod_time, name, version, inspected_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, mod_time) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			inspected_at = excluded.inspected_at
	`

	if _, err := tx.ExecContext(ctx, query,
		rec.Path,
		rec.ModTime,
		rec.Name,
		rec.Version,
		rec.InspectedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to put assembly record: %w", err)
	}

	return tx.Commit()
}

// DeleteAssembly removes all cached records for a path.
func (s *SQLiteStore) DeleteAssembly(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM assembly_metadata WHERE path = ?`, path,
	); err != nil {
		return fmt.Errorf("failed to delete assembly records: %w", err)
	}
	return nil
}

// PruneBefore removes records inspected before the cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM assembly_metadata WHERE inspected_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune assembly records: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
