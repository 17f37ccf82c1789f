package linkcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

const (
	// DriverModernc selects the pure Go driver.
	DriverModernc = "sqlite"

	// DriverMattn selects the cgo driver.
	DriverMattn = "sqlite3"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Driver is DriverModernc (default) or DriverMattn.
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// SQLiteBackend implements Backend on a local SQLite file in WAL mode.
type SQLiteBackend struct {
	db        *sql.DB
	path      string
	interval  time.Duration
	done      chan struct{}
	closeOnce sync.Once

	insertStmt   *sql.Stmt
	getStmt      *sql.Stmt
	deleteStmt   *sql.Stmt
	findStmt     *sql.Stmt
	sweepStmt    *sql.Stmt
	statsStmt    *sql.Stmt
	checkpointMu sync.Mutex
}

// NewSQLiteBackend opens (creating if needed) the database at cfg.Path.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:       db,
		path:     cfg.Path,
		interval: cfg.CheckpointInterval,
		done:     make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func sqliteDSN(cfg SQLiteConfig) (string, error) {
	ms := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverModernc:
		return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
			cfg.Path, ms), nil
	case DriverMattn:
		return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
			cfg.Path, ms), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS download_tokens (
		token_digest TEXT PRIMARY KEY,
		source_system TEXT NOT NULL,
		ref_digest TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_download_tokens_expires ON download_tokens(expires_at);
	CREATE INDEX IF NOT EXISTS idx_download_tokens_ref ON download_tokens(source_system, ref_digest);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	// The conditional upsert only replaces an expired row; a live one
	// leaves zero rows affected.
	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO download_tokens (token_digest, source_system, ref_digest, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (token_digest) DO UPDATE SET
			source_system = excluded.source_system,
			ref_digest = excluded.ref_digest,
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE download_tokens.expires_at <= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT token_digest, source_system, ref_digest, payload, created_at, expires_at
		FROM download_tokens
		WHERE token_digest = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM download_tokens WHERE token_digest = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.findStmt, err = s.db.Prepare(`
		SELECT token_digest, source_system, ref_digest, payload, created_at, expires_at
		FROM download_tokens
		WHERE source_system = ? AND ref_digest = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare find statement: %w", err)
	}

	s.sweepStmt, err = s.db.Prepare(`DELETE FROM download_tokens WHERE expires_at <= ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare sweep statement: %w", err)
	}

	s.statsStmt, err = s.db.Prepare(`
		SELECT source_system,
			SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END)
		FROM download_tokens
		GROUP BY source_system
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stats statement: %w", err)
	}

	return nil
}

// Insert implements Backend.
func (s *SQLiteBackend) Insert(ctx context.Context, rec *Record, now time.Time) error {
	if rec == nil || rec.Digest == "" {
		return fmt.Errorf("record digest cannot be empty")
	}

	res, err := s.insertStmt.ExecContext(ctx,
		rec.Digest,
		string(rec.Source),
		rec.RefDigest,
		rec.Payload,
		rec.CreatedAt.UnixNano(),
		rec.ExpiresAt.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrCollision
	}
	return nil
}

// Get implements Backend.
func (s *SQLiteBackend) Get(ctx context.Context, digest string) (*Record, error) {
	rec, err := scanRecord(s.getStmt.QueryRowContext(ctx, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}
	return rec, nil
}

// Delete implements Backend.
func (s *SQLiteBackend) Delete(ctx context.Context, digest string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, digest); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

// FindLive implements Backend.
func (s *SQLiteBackend) FindLive(ctx context.Context, source SourceSystem, refDigest string, now time.Time) (*Record, error) {
	rec, err := scanRecord(s.findStmt.QueryRowContext(ctx, string(source), refDigest, now.UnixNano()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return rec, nil
}

// DeleteExpired implements Backend.
func (s *SQLiteBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.sweepStmt.ExecContext(ctx, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep links: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Stats implements Backend.
func (s *SQLiteBackend) Stats(ctx context.Context, now time.Time) (Stats, error) {
	stats := Stats{BySource: make(map[SourceSystem]int)}

	rows, err := s.statsStmt.QueryContext(ctx, now.UnixNano(), now.UnixNano())
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source          string
			active, expired int
		)
		if err := rows.Scan(&source, &active, &expired); err != nil {
			return stats, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Active += active
		stats.Expired += expired
		if active > 0 {
			stats.BySource[SourceSystem(source)] = active
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate stats: %w", err)
	}

	stats.Total = stats.Active + stats.Expired
	return stats, nil
}

// Ping implements Backend.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the checkpoint loop, checkpoints once more and closes the database.
func (s *SQLiteBackend) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.checkpoint()

		for _, stmt := range []*sql.Stmt{s.insertStmt, s.getStmt, s.deleteStmt, s.findStmt, s.sweepStmt, s.statsStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

// checkpointLoop periodically folds the WAL back into the main file.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkpoint()
		case <-s.done:
			return
		}
	}
}

func (s *SQLiteBackend) checkpoint() {
	s.checkpointMu.Lock()
	defer s.checkpointMu.Unlock()

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                Record
		source             string
		created, expiresAt int64
	)
	if err := row.Scan(&rec.Digest, &source, &rec.RefDigest, &rec.Payload, &created, &expiresAt); err != nil {
		return nil, err
	}
	rec.Source = SourceSystem(source)
	rec.CreatedAt = time.Unix(0, created)
	rec.ExpiresAt = time.Unix(0, expiresAt)
	return &rec, nil
}
