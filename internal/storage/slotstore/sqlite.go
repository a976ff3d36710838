package slotstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yndnr/worldsave/internal/core/domain"
)

// SQLiteFile is the database file name inside the store directory.
const SQLiteFile = "slots.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS slots (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps slots as rows of a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database in dir.
func NewSQLiteStore(dir string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("slotstore: sqlite dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("slotstore: create dir: %w", err)
	}

	path := filepath.Join(filepath.Clean(dir), SQLiteFile)
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("slotstore: open sqlite: %w", err)
	}
	// One writer at a time; readers share the same connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("slotstore: ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("slotstore: create schema: %w", err)
	}

	logger.Info("sqlite slot store opened", "path", path)
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("slotstore: list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("slotstore: list: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slotstore: list: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM slots WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlotNotFound.WithDetails("%s", name)
		}
		return nil, fmt.Errorf("slotstore: get %s: %w", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SQLiteStore) Write(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO slots (name, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`, name, data, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("slotstore: write %s: %w", name, err)
	}
	s.logger.Debug("slot written", "slot", name, "bytes", len(data))
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("slotstore: delete %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Stat(ctx context.Context, name string) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	var size, stamp int64
	err := s.db.QueryRowContext(ctx,
		`SELECT length(data), updated_at FROM slots WHERE name = ?`, name).Scan(&size, &stamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, domain.ErrSlotNotFound.WithDetails("%s", name)
		}
		return Entry{}, fmt.Errorf("slotstore: stat %s: %w", name, err)
	}
	return Entry{Name: name, Size: size, ModTime: time.Unix(0, stamp)}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("slotstore: close sqlite: %w", err)
	}
	return nil
}
