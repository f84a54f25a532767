package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/observer/pkg/domain"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	type TEXT NOT NULL,
	pk INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (type, pk)
);
CREATE TABLE IF NOT EXISTS sequences (
	type TEXT PRIMARY KEY,
	last INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS links (
	through TEXT NOT NULL,
	src INTEGER NOT NULL,
	dst INTEGER NOT NULL,
	PRIMARY KEY (through, src, dst)
);
CREATE INDEX IF NOT EXISTS idx_links_dst ON links(through, dst);
`

// Store implements ports.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// NextID bumps the per-type sequence inside a transaction.
func (s *Store) NextID(ctx context.Context, typeName string) (domain.PK, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sequences (type, last) VALUES (?, 1)
		ON CONFLICT(type) DO UPDATE SET last = last + 1`, typeName)
	if err != nil {
		return 0, fmt.Errorf("failed to bump sequence of %s: %w", typeName, err)
	}

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT last FROM sequences WHERE type = ?`, typeName).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to read sequence of %s: %w", typeName, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence: %w", err)
	}
	return domain.PK(last), nil
}

// Put upserts the row as JSON.
func (s *Store) Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error {
	if record == nil {
		record = domain.Record{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (type, pk, data) VALUES (?, ?, ?)
		ON CONFLICT(type, pk) DO UPDATE SET data = excluded.data`,
		typeName, int64(pk), string(data))
	if err != nil {
		return fmt.Errorf("failed to save %s#%d: %w", typeName, pk, err)
	}
	return nil
}

// Get loads the row.
func (s *Store) Get(ctx context.Context, typeName string, pk domain.PK) (domain.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM entities WHERE type = ? AND pk = ?`,
		typeName, int64(pk)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load %s#%d: %w", typeName, pk, err)
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row: %w", err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return domain.NormalizeRecord(rec), nil
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context, typeName string, pk domain.PK) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE type = ? AND pk = ?`, typeName, int64(pk))
	if err != nil {
		return fmt.Errorf("failed to delete %s#%d: %w", typeName, pk, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s#%d: %w", typeName, pk, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the keys of the type in ascending order.
func (s *Store) List(ctx context.Context, typeName string) ([]domain.PK, error) {
	return s.queryPKs(ctx, `SELECT pk FROM entities WHERE type = ? ORDER BY pk`, typeName)
}

// Link inserts the pair, ignoring duplicates.
func (s *Store) Link(ctx context.Context, through string, src, dst domain.PK) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO links (through, src, dst) VALUES (?, ?, ?)`,
		through, int64(src), int64(dst))
	if err != nil {
		return fmt.Errorf("failed to link %s: %w", through, err)
	}
	return nil
}

// Unlink deletes the pair if present.
func (s *Store) Unlink(ctx context.Context, through string, src, dst domain.PK) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE through = ? AND src = ? AND dst = ?`,
		through, int64(src), int64(dst))
	if err != nil {
		return fmt.Errorf("failed to unlink %s: %w", through, err)
	}
	return nil
}

// Links returns the keys linked to pk on the given side.
func (s *Store) Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error) {
	query := `SELECT dst FROM links WHERE through = ? AND src = ? ORDER BY dst`
	if side == domain.TargetSide {
		query = `SELECT src FROM links WHERE through = ? AND dst = ? ORDER BY src`
	}
	return s.queryPKs(ctx, query, through, int64(pk))
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryPKs(ctx context.Context, query string, args ...any) ([]domain.PK, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	pks := []domain.PK{}
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		pks = append(pks, domain.PK(n))
	}
	return pks, rows.Err()
}
