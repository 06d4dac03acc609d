package backend

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// memoryPath is the SQLite path for a private in-memory database.
const memoryPath = ":memory:"

// SQLite persists a checkpoint file in a SQLite database.
// Several ranks may open the same path; writes from each are serialized
// by SQLite's own locking.
type SQLite struct {
	db       *sql.DB
	group    procgroup.Group
	readOnly bool

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens the checkpoint file at path for g.
// The path should be a file path (e.g., "./restart.db") or ":memory:" for testing.
//
// OpenCreate on the root rank empties an existing database in place, so
// ranks that attached before it stay on the same file; a file that is not
// a SQLite database is replaced. Writes made before the root's create are
// discarded. OpenAppend and OpenRead require the file to exist.
func OpenSQLite(path string, mode OpenMode, g procgroup.Group) (*SQLite, error) {
	if path != memoryPath {
		if err := prepareFile(path, mode, g); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas are per connection, and ":memory:" is per connection too
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if mode == OpenRead {
		if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable query-only: %w", err)
		}
		return &SQLite{db: db, group: g, readOnly: true}, nil
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			grp TEXT NOT NULL,
			name TEXT NOT NULL,
			proc_rank INTEGER NOT NULL,
			mode INTEGER NOT NULL,
			written_at TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (grp, name, proc_rank)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if mode == OpenCreate && procgroup.IsRoot(g) {
		if _, err := db.Exec("DELETE FROM datasets"); err != nil {
			db.Close()
			return nil, fmt.Errorf("truncate datasets: %w", err)
		}
	}

	return &SQLite{db: db, group: g}, nil
}

// prepareFile applies open-mode semantics to the file on disk.
func prepareFile(path string, mode OpenMode, g procgroup.Group) error {
	switch mode {
	case OpenCreate:
		if !procgroup.IsRoot(g) {
			return nil
		}
		ok, err := isSQLiteFile(path)
		if err != nil || ok {
			return err
		}
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove existing file: %w", err)
			}
		}
		return nil
	case OpenAppend, OpenRead:
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return fmt.Errorf("stat file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOpenMode, int(mode))
	}
}

// sqliteMagic starts every non-empty SQLite database file.
const sqliteMagic = "SQLite format 3\x00"

// isSQLiteFile reports whether path holds a SQLite database that can be
// emptied in place. A missing file reports false.
func isSQLiteFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open existing file: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(sqliteMagic))
	n, err := io.ReadFull(f, head)
	switch {
	case n == 0 && (err == nil || errors.Is(err, io.EOF)):
		return true, nil
	case err != nil:
		return false, nil
	}
	return string(head) == sqliteMagic, nil
}

// slot is the rank column a dataset is stored under for this session.
func (s *SQLite) slot(mode DataSetMode) int {
	if mode == RootOnly {
		return rootRank
	}
	return s.group.Rank()
}

// prefixEnd is the smallest string above every group under prefix, which
// ends in '/'. Text compares bytewise, so the range holds for any UTF-8.
func prefixEnd(prefix string) string {
	return prefix[:len(prefix)-1] + "0" // '0' follows '/'
}

// Write implements Backend.
func (s *SQLite) Write(group, dataset string, data []byte, mode DataSetMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return err
	}
	if mode == RootOnly && !procgroup.IsRoot(s.group) {
		return nil
	}
	if data == nil {
		data = []byte{}
	}

	// One statement, so the mode check and the upsert are atomic
	res, err := s.db.Exec(`
		INSERT INTO datasets (grp, name, proc_rank, mode, written_at, data)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM datasets
			WHERE grp = ? AND name = ? AND mode <> ?
		)
		ON CONFLICT(grp, name, proc_rank) DO UPDATE SET
			written_at = excluded.written_at,
			data = excluded.data
	`, group, dataset, s.slot(mode), int(mode), time.Now().UTC().Format(time.RFC3339Nano), data,
		group, dataset, int(mode))
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	if n == 0 {
		return ErrModeMismatch
	}
	return nil
}

// Read implements Backend.
func (s *SQLite) Read(group, dataset string, mode DataSetMode) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRow(`
		SELECT data FROM datasets
		WHERE grp = ? AND name = ? AND proc_rank = ?
	`, group, dataset, s.slot(mode)).Scan(&data)
	if err == nil {
		if data == nil {
			data = []byte{}
		}
		return data, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var stored int
	err = s.db.QueryRow(`
		SELECT mode FROM datasets
		WHERE grp = ? AND name = ?
		LIMIT 1
	`, group, dataset).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("check dataset mode: %w", err)
	case DataSetMode(stored) != mode:
		return nil, ErrModeMismatch
	default:
		// Same mode, different rank: this rank has no slice
		return nil, ErrNotFound
	}
}

// List implements Backend.
func (s *SQLite) List(group string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	group = NormalizeGroup(group)

	prefix := group
	if prefix != "/" {
		prefix += "/"
	}

	rows, err := s.db.Query(`
		SELECT DISTINCT grp, name FROM datasets
		WHERE grp = ? OR (grp >= ? AND grp < ?)
	`, group, prefix, prefixEnd(prefix))
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var g, name string
		if err := rows.Scan(&g, &name); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		if g == group {
			names[name] = struct{}{}
			continue
		}
		if child, ok := childOf(group, g); ok {
			names[child] = struct{}{}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	return sortedNames(names), nil
}

// Close implements Backend.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
