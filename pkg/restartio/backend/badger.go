package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
)

// maxConflictRetries bounds how often a write is replayed after a
// transaction conflict with another rank writing the same dataset.
const maxConflictRetries = 8

// Key layout:
//
//	m/<group>\x00<dataset>                  -> mode byte
//	d/<group>\x00<dataset>\x00<rank slot>   -> data
const (
	metaPrefix = "m/"
	dataPrefix = "d/"
)

// Badger is a Badger-backed backend. A file is a Badger directory.
//
// Badger locks its directory, so ranks in one process that open the same
// directory share one database handle.
type Badger struct {
	file     *badgerFile
	group    procgroup.Group
	readOnly bool

	mu     sync.RWMutex
	closed bool
}

// badgerFile is one open Badger database shared by several handles.
type badgerFile struct {
	dir  string
	db   *badger.DB
	refs int
}

var (
	badgerFilesMu sync.Mutex
	badgerFiles   = make(map[string]*badgerFile)
)

// OpenBadger opens the Badger checkpoint directory dir for g. Badger's own
// log output goes to logger, or nowhere if logger is nil.
//
// OpenCreate on the root rank discards existing contents. OpenAppend and
// OpenRead require the directory to hold a database.
func OpenBadger(dir string, mode OpenMode, g procgroup.Group, logger *slog.Logger) (*Badger, error) {
	dir = filepath.Clean(dir)

	badgerFilesMu.Lock()
	defer badgerFilesMu.Unlock()

	f, open := badgerFiles[dir]
	switch mode {
	case OpenCreate:
		if open && procgroup.IsRoot(g) {
			if err := f.db.DropAll(); err != nil {
				return nil, fmt.Errorf("badger: discard contents: %w", err)
			}
		}
		if !open && procgroup.IsRoot(g) {
			if err := os.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("badger: remove existing dir: %w", err)
			}
		}
	case OpenAppend, OpenRead:
		if !open {
			if _, err := os.Stat(filepath.Join(dir, "MANIFEST")); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%w: %s", ErrFileNotFound, dir)
				}
				return nil, fmt.Errorf("badger: stat dir: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidOpenMode, int(mode))
	}

	if !open {
		opts := badger.DefaultOptions(dir).
			WithLogger(nil).
			WithMemTableSize(8 << 20).
			WithValueLogFileSize(16 << 20)
		if logger != nil {
			opts = opts.WithLogger(&badgerLogger{logger: logger})
		}

		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("badger: open db: %w", err)
		}
		f = &badgerFile{dir: dir, db: db}
		badgerFiles[dir] = f
	}
	f.refs++

	return &Badger{file: f, group: g, readOnly: mode == OpenRead}, nil
}

func metaKey(group, dataset string) []byte {
	return []byte(metaPrefix + group + "\x00" + dataset)
}

func dataKey(group, dataset string, slot int) []byte {
	return []byte(dataPrefix + group + "\x00" + dataset + "\x00" + strconv.Itoa(slot))
}

func (b *Badger) slot(mode DataSetMode) int {
	if mode == RootOnly {
		return rootRank
	}
	return b.group.Rank()
}

// Write implements Backend.
func (b *Badger) Write(group, dataset string, data []byte, mode DataSetMode) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if b.readOnly {
		return ErrReadOnly
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return err
	}
	if mode == RootOnly && !procgroup.IsRoot(b.group) {
		return nil
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	for attempt := 0; ; attempt++ {
		err = b.file.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(metaKey(group, dataset))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				if err := txn.Set(metaKey(group, dataset), []byte{byte(mode)}); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				existing, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if len(existing) != 1 || DataSetMode(existing[0]) != mode {
					return ErrModeMismatch
				}
			}
			return txn.Set(dataKey(group, dataset, b.slot(mode)), stored)
		})
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			break
		}
	}

	if err != nil && !errors.Is(err, ErrModeMismatch) {
		return fmt.Errorf("badger: write dataset: %w", err)
	}
	return err
}

// Read implements Backend.
func (b *Badger) Read(group, dataset string, mode DataSetMode) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	group, err := checkAddress(group, dataset, mode)
	if err != nil {
		return nil, err
	}

	var result []byte
	err = b.file.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(group, dataset))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		existing, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(existing) != 1 || DataSetMode(existing[0]) != mode {
			return ErrModeMismatch
		}

		item, err = txn.Get(dataKey(group, dataset, b.slot(mode)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrModeMismatch) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("badger: read dataset: %w", err)
	}

	if result == nil {
		result = []byte{}
	}
	return result, nil
}

// List implements Backend.
func (b *Badger) List(group string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}
	group = NormalizeGroup(group)

	names := make(map[string]struct{})
	err := b.file.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), metaPrefix)
			g, name, ok := strings.Cut(key, "\x00")
			if !ok {
				continue
			}
			if g == group {
				names[name] = struct{}{}
				continue
			}
			if child, ok := childOf(group, g); ok {
				names[child] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list group: %w", err)
	}
	return sortedNames(names), nil
}

// Close implements Backend. The database closes with its last handle.
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	badgerFilesMu.Lock()
	defer badgerFilesMu.Unlock()

	f := b.file
	f.refs--
	if f.refs > 0 {
		return nil
	}
	delete(badgerFiles, f.dir)
	if err := f.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "badger"))
}
