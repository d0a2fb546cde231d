// Package sqlite reads records from a SQLite table through the pure-Go
// modernc.org/sqlite driver.
//
// Enumeration is keyset-paginated (WHERE key > ? ORDER BY key LIMIT n) so no
// read cursor stays open while tasks run; that keeps point reads from
// concurrent tasks free of lock contention.
//
// An in-memory database (":memory:" or a mode=memory URI) exists per
// connection, so the pool is pinned to one connection for those paths.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/cacheloader/backend"
	"github.com/unkn0wn-root/cacheloader/config"
)

const (
	Kind            = "sqlite"
	defaultTable    = "cache_entries"
	defaultPageSize = 512
)

var (
	ErrNoPath  = errors.New("sqlite backend: path is required")
	validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func init() {
	backend.Register(Kind, func(s config.Section) (backend.Backend, error) {
		var cfg Config
		if s != nil {
			if err := s.Decode(&cfg); err != nil {
				return nil, err
			}
		}
		return New(cfg)
	})
}

type Config struct {
	Path     string `yaml:"path" toml:"path"`
	Table    string `yaml:"table" toml:"table"`         // "" => cache_entries
	PageSize int    `yaml:"page_size" toml:"page_size"` // keys per enumeration query
	MaxConns int    `yaml:"max_conns" toml:"max_conns"` // 0 => driver default; forced to 1 in memory
}

func inMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

type Store struct {
	cfg Config
	db  atomic.Pointer[sql.DB]

	qGet, qHead, qLen, qFirst, qAfter, qPut, qDel string
}

var (
	_ backend.Backend    = (*Store)(nil)
	_ backend.HeadReader = (*Store)(nil)
	_ backend.Writer     = (*Store)(nil)
)

// New validates cfg. The database is opened by Open.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if !validIdent.MatchString(cfg.Table) {
		return nil, fmt.Errorf("sqlite backend: invalid table name %q", cfg.Table)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	t := cfg.Table
	return &Store{
		cfg:    cfg,
		qGet:   `SELECT record FROM ` + t + ` WHERE key = ?`,
		qHead:  `SELECT substr(record, 1, ?) FROM ` + t + ` WHERE key = ?`,
		qLen:   `SELECT COUNT(*) FROM ` + t,
		qFirst: `SELECT key FROM ` + t + ` ORDER BY key LIMIT ?`,
		qAfter: `SELECT key FROM ` + t + ` WHERE key > ? ORDER BY key LIMIT ?`,
		qPut:   `INSERT INTO ` + t + ` (key, record) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET record = excluded.record`,
		qDel:   `DELETE FROM ` + t + ` WHERE key = ?`,
	}, nil
}

func (s *Store) Name() string { return Kind }

// Open opens the database, enables WAL and creates the table on first run.
func (s *Store) Open(ctx context.Context) error {
	if s.db.Load() != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	switch {
	case inMemory(s.cfg.Path):
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	case s.cfg.MaxConns > 0:
		db.SetMaxOpenConns(s.cfg.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: wal mode: %w", err)
	}
	if err := s.migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	s.db.Store(db)
	return nil
}

func (s *Store) migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.cfg.Table+` (
		key    TEXT PRIMARY KEY,
		record BLOB NOT NULL
	)`)
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	db := s.db.Load()
	if db == nil {
		return nil, backend.ErrNotOpen
	}
	return db, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var b []byte
	err = db.QueryRowContext(ctx, s.qGet, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Head(ctx context.Context, key string, n int) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var b []byte
	err = db.QueryRowContext(ctx, s.qHead, n, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Len(ctx context.Context) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, s.qLen).Scan(&n)
	return n, err
}

func (s *Store) Put(ctx context.Context, key string, record []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, s.qPut, key, record)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, s.qDel, key)
	return err
}

func (s *Store) Keys(context.Context) backend.KeyIterator {
	db, err := s.conn()
	if err != nil {
		return backend.ErrIterator(err)
	}
	return &pageIter{s: s, db: db}
}

func (s *Store) Close(context.Context) error {
	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

type pageIter struct {
	s       *Store
	db      *sql.DB
	page    []string
	pos     int
	last    string
	started bool
	done    bool
	err     error
}

func (it *pageIter) Next(ctx context.Context) bool {
	if it.pos+1 < len(it.page) {
		it.pos++
		return true
	}
	if it.done || it.err != nil {
		return false
	}
	if err := it.fetch(ctx); err != nil {
		it.err = err
		return false
	}
	if len(it.page) == 0 {
		it.done = true
		return false
	}
	it.pos = 0
	return true
}

func (it *pageIter) fetch(ctx context.Context) error {
	var (
		rows *sql.Rows
		err  error
	)
	if it.started {
		rows, err = it.db.QueryContext(ctx, it.s.qAfter, it.last, it.s.cfg.PageSize)
	} else {
		rows, err = it.db.QueryContext(ctx, it.s.qFirst, it.s.cfg.PageSize)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	it.page = it.page[:0]
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		it.page = append(it.page, k)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if n := len(it.page); n > 0 {
		it.last, it.started = it.page[n-1], true
	}
	if len(it.page) < it.s.cfg.PageSize {
		// short page: nothing after it at query time
		it.done = true
	}
	return nil
}

func (it *pageIter) Key() string { return it.page[it.pos] }
func (it *pageIter) Err() error  { return it.err }

func (it *pageIter) Close() error {
	it.done = true
	it.page = nil
	return nil
}
