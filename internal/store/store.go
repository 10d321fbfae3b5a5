package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const timeLayout = time.RFC3339Nano

type AccountFilter struct {
	Type         ledger.AccountType
	Prefix       string
	PartyType    ledger.PartyType
	PostableOnly bool
	ActiveOnly   bool
	Limit        int
	Offset       int
}

type EntryFilter struct {
	FiscalYear int
	From       *time.Time
	To         *time.Time
	Origin     ledger.Origin
	Status     ledger.Status
	Limit      int
	Offset     int
}

// Store is one tenant's ledger database. Writes go through a single
// connection so write transactions are serialized; reads use a pool.
type Store struct {
	writer *sqlx.DB
	reader *sqlx.DB
	log    log.Logger
}

func Open(ctx context.Context, dbPath string) (*Store, error) {
	base := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	writer, err := sqlx.Open("sqlite", base+"&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sqlx.Open("sqlite", base)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(runtime.NumCPU())

	s := &Store{writer: writer, reader: reader, log: log.New("store").With("db", dbPath)}

	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.writer.DB, fsys)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		s.log.Debug("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

func (s *Store) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Tx is a storage transaction. Write transactions come from WithTx, read
// snapshots from Snapshot; both expose the same query methods.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx runs fn inside a serialized write transaction. Any error rolls
// back everything fn did.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.writer.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapSQLiteError(err))
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapSQLiteError(err))
	}
	return nil
}

// Snapshot runs fn against a consistent read view of the database.
func (s *Store) Snapshot(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.reader.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	// A deferred transaction pins its snapshot on the first read.
	var one int
	if err := tx.GetContext(ctx, &one, `SELECT 1 FROM counters LIMIT 1`); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	return fn(&Tx{tx: tx})
}

// ErrKeyConflict marks a unique-key violation: another writer took the
// same entry number or account code first. It always comes wrapped
// together with ledger.ErrConcurrencyConflict.
var ErrKeyConflict = errors.New("unique key taken")

// mapSQLiteError turns unique-constraint violations and busy errors into
// ErrConcurrencyConflict. Only the former also carry ErrKeyConflict.
func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w: %v", ledger.ErrConcurrencyConflict, ErrKeyConflict, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(ledger.DateLayout, s)
	return t
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(ledger.DateLayout), Valid: true}
}
