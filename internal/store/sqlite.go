package store

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DefaultCommitEvery is the number of rows inserted per bulk-load transaction.
const DefaultCommitEvery = 1000

// SQLiteStore owns the single database handle shared by every pipeline stage.
type SQLiteStore struct {
	db          *sqlx.DB
	commitEvery int
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithCommitEvery sets how many rows LoadRows inserts per transaction.
func WithCommitEvery(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.commitEvery = n
		}
	}
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: the pipeline is sequential and SQLite serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db, commitEvery: DefaultCommitEvery}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate creates the fixed-shape tables. Source-shaped tables are created
// on demand by EnsureTable.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := s.EnsureEstimateTable(ctx); err != nil {
		return err
	}
	return s.EnsureLoadLogTable(ctx)
}

// Reset drops every pipeline table. Estimates are dropped first.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, table := range []string{TableEstimates, TableLocations, TableCEJST, TablePropertyCodes, TableLoadLog} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return eris.Wrapf(err, "sqlite: drop %s", table)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validTable rejects table names that cannot be used unquoted in DDL.
func validTable(name string) error {
	if !identPattern.MatchString(name) {
		return eris.Errorf("sqlite: invalid table name %q", name)
	}
	return nil
}

// quoteIdent quotes a column name as a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
