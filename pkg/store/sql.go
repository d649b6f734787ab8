package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var tableNames = map[string]string{
	KindContents: "douyin_aweme",
	KindComments: "douyin_aweme_comment",
	KindCreator:  "dy_creator",
}

type dialect struct {
	name     string
	bindvar  func(i int) string
	intType  string
	textType string
	// busy reports a transient lock error worth retrying
	busy func(error) bool
}

var sqliteDialect = dialect{
	name:     "sqlite",
	bindvar:  func(int) string { return "?" },
	intType:  "INTEGER",
	textType: "TEXT",
	busy:     isSQLiteBusy,
}

var postgresDialect = dialect{
	name:     "postgres",
	bindvar:  func(i int) string { return fmt.Sprintf("$%d", i) },
	intType:  "BIGINT",
	textType: "TEXT",
	busy:     func(error) bool { return false },
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQL stores records in relational tables, one per kind, keyed by the
// natural id with INSERT ... ON CONFLICT DO UPDATE.
type SQL struct {
	db      *sql.DB
	dialect dialect
	logger  logger.Logger
}

// OpenSQLite opens (creating if needed) the SQLite database at path
func OpenSQLite(ctx context.Context, path string, log logger.Logger) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "create sqlite directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "open sqlite db")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, errs.Wrap(errs.ErrorTypeStorage, execErr, fmt.Sprintf("apply pragma %q", pragma))
		}
	}
	return newSQL(ctx, db, sqliteDialect, log)
}

// OpenPostgres connects to Postgres through the pgx database/sql driver
func OpenPostgres(ctx context.Context, dsn string, log logger.Logger) (*SQL, error) {
	if dsn == "" {
		return nil, errs.New(errs.ErrorTypeStorage, "postgres DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "ping postgres")
	}
	return newSQL(ctx, db, postgresDialect, log)
}

func newSQL(ctx context.Context, db *sql.DB, d dialect, log logger.Logger) (*SQL, error) {
	s := &SQL{db: db, dialect: d, logger: log}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	for _, r := range []record{&ContentRecord{}, &CommentRecord{}, &CreatorRecord{}} {
		if _, err := s.exec(ctx, s.createTable(r)); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "create table "+tableNames[r.kind()])
		}
	}
	return nil
}

func (s *SQL) createTable(r record) string {
	var cols []string
	for _, f := range r.fields() {
		typ := s.dialect.textType
		if _, ok := f.value.(int64); ok {
			typ = s.dialect.intType
		}
		col := quote(f.name) + " " + typ
		if f.name == r.keyColumn() {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", tableNames[r.kind()], strings.Join(cols, ",\n\t"))
}

func (s *SQL) StoreContent(ctx context.Context, rec ContentRecord) error {
	return s.upsert(ctx, &rec)
}

func (s *SQL) StoreComment(ctx context.Context, rec CommentRecord) error {
	return s.upsert(ctx, &rec)
}

func (s *SQL) StoreCreator(ctx context.Context, rec CreatorRecord) error {
	return s.upsert(ctx, &rec)
}

// Close closes the database handle
func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) upsert(ctx context.Context, r record) error {
	r.timestamps().stamp(nowMillis())

	var (
		query string
		args  []any
	)
	if r.insertable() {
		query, args = s.upsertQuery(r)
	} else {
		query, args = s.updateQuery(r)
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("store %s %s", r.kind(), r.key()))
	}
	if !r.insertable() {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%s %s: %w", r.kind(), r.key(), ErrNotInserted)
		}
	}
	return nil
}

// upsertQuery inserts r or, on key conflict, updates every column except
// the key and add_ts.
func (s *SQL) upsertQuery(r record) (string, []any) {
	fs := r.fields()
	names := make([]string, len(fs))
	binds := make([]string, len(fs))
	args := make([]any, len(fs))
	var sets []string
	for i, f := range fs {
		names[i] = quote(f.name)
		binds[i] = s.dialect.bindvar(i + 1)
		args[i] = f.value
		if f.name != r.keyColumn() && f.name != "add_ts" {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(f.name), quote(f.name)))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		tableNames[r.kind()], strings.Join(names, ", "), strings.Join(binds, ", "),
		quote(r.keyColumn()), strings.Join(sets, ", "))
	return query, args
}

// updateQuery updates an existing row only
func (s *SQL) updateQuery(r record) (string, []any) {
	var (
		sets []string
		args []any
	)
	for _, f := range r.fields() {
		if f.name == r.keyColumn() || f.name == "add_ts" {
			continue
		}
		args = append(args, f.value)
		sets = append(sets, fmt.Sprintf("%s = %s", quote(f.name), s.dialect.bindvar(len(args))))
	}
	args = append(args, r.key())
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		tableNames[r.kind()], strings.Join(sets, ", "), quote(r.keyColumn()), s.dialect.bindvar(len(args)))
	return query, args
}

func (s *SQL) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	err := retryOnBusy(ctx, s.dialect.busy, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, busy func(error) bool, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !busy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
