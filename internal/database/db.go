package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	_ "modernc.org/sqlite"             // Pure Go SQLite driver ("sqlite")
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the database connection. A DB handed to a WithTx callback runs
// every statement inside that transaction.
type DB struct {
	conn     *sql.DB
	q        querier
	postgres bool
	now      func() time.Time
}

// Open connects to the store named by dsn. A postgres:// or postgresql://
// URL selects PostgreSQL; anything else is treated as a SQLite file path.
func Open(dsn string) (*DB, error) {
	postgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	var conn *sql.DB
	var err error
	if postgres {
		conn, err = sql.Open("pgx", dsn)
	} else {
		conn, err = sql.Open("sqlite", sqliteDSN(dsn))
	}
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if postgres {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	} else {
		conn.SetMaxOpenConns(1) // SQLite works best with a single writer
		conn.SetMaxIdleConns(1)
	}
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, &StorageError{Op: "ping", Err: err}
	}

	return &DB{conn: conn, q: conn, postgres: postgres, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Init creates all tables and indexes
func (db *DB) Init() error {
	if _, err := db.conn.Exec(Schema); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB connection for direct use
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Health checks if the database connection is healthy
func (db *DB) Health() error {
	return db.conn.Ping()
}

// Postgres reports whether the store is backed by PostgreSQL
func (db *DB) Postgres() bool {
	return db.postgres
}

// SetClock replaces the time source used for created_at/updated_at stamps
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Calls nest by joining the outer
// transaction.
func (db *DB) WithTx(ctx context.Context, fn func(tx *DB) error) error {
	if _, inTx := db.q.(*sql.Tx); inTx {
		return fn(db)
	}

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}

	tx := &DB{conn: db.conn, q: sqlTx, postgres: db.postgres, now: db.now}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}
	return nil
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.q.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.q.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.q.QueryRowContext(ctx, db.rebind(query), args...)
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL
func (db *DB) rebind(query string) string {
	if !db.postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	if err := db.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StorageError{Op: op, Err: err}
	}
	return n, nil
}
