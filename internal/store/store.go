// Package store persists sessions, members, songs, queue entries and ballots
// in SQLite. Query methods live on Queries, which runs against either the
// database or a transaction; Store adds transaction handling.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTransient marks a backing-store failure worth one retry.
	ErrTransient = errors.New("transient store failure")
	// ErrConflict means a compare-and-set on the current-entry pointer lost.
	ErrConflict = errors.New("current entry pointer changed concurrently")
)

// SQLite result codes that indicate contention rather than a bad statement.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every statement the service runs.
type Queries struct {
	db DBTX
}

// New wraps a DBTX.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Store is the entry point used by services.
type Store struct {
	*Queries
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{Queries: New(db), db: db}
}

// InTx runs fn inside one transaction. Either everything fn did commits or
// nothing does.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(s.WithTx(tx)); err != nil {
		tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

type codedError interface {
	Code() int
}

// classify tags SQLite contention errors as transient.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	var coded codedError
	if errors.As(err, &coded) {
		// extended result codes carry the primary code in the low byte
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
