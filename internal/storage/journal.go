// Package storage keeps the flight event journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"uav-control-manager/internal/types"
)

// SqliteJournal persists journal events.
type SqliteJournal struct {
	db *sql.DB

	insert *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*SqliteJournal, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(initSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	insert, err := db.Prepare(insertEventSQL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("preparing statement: %w", err)
	}

	return &SqliteJournal{db: db, insert: insert}, nil
}

// Append stores one event.
func (j *SqliteJournal) Append(ctx context.Context, ev types.Event) error {
	if _, err := j.insert.ExecContext(ctx, ev.Stamp.UTC(), string(ev.Kind), ev.Message, ev.Tracker, ev.Controller); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (j *SqliteJournal) Recent(ctx context.Context, n int) ([]types.Event, error) {
	return j.query(ctx, selectRecentEventsSQL, n)
}

// RecentOfKind returns up to n events of one kind, newest first.
func (j *SqliteJournal) RecentOfKind(ctx context.Context, kind types.EventKind, n int) ([]types.Event, error) {
	return j.query(ctx, selectEventsByKindSQL, string(kind), n)
}

func (j *SqliteJournal) query(ctx context.Context, query string, args ...interface{}) (events []types.Event, err error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			ev    types.Event
			stamp time.Time
			kind  string
		)
		if err = rows.Scan(&stamp, &kind, &ev.Message, &ev.Tracker, &ev.Controller); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Stamp = stamp
		ev.Kind = types.EventKind(kind)
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (j *SqliteJournal) Close() error {
	j.closeOnce.Do(func() {
		if err := j.insert.Close(); err != nil {
			j.closeErr = err
		}
		if err := j.db.Close(); err != nil && j.closeErr == nil {
			j.closeErr = err
		}
	})
	return j.closeErr
}
