// Package main - store.go
//
// SessionStore keeps a queryable history of runs in SQLite: one row per
// session and one row per event. Writes go through a buffered channel to a
// single writer goroutine; when the writer falls behind events are dropped,
// the journal stays the complete record.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SessionSummary aggregates every stored session.
type SessionSummary struct {
	Sessions         int
	Kills            int
	Loots            int
	WaypointsReached int
	WaypointsSkipped int
	Obstacles        int
	ActionErrors     int
}

// SessionStore is the SQLite event sink.
type SessionStore struct {
	db        *sql.DB
	log       Logger
	sessionID int64

	ch     chan Event
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// OpenSessionStore opens (or creates) the database at path
func OpenSessionStore(path string, log Logger) (*SessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initStoreSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SessionStore{
		db:  db,
		log: orNop(log),
		ch:  make(chan Event, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initStoreSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			route TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			idx INTEGER NOT NULL,
			x INTEGER, y INTEGER, z INTEGER,
			detail TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS events_session_kind ON events(session_id, kind);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// BeginSession starts a session row; later events belong to it.
func (s *SessionStore) BeginSession(ctx context.Context, route string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(route, started_at) VALUES(?, ?)`,
		route, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	atomic.StoreInt64(&s.sessionID, id)
	return id, nil
}

// EndSession stamps the session's end time
func (s *SessionStore) EndSession(ctx context.Context) error {
	id := atomic.LoadInt64(&s.sessionID)
	if id == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// Record queues e for writing; drops it if the queue is full.
func (s *SessionStore) Record(e Event) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

func (s *SessionStore) loop() {
	insert, err := s.db.Prepare(`INSERT INTO events(session_id, at, kind, idx, x, y, z, detail) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.log.Error("prepare event insert: %v", err)
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	for e := range s.ch {
		var x, y, z sql.NullInt64
		if e.Position != nil {
			x = sql.NullInt64{Int64: int64(e.Position.X), Valid: true}
			y = sql.NullInt64{Int64: int64(e.Position.Y), Valid: true}
			z = sql.NullInt64{Int64: int64(e.Position.Z), Valid: true}
		}
		_, err := insert.Exec(atomic.LoadInt64(&s.sessionID),
			e.Time.UTC().Format(time.RFC3339Nano), string(e.Kind), e.Index, x, y, z, e.Detail)
		if err != nil {
			s.log.Warn("store event %s: %v", e.Kind, err)
		}
	}
}

// Summary aggregates all sessions.
func (s *SessionStore) Summary(ctx context.Context) (SessionSummary, error) {
	var sum SessionSummary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sum.Sessions); err != nil {
		return sum, err
	}
	// A kill is an Engaging->Looting transition.
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE kind = ? AND detail LIKE ?`,
		string(EventCombat), "%->Looting").Scan(&sum.Kills)
	if err != nil {
		return sum, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return sum, err
		}
		switch EventKind(kind) {
		case EventLoot:
			sum.Loots = n
		case EventWaypointReached:
			sum.WaypointsReached = n
		case EventWaypointSkipped:
			sum.WaypointsSkipped = n
		case EventObstacle:
			sum.Obstacles = n
		case EventActionError:
			sum.ActionErrors = n
		}
	}
	return sum, rows.Err()
}

// Close drains queued events and closes the database
func (s *SessionStore) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
