package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	util "github.com/5amCurfew/dvtkt/util"
	_ "github.com/mattn/go-sqlite3"
)

// StateStore holds the last-seen replication-key value per stream. Read is
// called once per stream at the start of a sync; Write is called after every
// successfully emitted record so an interrupted run resumes without replay.
type StateStore interface {
	Read(stream string) (*StreamState, error)
	Write(state *StreamState) error
	Close() error
}

func NewStateStore(config StateConfig) (StateStore, error) {
	switch config.Backend {
	case "", "file":
		return &fileStateStore{dir: config.Path}, nil
	case "sqlite":
		path := config.Path
		if path == "" {
			path = "state.db"
		}
		return newSqliteStateStore(path)
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", config.Backend)
	}
}

// /////////////////////////////////////////////////////////
// FILE BACKEND: <STREAM>_state.json per stream
// /////////////////////////////////////////////////////////
type fileStateStore struct {
	dir string
}

func (f *fileStateStore) fileName(stream string) string {
	dir := f.dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s_state.json", stream))
}

func (f *fileStateStore) Read(stream string) (*StreamState, error) {
	stateFile, err := os.ReadFile(f.fileName(stream))
	if os.IsNotExist(err) {
		return NewStreamState(stream), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading state file: %w", err)
	}

	var state StreamState
	if err := json.Unmarshal(stateFile, &state); err != nil {
		return nil, fmt.Errorf("error unmarshaling state json: %w", err)
	}

	return &state, nil
}

func (f *fileStateStore) Write(state *StreamState) error {
	StateMutex.RLock()
	defer StateMutex.RUnlock()

	return util.WriteJSON(f.fileName(state.Stream), state)
}

func (f *fileStateStore) Close() error {
	return nil
}

// /////////////////////////////////////////////////////////
// SQLITE BACKEND: single stream_state table keyed by stream
// /////////////////////////////////////////////////////////
type sqliteStateStore struct {
	db *sql.DB
}

func newSqliteStateStore(path string) (*sqliteStateStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS stream_state (
		stream TEXT PRIMARY KEY,
		replication_key_value TEXT,
		updated_at TEXT
	);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating stream_state table: %w", err)
	}

	return &sqliteStateStore{db: db}, nil
}

func (s *sqliteStateStore) Read(stream string) (*StreamState, error) {
	state := NewStreamState(stream)

	row := s.db.QueryRow(`SELECT replication_key_value, updated_at FROM stream_state WHERE stream = ?;`, stream)
	err := row.Scan(&state.Bookmark.ReplicationKeyValue, &state.Bookmark.UpdatedAt)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading stream_state row: %w", err)
	}

	return state, nil
}

func (s *sqliteStateStore) Write(state *StreamState) error {
	StateMutex.RLock()
	defer StateMutex.RUnlock()

	_, err := s.db.Exec(
		`INSERT INTO stream_state (stream, replication_key_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(stream) DO UPDATE SET replication_key_value = excluded.replication_key_value, updated_at = excluded.updated_at;`,
		state.Stream, state.Bookmark.ReplicationKeyValue, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("error writing stream_state row: %w", err)
	}

	return nil
}

func (s *sqliteStateStore) Close() error {
	return s.db.Close()
}
