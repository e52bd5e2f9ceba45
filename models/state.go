package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	util "github.com/5amCurfew/dvtkt/util"
)

var StateMutex sync.RWMutex

type StreamState struct {
	Stream   string   `json:"stream"`
	Bookmark Bookmark `json:"bookmark"`
}

type Bookmark struct {
	UpdatedAt           string `json:"updated_at"`
	ReplicationKeyValue string `json:"replication_key_value"`
}

func NewStreamState(stream string) *StreamState {
	return &StreamState{
		Stream: stream,
		Bookmark: Bookmark{
			UpdatedAt:           time.Now().UTC().Format(time.RFC3339),
			ReplicationKeyValue: "",
		},
	}
}

// Update advances the bookmark to the record's replication-key value. The
// bookmark never moves backward within a run: records arrive in ascending
// replication-key order, so a lower value can only be a re-read of the
// boundary row.
func (s *StreamState) Update(stream *StreamConfig, record map[string]interface{}) {
	if stream.ReplicationKey == "" {
		return
	}

	value, ok := record[stream.ReplicationKey]
	if !ok {
		// attribute names may have been rewritten before emission
		value, ok = record[util.SQLAttributeName(stream.ReplicationKey)]
	}
	if !ok || value == nil {
		return
	}

	StateMutex.Lock()
	defer StateMutex.Unlock()

	candidate := util.ToString(value)
	if !newerThan(candidate, s.Bookmark.ReplicationKeyValue) {
		return
	}

	s.Bookmark.ReplicationKeyValue = candidate
	s.Bookmark.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// newerThan compares two replication-key values, as timestamps when both
// parse and lexicographically otherwise
func newerThan(candidate string, current string) bool {
	if current == "" {
		return true
	}

	candidateTime, candidateErr := util.ParseTimestamp(candidate)
	currentTime, currentErr := util.ParseTimestamp(current)
	if candidateErr == nil && currentErr == nil {
		return candidateTime.After(currentTime)
	}

	return candidate > current
}

// Message generates a message with the current state
func (s *StreamState) Message() error {
	StateMutex.RLock()
	defer StateMutex.RUnlock()

	message := Message{
		Type:   "STATE",
		Stream: s.Stream,
		Value:  s.Bookmark,
	}

	messageJson, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("error creating state message: %w", err)
	}

	os.Stdout.Write(messageJson)
	os.Stdout.Write([]byte("\n"))

	return nil
}
