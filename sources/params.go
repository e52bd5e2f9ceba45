package sources

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/5amCurfew/dvtkt/models"
	util "github.com/5amCurfew/dvtkt/util"
	log "github.com/sirupsen/logrus"
)

// ReplicationKeyTypeError signals that a bookmark is stored for a stream
// whose replication key is not declared timestamp-typed in the catalog.
// Fatal for the stream: proceeding would filter on a value of unknown shape.
type ReplicationKeyTypeError struct {
	Stream string
	Key    string
}

func (e *ReplicationKeyTypeError) Error() string {
	return fmt.Sprintf("replication key %s of stream %s is not timestamp-typed in the catalog", e.Key, e.Stream)
}

// BookmarkParseError signals that the stored replication-key value cannot be
// parsed as a timestamp. Fatal for the stream: continuing with an invalid
// floor would silently skip or duplicate rows.
type BookmarkParseError struct {
	Stream string
	Value  string
	Err    error
}

func (e *BookmarkParseError) Error() string {
	return fmt.Sprintf("stored bookmark %q of stream %s is not a valid timestamp: %v", e.Value, e.Stream, e.Err)
}

func (e *BookmarkParseError) Unwrap() error {
	return e.Err
}

// resolveStartingTimestamp produces the floor used to filter remote records
// on this run. A stored bookmark takes precedence over the configured
// start_date; the start_date fallback applies only when no bookmark is
// stored. A malformed start_date downgrades to an unbounded initial pull, a
// malformed stored bookmark does not.
func resolveStartingTimestamp(stream *models.StreamConfig, state *models.StreamState, catalog *models.StreamCatalog) (*time.Time, error) {
	stored := state.Bookmark.ReplicationKeyValue
	if models.FULL_REFRESH {
		stored = ""
	}

	if stored == "" {
		if stream.StartDate == "" {
			return nil, nil
		}
		timestamp, err := util.ParseTimestamp(stream.StartDate)
		if err != nil {
			log.WithFields(log.Fields{"stream": stream.Name, "start_date": stream.StartDate}).Warn("invalid start_date format, extracting without a lower bound")
			return nil, nil
		}
		return &timestamp, nil
	}

	if !catalog.IsTimestampKey(stream.ReplicationKey) {
		return nil, &ReplicationKeyTypeError{Stream: stream.Name, Key: stream.ReplicationKey}
	}

	timestamp, err := util.ParseTimestamp(stored)
	if err != nil {
		return nil, &BookmarkParseError{Stream: stream.Name, Value: stored, Err: err}
	}

	return &timestamp, nil
}

// buildParams constructs the query parameters for one page request. A
// continuation token takes total precedence: the remote API encodes full
// pagination state, prior filters included, inside the token, so nothing
// else may be merged in. The parameter set is rebuilt fresh for every
// request, never mutated across pages.
func buildParams(stream *models.StreamConfig, bookmark *time.Time, token *url.URL) (url.Values, error) {
	if token != nil {
		params, err := url.ParseQuery(token.RawQuery)
		if err != nil {
			return nil, fmt.Errorf("error parsing continuation token query: %w", err)
		}
		return params, nil
	}

	params := url.Values{}

	if stream.ReplicationKey != "" {
		params.Set("$orderby", fmt.Sprintf("%s asc", stream.ReplicationKey))
		if bookmark != nil {
			params.Set("$filter", fmt.Sprintf("%s ge %s", stream.ReplicationKey, util.FormatTimestamp(*bookmark)))
		}
	}

	for _, param := range strings.Split(stream.QueryParams, "&") {
		if !strings.Contains(param, "=") {
			continue
		}
		kv := strings.SplitN(param, "=", 2)
		if kv[0] == "$filter" && params.Get("$filter") != "" {
			params.Set("$filter", fmt.Sprintf("(%s) and (%s)", params.Get("$filter"), kv[1]))
		} else {
			params.Set(kv[0], kv[1])
		}
	}

	return params, nil
}
