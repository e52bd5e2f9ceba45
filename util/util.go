package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
)

// GetValueAtPath returns the value at the given path in the input map, nil if absent
func GetValueAtPath(path []string, input map[string]interface{}) interface{} {
	if len(path) == 0 {
		return nil
	}
	if check, ok := input[path[0]]; !ok || check == nil {
		return nil
	}
	if len(path) == 1 {
		return input[path[0]]
	}

	key := path[0]
	path = path[1:]

	nextInput, _ := input[key].(map[string]interface{})

	return GetValueAtPath(path, nextInput)
}

// SetValueAtPath sets the value at the given path in the input map, creating intermediate maps as needed
func SetValueAtPath(path []string, input map[string]interface{}, value interface{}) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		input[path[0]] = value
		return
	}

	nextInput, ok := input[path[0]].(map[string]interface{})
	if !ok {
		nextInput = make(map[string]interface{})
		input[path[0]] = nextInput
	}

	SetValueAtPath(path[1:], nextInput, value)
}

// DropFieldAtPath removes the field at the given path from the input map
func DropFieldAtPath(path []string, input map[string]interface{}) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(input, path[0])
		return
	}

	if nextInput, ok := input[path[0]].(map[string]interface{}); ok {
		DropFieldAtPath(path[1:], nextInput)
	}
}

func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

func ToString(value interface{}) string {
	return fmt.Sprintf("%v", value)
}

// WriteJSON writes data as JSON to fileName
func WriteJSON(fileName string, data interface{}) error {
	result, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling json for %s: %w", fileName, err)
	}

	if err := os.WriteFile(fileName, result, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", fileName, err)
	}

	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a scalar bookmark or start-date value into a UTC timestamp
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", value)
}

// FormatTimestamp formats a timestamp as ISO-8601 UTC with microsecond precision
// and a literal trailing Z, the form the Dataverse Web API expects in $filter
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

// SQLAttributeName rewrites an attribute name to a SQL-identifier-safe form:
// a letter or underscore first, then letters, digits or underscores. Every
// invalid rune is replaced with an underscore, so applying the mapping twice
// yields the same result as applying it once.
func SQLAttributeName(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case i > 0 && unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
