package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// encodePatterns stores a pattern list as a JSON text column (SQLite).
func encodePatterns(patterns []string) interface{} {
	if len(patterns) == 0 {
		return nil
	}
	data, err := json.Marshal(patterns)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodePatterns(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode patterns column: %w", err)
	}
	return out, nil
}
