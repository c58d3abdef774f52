package sqlite

import (
	"database/sql"
	"time"
)

// Column conversion helpers. SQLite has no native boolean or timestamp
// types; booleans are stored as 0/1 and times as RFC3339 strings.

// boolToInt converts a boolean to an integer.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToString formats a timestamp for storage.
func timeToString(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// timePtrToNull formats an optional timestamp for storage.
func timePtrToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeToString(*t), Valid: true}
}

// parseTime parses a stored timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// parseNullTime parses an optional stored timestamp.
func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullInt64Ptr converts a nullable integer column to a pointer.
func nullInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// int64PtrToNull converts a pointer to a nullable integer column.
func int64PtrToNull(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
