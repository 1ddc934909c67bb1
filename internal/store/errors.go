package store

import (
	"errors"
	"strings"
)

// ErrPageNotFound is returned when updating a page that was never opened.
var ErrPageNotFound = errors.New("page not found")

// IsConflictError reports whether err is SQLite lock contention
// (SQLITE_BUSY or "database is locked"), which is transient.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
