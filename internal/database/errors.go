package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and creation is disabled.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrRunNotFound is returned when no stored run matches a lookup.
	ErrRunNotFound = errors.New("run not found")
)
