// Package uuid generates the time-ordered identifiers used as primary keys.
// UUIDv7 keeps inserts roughly append-only under index btrees, which matters
// for the trade and snapshot tables that only ever grow.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Falls back to a random UUIDv4 if the system
// entropy source fails, so callers never receive an empty id.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates s and returns its canonical form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
