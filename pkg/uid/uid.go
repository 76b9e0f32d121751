// Package uid issues the identifiers used for batches and requests.
package uid

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string, so batch IDs sort by start time.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsValid reports whether id is a UUID in its canonical 36-character form.
// Braced and urn: forms are rejected because IDs are echoed back in headers.
func IsValid(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
