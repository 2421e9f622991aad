package quiz

import "github.com/google/uuid"

// newID returns a time-ordered id so ledger rows written in the same second
// still sort by insertion.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
