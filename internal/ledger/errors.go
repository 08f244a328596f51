package ledger

import (
	"errors"

	"docsync/internal/entity"
)

// ErrNotFound is returned by Current and AsOf when the key has no row in the
// queried interval.
var ErrNotFound = errors.New("ledger: record not found")

// ConsistencyError reports a violated ledger invariant: either the database
// rejected a second current row for a key and optimistic retries were
// exhausted, or a stored row could not be decoded.
//
// This is fatal for the affected key. It indicates a storage-layer or
// concurrency bug, so it is surfaced loudly instead of being auto-repaired.
type ConsistencyError struct {
	Key      entity.Key
	Attempts int
	Cause    error
}

func (e *ConsistencyError) Error() string {
	if e.Cause != nil {
		return "ledger: consistency violation for " + e.Key.String() + ": " + e.Cause.Error()
	}
	return "ledger: consistency violation for " + e.Key.String()
}

func (e *ConsistencyError) Unwrap() error {
	return e.Cause
}

// IsConsistencyError returns true if the error is a ledger consistency
// violation. Uses errors.As to handle wrapped errors.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
