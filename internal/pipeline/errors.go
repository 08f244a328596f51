package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError rejects a document whose dictionary references cannot be
// resolved against any current dictionary row. The document is counted
// failed and retried on the next run, when the dictionary may have caught up.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document %s: %s", e.ID, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
