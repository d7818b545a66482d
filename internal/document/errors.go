// internal/document/errors.go
//
// Validation errors raised before any statement executes.  Store failures
// are never wrapped into these; they propagate verbatim from the driver.
package document

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a save is attempted on a document
// with no metadata envelope.
var ErrInvalidDocument = errors.New("document has no metadata envelope")

// TypeMismatchError is returned when a document addressed through a typed
// repository carries a different type identifier.
type TypeMismatchError struct {
	Expect string
	Actual string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("document type mismatch: expect %q, actual %q", e.Expect, e.Actual)
}
