package detection

import (
	"errors"
	"fmt"
)

// Error kinds of the detection pipeline. Concrete errors wrap one of these so
// callers can branch with errors.Is.
var (
	ErrValidation = errors.New("detection payload incomplete")
	ErrParse      = errors.New("malformed recommendation text")
	ErrNotFound   = errors.New("detection history not found")
	ErrStorage    = errors.New("detection storage failure")
)

// ValidationError reports the first required submission field that is missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required field %s", ErrValidation, e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ParseError reports a section marker that could not be located in a combined
// recommendation text.
type ParseError struct {
	Marker string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: section marker %q not found in expected position", ErrParse, e.Marker)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// StorageError wraps a failure of the underlying store. Op names the step
// that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
