package vocab

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no row matches the requested key.
var ErrNotFound = errors.New("entry not found")

// ErrNotEditable is returned when an edit targets a read-only column.
var ErrNotEditable = errors.New("field is not editable")

// ErrNotEditing is returned when a commit targets a cell that is not in
// edit mode.
var ErrNotEditing = errors.New("cell is not being edited")

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation error")

// ValidationError reports a required cell left empty. The message is what
// the UI shows next to the cell.
type ValidationError struct {
	Field Field
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required.", e.Field.Title())
}

// Is lets callers test with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// Validate checks a cell value before it is committed. Only the empty
// string is rejected; whitespace is a value.
func Validate(f Field, value string) error {
	if !f.Editable() {
		return ErrNotEditable
	}
	if value == "" {
		return &ValidationError{Field: f}
	}
	return nil
}
