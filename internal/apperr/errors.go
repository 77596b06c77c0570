// Package apperr holds the error kinds shared by the quiz and enrollment
// services. Call sites wrap them with fmt.Errorf("%w: ...") and the HTTP
// layer maps them to status codes with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSequence = errors.New("invalid sequence")
	ErrValidation      = errors.New("validation failed")
	ErrPermission      = errors.New("permission denied")
	ErrConflict        = errors.New("already exists")
)
