package domain

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not allowed")
	ErrConflict          = errors.New("record conflict")
)
