package httpapi

import (
	"errors"

	"qms-data/internal/backup"
	"qms-data/internal/domain"
)

// Result response envelope shared by every API route
// - code: 2000 on success, -1 on error
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message}
}

// FailErr input problems the user can correct in the form come back as
// warnings; the record was left unchanged either way.
func FailErr(err error) Result[any] {
	res := Fail(err.Error())
	if userError(err) {
		res.Type = "warning"
	}
	return res
}

func userError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, backup.ErrInvalidFile)
}

// expectedError failures caused by the request rather than the backend.
func expectedError(err error) bool {
	return userError(err) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden)
}
