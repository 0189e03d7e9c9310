// Package apierr carries an HTTP status and a stable code alongside an error.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidURL        = "invalid_url"
	CodeInvalidID         = "invalid_id"
	CodeGenerationFailed  = "generation_failed"
	CodePersistenceFailed = "persistence_failed"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

// Error is an error with the HTTP status and stable code it is reported with.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a status and code.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// BadRequest marks a client input fault, such as a URL that cannot be scraped.
func BadRequest(err error) *Error {
	return New(http.StatusBadRequest, CodeInvalidURL, err)
}

// Upstream marks a failure of the generation service.
func Upstream(err error) *Error {
	return New(http.StatusInternalServerError, CodeGenerationFailed, err)
}

// Persistence marks a failed database write.
func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistenceFailed, err)
}

// NotFound marks a missing article or quiz.
func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

// As extracts an *Error from err's chain. Plain errors become internal errors.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// StatusOf returns the HTTP status err should be reported with.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if apiErr := As(err); apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
