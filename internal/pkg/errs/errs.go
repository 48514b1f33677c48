/*
Package errs provides the client's error taxonomy.

Every failure the UI reports is a *CustomError carrying a numeric code and a
Kind, so callers can tell a validation problem (fix the input) from a
transport problem (try again later) or an authorization problem (log in).
*/
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups error codes by what the user can do about them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransport
	KindAuthorization
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindAuthorization:
		return "authorization"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// CustomError is the error type returned by the api, realtime and command packages.
type CustomError struct {
	// Code is one of the constants in error_codes.go.
	Code int

	Kind Kind

	// Message is safe to show to the user.
	Message string

	// Status is the HTTP status that produced the error, if any.
	Status int

	// Err is the underlying cause.
	Err error
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is matches another *CustomError by code, so errors.Is(err, errs.NewError(errs.ErrUnauthorized)) works.
func (e *CustomError) Is(target error) bool {
	var other *CustomError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewError builds a *CustomError from its code template. details fill the
// printf verbs of the template; missing details render as empty strings.
func NewError(code int, details ...any) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		template = errorMap[ErrUnknown]
	}
	customErr := template
	if verbs := strings.Count(customErr.Message, "%") - 2*strings.Count(customErr.Message, "%%"); verbs > 0 {
		for len(details) < verbs {
			details = append(details, "")
		}
		customErr.Message = fmt.Sprintf(customErr.Message, details[:verbs]...)
	}
	return &customErr
}

// Wrap is NewError with an underlying cause attached.
func Wrap(code int, err error, details ...any) *CustomError {
	customErr := NewError(code, details...)
	customErr.Err = err
	return customErr
}

// WithStatus records the HTTP status that produced the error.
func (e *CustomError) WithStatus(status int) *CustomError {
	e.Status = status
	return e
}

// KindOf classifies any error. Non-CustomErrors are KindUnknown.
func KindOf(err error) Kind {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of err, or ErrUnknown.
func CodeOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return ErrUnknown
}

// UserMessage returns the text to show in the UI for err.
func UserMessage(err error) string {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
