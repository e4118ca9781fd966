package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError ties a business error code to an optional cause. The code drives
// both the HTTP status and the default message through the code table.
type AppError struct {
	Code    int
	Message string
	Detail  string
	cause   error
}

func (e *AppError) Error() string {
	switch {
	case e.cause != nil:
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.cause)
	case e.Detail != "":
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Detail)
	default:
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
}

func (e *AppError) Unwrap() error { return e.cause }

// HTTPStatus resolves the HTTP status mapped to the error code.
func (e *AppError) HTTPStatus() int { return GetHTTPStatus(e.Code) }

// New builds an AppError from a code, optionally with extra detail.
func New(code int, detail ...string) *AppError {
	e := &AppError{Code: code, Message: GetMessage(code)}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}
	return e
}

// Wrap attaches a code to an existing error. An error that already carries
// a code keeps it; only the detail is updated.
func Wrap(err error, code int, detail ...string) *AppError {
	if err == nil {
		return nil
	}
	var coded *AppError
	if stderrors.As(err, &coded) {
		if len(detail) > 0 && detail[0] != "" {
			coded.Detail = detail[0]
		}
		return coded
	}
	e := New(code, detail...)
	e.cause = err
	return e
}

// Wrapf is Wrap with a formatted detail string.
func Wrapf(err error, code int, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given code.
func Is(err error, code int) bool {
	var coded *AppError
	return stderrors.As(err, &coded) && coded.Code == code
}

// ExtractCode returns err's code, or ErrInternalServer for uncoded errors.
func ExtractCode(err error) int {
	var coded *AppError
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ErrInternalServer
}
