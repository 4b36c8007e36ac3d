package api

import "github.com/cockroachdb/errors"

// ErrorCode is the stable, machine readable part of a failed response.
type ErrorCode string

const DefaultErrorCode ErrorCode = "unknown_error"

// Error is what every usecase returns on failure. The code and user message
// pick the response, the internal error is logged and echoed as detail.
type Error struct {
	ErrorCode     ErrorCode
	UserMessage   string
	InternalError error
}

func CommitError(err error, errorCode ErrorCode, userMessage string) *Error {
	return &Error{
		ErrorCode:     errorCode,
		UserMessage:   userMessage,
		InternalError: err,
	}
}

// Wrap keeps the code and user message and adds msg to the internal chain.
func (e *Error) Wrap(msg string) *Error {
	return &Error{
		ErrorCode:     e.ErrorCode,
		UserMessage:   e.UserMessage,
		InternalError: errors.Wrap(e.InternalError, msg),
	}
}

func (e *Error) Error() string {
	return e.InternalError.Error()
}

func (e *Error) Unwrap() error {
	return e.InternalError
}
