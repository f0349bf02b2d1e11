package tasks

import (
	"database/sql"
	"errors"
)

// ErrorCode is the stable, cross-boundary error vocabulary for task
// operations. Every failure path maps to one of these five codes.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeTaskNotFound  ErrorCode = "TASK_NOT_FOUND"
	CodeAuthorization ErrorCode = "AUTHORIZATION_ERROR"
	CodeDatabase      ErrorCode = "DATABASE_ERROR"
	CodeUnknown       ErrorCode = "UNKNOWN_ERROR"
)

// OpError is the single tagged error type for task-management
// operations. Construction sites pick the code explicitly; there is no
// hierarchy to walk.
type OpError struct {
	Code    ErrorCode
	Message string
}

func (e *OpError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// ErrValidation builds a VALIDATION_ERROR
func ErrValidation(message string) *OpError {
	return &OpError{Code: CodeValidation, Message: message}
}

// ErrTaskNotFound builds the conflated not-found/forbidden error.
// "Not found" and "owned by someone else" are deliberately the same
// outcome so cross-tenant probing is indistinguishable from absence.
func ErrTaskNotFound() *OpError {
	return &OpError{Code: CodeTaskNotFound, Message: "Task not found or access denied"}
}

// ErrDatabase builds a DATABASE_ERROR with no driver detail
func ErrDatabase() *OpError {
	return &OpError{Code: CodeDatabase, Message: "Database operation failed"}
}

// ErrUnknown builds an UNKNOWN_ERROR
func ErrUnknown() *OpError {
	return &OpError{Code: CodeUnknown, Message: "An unexpected error occurred"}
}

// AsOpError classifies err into the fixed code set. Repository errors
// wrapping sql.ErrNoRows become TASK_NOT_FOUND; anything else from
// storage collapses to DATABASE_ERROR so query and connection detail
// never leaks past this layer.
func AsOpError(err error) *OpError {
	if err == nil {
		return nil
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound()
	}

	return ErrDatabase()
}
