// Tool call error codes and constructors.

package tools

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed tool call.
type ErrorCode string

const (
	// ErrorCodeEditingNotPermitted is returned for mutating tools on a read-only server.
	ErrorCodeEditingNotPermitted ErrorCode = "EDITING_NOT_PERMITTED"
	// ErrorCodeMissingField is returned when a required argument is missing or has the wrong shape.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidPath is returned when a table name does not resolve to a file in the location.
	ErrorCodeInvalidPath ErrorCode = "INVALID_PATH"
	// ErrorCodeStorageError is returned when the table file cannot be opened, created or written.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrorCodeNotFound is returned when a record index does not exist.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeToolNotFound is returned for an unknown tool name.
	ErrorCodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	// ErrorCodeInvalidParams is returned when the tools/call envelope itself is malformed.
	ErrorCodeInvalidParams ErrorCode = "INVALID_PARAMS"
	// ErrorCodeInternal is returned for errors that carry no code.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a tool failure reported to the client as an error result.
//
// The message is what the client sees; the wrapped error is only logged.
type Error struct {
	code       ErrorCode
	message    string
	wrappedErr error
}

// NewError creates an Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Message returns the client facing text.
func (e *Error) Message() string {
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// codeOf returns the code of err, or ErrorCodeInternal.
func codeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrorCodeInternal
}

// EditingNotPermitted is returned by mutating tools when editing is disabled.
func EditingNotPermitted() *Error {
	return NewError(ErrorCodeEditingNotPermitted, "Editing is not permitted on this server.")
}

// MissingField reports a missing argument, e.g. "Missing table_name".
func MissingField(what string) *Error {
	return NewError(ErrorCodeMissingField, "Missing "+what)
}

// InvalidField reports an argument that is absent or has the wrong JSON type.
func InvalidField(what string) *Error {
	return NewError(ErrorCodeMissingField, "Missing or invalid "+what)
}

// InvalidPath reports a table name that cannot be turned into a path.
func InvalidPath() *Error {
	return NewError(ErrorCodeInvalidPath, "Invalid table path string.")
}

// OutsideLocation reports a table name escaping the configured location.
func OutsideLocation(name string) *Error {
	return NewError(ErrorCodeInvalidPath, fmt.Sprintf("Table '%s' is outside the configured location.", name))
}

// Storage reports a failed table file operation.
func Storage(message string) *Error {
	return NewError(ErrorCodeStorageError, message)
}

// BootFailed reports that the table library is unavailable.
func BootFailed() *Error {
	return NewError(ErrorCodeStorageError, "Failed to initialize PX library.")
}

// RecordNotFound reports an update of a record that does not exist.
func RecordNotFound(index int) *Error {
	return NewError(ErrorCodeNotFound, fmt.Sprintf("Record at index %d not found.", index))
}

// ToolNotFound reports an unknown tool name.
func ToolNotFound(name string) *Error {
	return NewError(ErrorCodeToolNotFound, "Tool not found: "+name)
}

// InvalidParams reports a malformed tools/call envelope.
func InvalidParams(message string) *Error {
	return NewError(ErrorCodeInvalidParams, message)
}
