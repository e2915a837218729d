package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError. Business outcomes use the first four;
// everything unexpected collapses into CodeInternal.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

const internalMessage = "Internal server error"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError is an error with a client-facing code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// NewNotFoundError reports that resource id does not exist.
func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s with ID %v not found", resource, id)}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewInternalError hides err behind a generic message. err stays reachable
// through errors.Unwrap for logging.
func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: internalMessage, Err: err}
}

// ErrorCode returns the AppError code found in err's chain, or "" if none.
func ErrorCode(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// RespondWithError writes err as an ErrorResponse with status. Errors that
// are not AppErrors, and internal AppErrors, never expose their cause.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	body := ErrorResponse{Error: internalMessage, Code: CodeInternal}
	if appErr, ok := asAppError(err); ok {
		body = ErrorResponse{Error: appErr.Message, Code: appErr.Code}
		if appErr.Code != CodeInternal && appErr.Err != nil {
			body.Details = appErr.Err.Error()
		}
	}
	return c.Status(status).JSON(body)
}
