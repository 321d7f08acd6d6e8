package engine

import (
	"fmt"
	"strings"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

// ImmutableFieldError rejects an update that tried to write protected
// columns. It always carries the complete batch of violations, one detail
// per field, and the message names every field so a client can fix all of
// them at once.
func ImmutableFieldError(fields []string) *AppError {
	details := make([]ErrorDetail, len(fields))
	for i, f := range fields {
		details[i] = ErrorDetail{
			Field:   f,
			Rule:    "immutable",
			Message: fmt.Sprintf("%s cannot be modified", f),
		}
	}
	return &AppError{
		Code:    "IMMUTABLE_FIELD",
		Status:  400,
		Message: fmt.Sprintf("Cannot modify immutable fields: %s", strings.Join(fields, ", ")),
		Details: details,
	}
}

func InvalidInputError(msg string) *AppError {
	return &AppError{Code: "INVALID_INPUT", Status: 400, Message: msg}
}

func UnknownFieldError(msg string) *AppError {
	return &AppError{Code: "UNKNOWN_FIELD", Status: 400, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	if msg == "" {
		msg = "Authentication required"
	}
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	if msg == "" {
		msg = "Permission denied"
	}
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

func InternalError() *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Status: 500, Message: "Internal server error"}
}
