package dto

import (
	"net/http"

	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// APIError represents a structured error response.
// All error responses from the API use this format for consistency.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternalError = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeConflict      = "conflict"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

// FromError maps an application error to an HTTP status and response
// body. Internal details never leak; typed errors keep their code and
// message.
func FromError(err error) (int, APIError) {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, NewAPIError(string(apperrors.CodeOf(err)), err.Error())
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, NewAPIError(string(apperrors.CodeOf(err)), err.Error())
	case apperrors.IsInvalidState(err):
		return http.StatusBadRequest, NewAPIError(string(apperrors.CodeOf(err)), err.Error())
	case apperrors.IsConflict(err):
		return http.StatusConflict, NewAPIError(string(apperrors.CodeOf(err)), err.Error())
	default:
		return http.StatusInternalServerError, InternalError()
	}
}
