// Package errors provides typed application errors for the matching backend.
//
// Errors carry a category and a code so callers can map them to transport
// responses without string matching:
//
//	err := errors.NewValidation(errors.CodeTargetNotUnmatched, "transaction already matched")
//	if errors.IsValidation(err) { ... }
package errors

import (
	stderrors "errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Category represents a broad class of failure.
type Category string

const (
	CategoryValidation   Category = "validation"
	CategoryNotFound     Category = "not_found"
	CategoryInvalidState Category = "invalid_state"
	CategoryConflict     Category = "conflict"
	CategoryStorage      Category = "storage"
	CategoryInternal     Category = "internal"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// Validation codes
	CodeTargetXOR           Code = "target_xor_violation"
	CodeMissingField        Code = "missing_field"
	CodeTargetNotUnmatched  Code = "target_not_unmatched"
	CodeReceiptNotUnmatched Code = "receipt_not_unmatched"
	CodeInvalidArgument     Code = "invalid_argument"

	// Not-found codes
	CodeReceiptNotFound     Code = "receipt_not_found"
	CodeTransactionNotFound Code = "transaction_not_found"
	CodeGroupNotFound       Code = "group_not_found"
	CodeMatchNotFound       Code = "match_not_found"
	CodeJobNotFound         Code = "job_not_found"

	// Invalid-state codes
	CodeMatchNotProposed  Code = "match_not_proposed"
	CodeMatchNotRevocable Code = "match_not_revocable"

	// Conflict codes
	CodeTargetConsumed Code = "target_consumed"
	CodeStaleStatus    Code = "stale_status"

	// Storage / internal codes
	CodeQueryFailed     Code = "query_failed"
	CodeTxFailed        Code = "tx_failed"
	CodeUnexpectedError Code = "unexpected_error"
)

// Context carries structured detail for logs and API responses.
type Context map[string]interface{}

// Error is the application error type.
type Error struct {
	Category Category `json:"category"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Context  Context  `json:"context,omitempty"`
	Cause    error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// New creates a new typed error.
func New(category Category, code Code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Wrap attaches category/code metadata to an existing error, capturing the
// cause with a stack so operators can trace storage failures. Wrapping nil
// returns nil, so call sites can wrap unconditionally. The return type is
// error, not *Error: a nil *Error stored in an error interface would compare
// non-nil at every call site.
func Wrap(err error, category Category, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    pkgerrors.WithStack(err),
	}
}

// NewValidation creates a validation error.
func NewValidation(code Code, message string) *Error {
	return New(CategoryValidation, code, message)
}

// NewNotFound creates a not-found error.
func NewNotFound(code Code, message string) *Error {
	return New(CategoryNotFound, code, message)
}

// NewInvalidState creates an invalid-state error.
func NewInvalidState(code Code, message string) *Error {
	return New(CategoryInvalidState, code, message)
}

// NewConflict creates a conflict error for races detected by guarded updates.
func NewConflict(code Code, message string) *Error {
	return New(CategoryConflict, code, message)
}

// categoryOf extracts the category from an error chain.
func categoryOf(err error) (Category, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Category, true
	}
	return "", false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryValidation
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryNotFound
}

// IsInvalidState reports whether err is an invalid-state error.
func IsInvalidState(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryInvalidState
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == CategoryConflict
}

// CodeOf extracts the error code, or CodeUnexpectedError for foreign errors.
func CodeOf(err error) Code {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnexpectedError
}
