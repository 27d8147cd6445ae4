package model

import (
	"errors"
	"fmt"
)

// =====================================================
// ERROR CODES
// =====================================================
// Codes are returned to the operator UI alongside the message so it can
// render an actionable explanation rather than a bare "operation failed".
const (
	ErrCodeNotFound            = "RET001"
	ErrCodeInvalidTransition   = "RET002"
	ErrCodeTerminalState       = "RET003"
	ErrCodeMissingRefundAmount = "RET004"
	ErrCodeValidation          = "RET005"
	ErrCodeConflict            = "RET006"
	ErrCodeSlotUnavailable     = "RET007"
	ErrCodeProviderUnavailable = "RET008"
)

// =====================================================
// ERROR DEFINITIONS
// =====================================================
var (
	ErrReturnNotFound      = errors.New("return request not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTerminalState       = errors.New("return request is in a terminal state")
	ErrMissingRefundAmount = errors.New("refund amount is required to complete a return")
	ErrVersionMismatch     = errors.New("version mismatch - concurrent modification detected")
	ErrInvalidStatus       = errors.New("invalid return status")
	ErrInvalidRefundMethod = errors.New("invalid refund method")
	ErrTotalMismatch       = errors.New("total price does not match unit price * quantity")
)

// =====================================================
// CUSTOM ERROR TYPES
// =====================================================

// ReturnError carries a stable code for the HTTP boundary
type ReturnError struct {
	Code    string
	Message string
	Err     error
}

func (e *ReturnError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ReturnError) Unwrap() error {
	return e.Err
}

// NewReturnError creates a new ReturnError
func NewReturnError(code, message string, err error) *ReturnError {
	return &ReturnError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FieldError is a validation failure pinned to a specific field.
// Invariant violations on the money boundary are rejected, never clamped.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewFieldError creates a field-level validation error
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}
