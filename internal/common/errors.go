package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// FaultKind classifies a failure for retry decisions.
type FaultKind string

const (
	// FaultTransient covers readiness timeouts and automation call failures.
	FaultTransient FaultKind = "TRANSIENT"
	// FaultStructural covers missing or malformed document content.
	FaultStructural FaultKind = "STRUCTURAL"
	// FaultConfig covers rejected configuration such as a bad replacement digit.
	FaultConfig FaultKind = "CONFIG"
	// FaultFatal aborts the whole batch.
	FaultFatal FaultKind = "FATAL"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func Transient(message string, cause error) *AppError {
	return NewAppError(string(FaultTransient), message, cause)
}

func Structural(message string, cause error) *AppError {
	return NewAppError(string(FaultStructural), message, cause)
}

func ConfigFault(message string, cause error) *AppError {
	return NewAppError(string(FaultConfig), message, cause)
}

func Fatal(message string, cause error) *AppError {
	return NewAppError(string(FaultFatal), message, cause)
}

// KindOf returns the fault kind of the outermost AppError carrying one.
// Errors without a classification are transient: automation calls fail that way.
func KindOf(err error) FaultKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	for e := err; errors.As(e, &appErr); e = appErr.Cause {
		switch k := FaultKind(appErr.Code); k {
		case FaultTransient, FaultStructural, FaultConfig, FaultFatal:
			return k
		}
		if appErr.Cause == nil {
			break
		}
	}
	return FaultTransient
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == FaultTransient
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
