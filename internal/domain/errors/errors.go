package errors

import (
	"errors"
	"fmt"
)

var (
	// Taxonomy shared by every component. Callers match with errors.Is.
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrArgument           = errors.New("invalid argument")
	ErrArgumentNull       = errors.New("argument required")
	ErrAlreadyInUse       = errors.New("already in use")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrNotImplemented     = errors.New("not implemented")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing entity, or one that is not in the required state.
func NotFound(entity string) *DomainError {
	return NewDomainError("not_found", entity+" not found", ErrNotFound)
}

// Forbidden reports a caller that is not allowed to touch the entity.
func Forbidden(message string) *DomainError {
	return NewDomainError("forbidden", message, ErrForbidden)
}

// Argument reports an invalid argument or a broken invariant.
func Argument(field, message string) *DomainError {
	return NewDomainError("argument", fmt.Sprintf("%s: %s", field, message), ErrArgument)
}

// ArgumentNull reports a required argument that was not given.
func ArgumentNull(field string) *DomainError {
	return NewDomainError("argument_null", field+" is required", ErrArgumentNull)
}

// AlreadyInUse reports a uniqueness violation.
func AlreadyInUse(entity string, err error) *DomainError {
	return NewDomainError("already_in_use", entity+" already in use", errors.Join(ErrAlreadyInUse, err))
}

// RateLimitExceeded reports downstream throttling.
func RateLimitExceeded(service string, err error) *DomainError {
	return NewDomainError("rate_limit_exceeded", service+" rate limit exceeded", errors.Join(ErrRateLimitExceeded, err))
}

// NotImplemented reports an unsupported combination of inputs.
func NotImplemented(message string) *DomainError {
	return NewDomainError("not_implemented", message, ErrNotImplemented)
}

// ServiceUnavailable reports an unclassified downstream failure.
func ServiceUnavailable(service string, err error) *DomainError {
	return NewDomainError("service_unavailable", service+" unavailable", errors.Join(ErrServiceUnavailable, err))
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets validation failures match ErrArgument.
func (e *ValidationError) Unwrap() error {
	return ErrArgument
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// CodeOf returns the taxonomy code carried by err, or "unknown".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "argument"
	}
	for _, c := range []struct {
		err  error
		code string
	}{
		{ErrNotFound, "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrArgument, "argument"},
		{ErrArgumentNull, "argument_null"},
		{ErrAlreadyInUse, "already_in_use"},
		{ErrRateLimitExceeded, "rate_limit_exceeded"},
		{ErrNotImplemented, "not_implemented"},
		{ErrServiceUnavailable, "service_unavailable"},
	} {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "unknown"
}
