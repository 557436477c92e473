package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies a service error for the transport layer
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUniqueness
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUniqueness:
		return "uniqueness"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is returned by every service operation that fails for a reason the
// caller can branch on. Code is stable; Message is for humans.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed or out-of-range client input
func ValidationError(field, code, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Code: code, Message: message}
}

// ImmutableFieldError reports an attempt to change id or created_at
func ImmutableFieldError(field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Field:   field,
		Code:    "IMMUTABLE_FIELD",
		Message: fmt.Sprintf("%s cannot be updated", field),
	}
}

// NotFoundError reports a referenced entity that does not exist
func NotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// ConflictError reports a state-machine violation
func ConflictError(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// UniquenessError reports a duplicate of a unique attribute
func UniquenessError(field, code, message string) *Error {
	return &Error{Kind: KindUniqueness, Field: field, Code: code, Message: message}
}

// InternalError wraps a store failure. The wrapped error is for logs only.
func InternalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// WithDetails attaches machine-readable context to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// AsError extracts a *Error from err, if there is one
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsCode reports whether err is a service error with the given code
func IsCode(err error, code string) bool {
	svcErr, ok := AsError(err)
	return ok && svcErr.Code == code
}

// isDuplicateKey detects unique constraint violations. TranslateError covers
// both drivers; the message check catches handles opened without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") ||
		strings.Contains(errMsg, "unique constraint")
}

// passthrough returns service errors unchanged and wraps anything else
func passthrough(err error, message string) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return InternalError(message, err)
}
