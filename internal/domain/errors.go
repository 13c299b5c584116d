package domain

import (
	"errors"
	"fmt"
)

type ValidationKind int

const (
	KindExtension ValidationKind = iota + 1
	KindSize
	KindContent
	KindIdentifier
	KindStorage
)

func (k ValidationKind) String() string {
	switch k {
	case KindExtension:
		return "extension"
	case KindSize:
		return "size"
	case KindContent:
		return "content"
	case KindIdentifier:
		return "identifier"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ValidationError is a caller-facing rejection. Message is surfaced verbatim.
type ValidationError struct {
	Kind    ValidationKind
	Message string
	Err     error
}

func NewValidationError(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Image with ID '%s' not found", e.ID)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationKindOf returns the kind of the wrapped ValidationError, or 0.
func ValidationKindOf(err error) ValidationKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return 0
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
