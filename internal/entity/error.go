package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAmbiguousName       = errors.New("ambiguous name")
	ErrArgumentMismatch    = errors.New("argument mismatch")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrWrongKind           = errors.New("wrong entity kind")
)

// ErrorKind enumerates entity query failures.
type ErrorKind uint8

const (
	ErrKindNotFound ErrorKind = iota + 1
	ErrKindAmbiguousName
	ErrKindArgumentMismatch
	ErrKindConstraintViolation
	ErrKindWrongKind
)

// Error describes a failed entity query.
type Error struct {
	Kind   ErrorKind
	Entity ID     // entity the query ran against
	Name   string // looked-up name or offending entity name
	Arg    int    // argument index for specialization errors, -1 otherwise
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrKindNotFound:
		return fmt.Sprintf("%q not found in entity#%d", e.Name, e.Entity)
	case ErrKindAmbiguousName:
		return fmt.Sprintf("%q is ambiguous in entity#%d: %s", e.Name, e.Entity, e.Detail)
	case ErrKindArgumentMismatch:
		if e.Arg >= 0 {
			return fmt.Sprintf("argument %d of %s: %s", e.Arg, e.Name, e.Detail)
		}
		return fmt.Sprintf("arguments of %s: %s", e.Name, e.Detail)
	case ErrKindConstraintViolation:
		return fmt.Sprintf("argument %d of %s: %s", e.Arg, e.Name, e.Detail)
	case ErrKindWrongKind:
		return fmt.Sprintf("entity#%d %s: %s", e.Entity, e.Name, e.Detail)
	default:
		return fmt.Sprintf("entity error kind=%d entity#%d", e.Kind, e.Entity)
	}
}

// Unwrap exposes the sentinel for errors.Is.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ErrKindNotFound:
		return ErrNotFound
	case ErrKindAmbiguousName:
		return ErrAmbiguousName
	case ErrKindArgumentMismatch:
		return ErrArgumentMismatch
	case ErrKindConstraintViolation:
		return ErrConstraintViolation
	case ErrKindWrongKind:
		return ErrWrongKind
	}
	return nil
}

func wrongKind(id ID, name, want string, got *Entity) *Error {
	detail := "invalid entity, want " + want
	if got != nil {
		detail = fmt.Sprintf("is %s", got.Kind)
		if got.Kind == KindType {
			detail = fmt.Sprintf("is %s %s", got.Shape, got.Kind)
		}
		detail += ", want " + want
	}
	return &Error{Kind: ErrKindWrongKind, Entity: id, Name: name, Arg: -1, Detail: detail}
}
