package link

import (
	"errors"

	"shaderrefl/internal/diag"
)

var (
	ErrDuplicateDefinition        = errors.New("duplicate definition")
	ErrUnresolvedReference        = errors.New("unresolved reference")
	ErrMultipleEntryPointConflict = errors.New("multiple entry point conflict")
	ErrInvalidEntryPoint          = errors.New("invalid entry point")
)

// Error carries every problem found by one Compose or Link call.
type Error struct {
	Op  string // "compose" or "link"
	Bag *diag.Bag
}

func (e *Error) Error() string {
	return e.Op + ": " + (&diag.Failure{Bag: e.Bag}).Error()
}

// Unwrap exposes the diagnostics so that errors.Is matches each sentinel
// and diag.BagOf recovers the bag.
func (e *Error) Unwrap() []error {
	return []error{&diag.Failure{Bag: e.Bag}}
}

func failure(op string, bag *diag.Bag) error {
	if !bag.HasErrors() {
		return nil
	}
	bag.Sort()
	return &Error{Op: op, Bag: bag}
}
