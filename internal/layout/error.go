package layout

import (
	"errors"
	"fmt"
	"strings"

	"shaderrefl/internal/entity"
)

var (
	ErrUnsupportedConstruct = errors.New("unsupported construct")
	ErrCyclicLayout         = errors.New("cyclic layout")
	ErrTargetMismatch       = errors.New("target mismatch")
)

// ErrorKind enumerates layout failures.
type ErrorKind uint8

const (
	// ErrKindUnsupported: the target has no layout rule for the construct.
	ErrKindUnsupported ErrorKind = iota + 1
	// ErrKindCyclic: a type contains itself by value. Reaching the engine
	// with such a type is an upstream bug.
	ErrKindCyclic
	// ErrKindTargetMismatch: a layout computed for one target was used
	// with another.
	ErrKindTargetMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindUnsupported:
		return "unsupported"
	case ErrKindCyclic:
		return "cyclic"
	case ErrKindTargetMismatch:
		return "target_mismatch"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error describes a failed layout computation or query.
type Error struct {
	Kind   ErrorKind
	Type   entity.ID
	Name   string // readable name of Type
	Target string
	Want   string   // ErrKindTargetMismatch: the target the query was for
	Cycle  []string // ErrKindCyclic
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ErrKindUnsupported:
		return fmt.Sprintf("%s: %s has no layout: %s", e.Target, e.Name, e.Detail)
	case ErrKindCyclic:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("%s: type %s contains itself", e.Target, e.Name)
		}
		return fmt.Sprintf("%s: type contains itself (cycle: %s)", e.Target, strings.Join(e.Cycle, " -> "))
	case ErrKindTargetMismatch:
		return fmt.Sprintf("layout of %s was computed for %s, queried for %s", e.Name, e.Target, e.Want)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ErrKindUnsupported:
		return ErrUnsupportedConstruct
	case ErrKindCyclic:
		return ErrCyclicLayout
	case ErrKindTargetMismatch:
		return ErrTargetMismatch
	}
	return nil
}

// Fatal reports internal-invariant violations that callers must not work
// around.
func (e *Error) Fatal() bool { return e != nil && e.Kind == ErrKindCyclic }

// IsFatal reports whether err carries a fatal layout error.
func IsFatal(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Fatal()
}

// KindOf returns the kind of the layout error wrapped anywhere in err.
func KindOf(err error) (ErrorKind, bool) {
	var le *Error
	if !errors.As(err, &le) {
		return 0, false
	}
	return le.Kind, true
}

// CheckTarget returns a TargetMismatch error when l was not computed for t.
func CheckTarget(l *TypeLayout, t *Target) error {
	if l == nil || t == nil || l.Target == nil || l.Target.Name == t.Name {
		return nil
	}
	return &Error{Kind: ErrKindTargetMismatch, Type: l.Type, Name: l.Name, Target: l.Target.Name, Want: t.Name}
}
