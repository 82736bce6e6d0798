// Package typeexpr parses the type and entity expressions used by module
// descriptions and by name lookups:
//
//	lighting.Outer<float, 4>.Inner
//	Texture2D<float4>[8]
//	ConstantBuffer<Light>
//	ILight & IShadow
//
// The parser only builds syntax; resolution against an entity graph is
// done by the caller.
package typeexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates expression forms.
type Kind uint8

const (
	KindName Kind = iota + 1
	KindArray
	KindConjunction
	KindInt
	KindFloat
	KindString
	KindBool
)

// Segment is one dotted component with optional generic arguments.
type Segment struct {
	Name string
	Args []*Expr
}

// Expr is a parsed type or value expression.
type Expr struct {
	Kind Kind
	Pos  int

	Segments []Segment // KindName

	Elem      *Expr  // KindArray
	Count     int64  // KindArray, when sized by a literal
	CountName string // KindArray, when sized by a value parameter
	Unsized   bool   // KindArray

	Members []*Expr // KindConjunction

	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// IsSimpleName reports a single segment without arguments.
func (e *Expr) IsSimpleName() bool {
	return e != nil && e.Kind == KindName && len(e.Segments) == 1 && len(e.Segments[0].Args) == 0
}

// String renders the expression in canonical spelling.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindName:
		parts := make([]string, len(e.Segments))
		for i, seg := range e.Segments {
			parts[i] = seg.String()
		}
		return strings.Join(parts, ".")
	case KindArray:
		switch {
		case e.Unsized:
			return e.Elem.String() + "[]"
		case e.CountName != "":
			return e.Elem.String() + "[" + e.CountName + "]"
		default:
			return e.Elem.String() + "[" + strconv.FormatInt(e.Count, 10) + "]"
		}
	case KindConjunction:
		parts := make([]string, len(e.Members))
		for i, m := range e.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, " & ")
	case KindInt:
		return strconv.FormatInt(e.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(e.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(e.Str)
	case KindBool:
		return strconv.FormatBool(e.Bool)
	}
	return fmt.Sprintf("<expr kind=%d>", e.Kind)
}

func (s Segment) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	return s.Name + "<" + strings.Join(args, ", ") + ">"
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid type expression %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}
