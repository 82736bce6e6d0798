package entity

import (
	"shaderrefl/internal/source"
)

// ID identifies an entity inside a Graph.
type ID uint32

// NoID marks the absence of an entity.
const NoID ID = 0

// RegisterClass is the D3D register letter of an explicit binding.
type RegisterClass uint8

const (
	RegisterAny RegisterClass = 0 // [[vk::binding]] style, applies to every class
	RegisterB   RegisterClass = 'b'
	RegisterT   RegisterClass = 't'
	RegisterU   RegisterClass = 'u'
	RegisterS   RegisterClass = 's'
)

// ExplicitBinding is a user-provided register/binding assignment.
type ExplicitBinding struct {
	Class RegisterClass
	Index uint32
	Space uint32
}

// Modifier is one attached modifier. Semantic and Binding are payloads of
// ModSemantic and ModBinding respectively.
type Modifier struct {
	Tag      ModifierTag
	Semantic string
	Binding  ExplicitBinding
}

// Mod returns a keyword modifier.
func Mod(tag ModifierTag) Modifier { return Modifier{Tag: tag} }

// Semantic returns a semantic modifier ("SV_Position", "TEXCOORD0").
func Semantic(name string) Modifier { return Modifier{Tag: ModSemantic, Semantic: name} }

// Binding returns an explicit binding modifier.
func Binding(class RegisterClass, index, space uint32) Modifier {
	return Modifier{Tag: ModBinding, Binding: ExplicitBinding{Class: class, Index: index, Space: space}}
}

// ValueKind tags the payload of a Value entity.
type ValueKind uint8

const (
	ValueInt ValueKind = iota + 1
	ValueFloat
	ValueString
	ValueBool
)

// Value is the payload of a KindValue entity.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

// Entity is one arena record. Records are filled by the builders and are
// read-only afterwards; slices must not be modified by callers.
type Entity struct {
	ID        ID
	Kind      Kind
	Shape     Shape // KindType only
	Name      source.StringID
	Parent    ID // navigation only
	Module    ID // owning module, NoID for interned types and values
	Span      source.Span
	Modifiers []Modifier
	Attrs     []ID

	// Type is the declared type of a Var or Value, the result of a Func, the
	// function of an EntryPoint, the subject of a Conformance or Constraint.
	Type ID
	// Super is the interface of a Conformance or the bound of a Constraint.
	Super ID
	// Elem is the element of arrays, vectors, matrices, resources and
	// parameter groups.
	Elem       ID
	Count      uint32 // array length, vector width, matrix rows
	Cols       uint32 // matrix columns
	Unsized    bool   // T[]
	CountParam ID     // T[N] with N a generic value parameter
	Scalar     ScalarKind
	Resource   ResourceShape
	Access     ResourceAccess
	Group      GroupKind
	Members    []ID // conjunction members
	Conforms   []ID // declared conformances of struct/class/interface
	Stage      Stage
	Index      uint32 // 1-based position of a generic parameter, 0 otherwise
	Inner      ID     // Generic: the wrapped declaration
	Imports    []string
	Value      Value

	// Generic and Args are set on the direct result of Specialize.
	Generic ID
	Args    []ID
	// Orig is the unspecialized declaration of a specialized entity.
	Orig ID

	subst    *Subst
	children []ID
}

// Specialized reports whether the entity was produced by specialization.
func (e *Entity) Specialized() bool { return e != nil && e.subst != nil }

func (e *Entity) hasModifier(tag ModifierTag) bool {
	for _, m := range e.Modifiers {
		if m.Tag == tag {
			return true
		}
	}
	return false
}
