package layout

import (
	"slices"

	"shaderrefl/internal/entity"
)

// UnboundedCount is the element count of an unsized array.
const UnboundedCount = ^uint64(0)

// TypeLayout is the layout of one type for one target and rule set. Each
// kind has its own size, alignment and stride; kinds the type does not
// consume are zero. Layouts are shared read-only once computed.
type TypeLayout struct {
	Target *Target
	Rules  Rules
	Type   entity.ID
	Name   string
	Shape  entity.Shape

	sizes       kindSet
	aligns      kindSet
	strides     kindSet
	elemStrides kindSet

	// Fields of a struct, static fields excluded.
	Fields []*VarLayout

	// Element of an array, vector or matrix.
	Element      *TypeLayout
	ElementCount uint64

	Rows, Cols  uint32
	MatrixMode  MatrixMode
	MajorStride uint64

	Resource entity.ResourceInfo

	// Parameter groups keep the element and the container apart: their
	// offsets live in different slots and must be composed through
	// Location, never summed.
	Group         entity.GroupKind
	ElementVar    *VarLayout
	Container     *VarLayout
	SpaceCreating bool
	Push          bool
}

// Size returns the amount of k the type consumes. Unsized arrays report
// zero for kinds that live in their own space.
func (l *TypeLayout) Size(k Kind) uint64 {
	if l == nil || k >= kindCount {
		return 0
	}
	return l.sizes[k]
}

// Alignment returns the alignment for k; 1 for kinds the type does not
// consume.
func (l *TypeLayout) Alignment(k Kind) uint64 {
	if l == nil || k >= kindCount || l.aligns[k] == 0 {
		return 1
	}
	return l.aligns[k]
}

// Stride is the distance between consecutive array elements of this type
// for k: the size rounded up to the alignment.
func (l *TypeLayout) Stride(k Kind) uint64 {
	if l == nil || k >= kindCount {
		return 0
	}
	return l.strides[k]
}

// ElementStride is the distance between elements of an array for k. It
// can exceed the element's own stride when the rules pad array elements.
// Register kinds are stored one run per leaf (see Location); for them it
// is the element's size.
func (l *TypeLayout) ElementStride(k Kind) uint64 {
	if l == nil || k >= kindCount {
		return 0
	}
	return l.elemStrides[k]
}

// ConsumedKinds lists the kinds with non-zero size. Kinds of empty nested
// types are never reported.
func (l *TypeLayout) ConsumedKinds() []Kind {
	if l == nil {
		return nil
	}
	var out []Kind
	for _, k := range Kinds() {
		if l.sizes[k] != 0 {
			out = append(out, k)
		}
	}
	return out
}

// ConsumedKind returns the single consumed kind, KindNone when nothing is
// consumed and KindMixed when several kinds are.
func (l *TypeLayout) ConsumedKind() Kind {
	kinds := l.ConsumedKinds()
	switch len(kinds) {
	case 0:
		return KindNone
	case 1:
		return kinds[0]
	default:
		return KindMixed
	}
}

// Unsized reports an unsized array layout.
func (l *TypeLayout) Unsized() bool {
	return l != nil && l.Shape == entity.ShapeArray && l.ElementCount == UnboundedCount
}

// ElementType returns the element layout of arrays and parameter groups.
func (l *TypeLayout) ElementType() *TypeLayout {
	switch {
	case l == nil:
		return nil
	case l.ElementVar != nil:
		return l.ElementVar.Type
	default:
		return l.Element
	}
}

// FindField returns the field named name and its index.
func (l *TypeLayout) FindField(name string) (*VarLayout, int, error) {
	if l == nil {
		return nil, -1, &entity.Error{Kind: entity.ErrKindNotFound, Name: name, Arg: -1}
	}
	if l.Shape != entity.ShapeStruct && l.Shape != entity.ShapeClass {
		return nil, -1, &entity.Error{Kind: entity.ErrKindWrongKind, Entity: l.Type, Name: l.Name, Arg: -1,
			Detail: "is a " + l.Shape.String() + " layout, want struct"}
	}
	i := slices.IndexFunc(l.Fields, func(f *VarLayout) bool { return f.Name == name })
	if i < 0 {
		return nil, -1, &entity.Error{Kind: entity.ErrKindNotFound, Entity: l.Type, Name: name, Arg: -1}
	}
	return l.Fields[i], i, nil
}

func (l *TypeLayout) set(k Kind, size, align uint64) {
	l.sizes[k] = size
	l.aligns[k] = max(align, 1)
	l.strides[k] = roundUp(size, l.aligns[k])
}

// VarLayout places a variable: per kind an offset, and for register kinds
// the space the offset is counted in.
type VarLayout struct {
	Var  entity.ID // NoID for synthesized variables
	Name string
	Type *TypeLayout

	offsets kindSet
	spaces  kindSet

	Semantic    string
	SystemValue bool
	Stage       entity.Stage
}

// Offset returns the offset of the variable for k relative to its parent.
func (v *VarLayout) Offset(k Kind) uint64 {
	if v == nil || k >= kindCount {
		return 0
	}
	return v.offsets[k]
}

// Space returns the register space of k-kind bindings.
func (v *VarLayout) Space(k Kind) uint64 {
	if v == nil || k >= kindCount {
		return 0
	}
	return v.spaces[k]
}

// BindingKind returns the kind BindingIndex answers for: the container
// slot of a parameter group, the first register kind otherwise, or
// KindRegisterSpace for variables that only take a space.
func (v *VarLayout) BindingKind() Kind {
	if v == nil || v.Type == nil {
		return KindNone
	}
	t := v.Type
	if t.Container != nil && !t.SpaceCreating {
		for _, k := range t.Container.Type.ConsumedKinds() {
			if k.IsRegister() {
				return k
			}
		}
	}
	kinds := t.ConsumedKinds()
	for _, k := range kinds {
		if k.IsRegister() {
			return k
		}
	}
	if slices.Contains(kinds, KindRegisterSpace) {
		return KindRegisterSpace
	}
	return KindNone
}

// BindingIndex returns the register or binding of a bindable variable.
// Variables that own a whole space bind at index 0 of it.
func (v *VarLayout) BindingIndex() uint64 {
	switch k := v.BindingKind(); k {
	case KindNone, KindRegisterSpace:
		return 0
	default:
		return v.offsets[k]
	}
}

// BindingSpace returns the register space or descriptor set.
func (v *VarLayout) BindingSpace() uint64 {
	switch k := v.BindingKind(); k {
	case KindNone:
		return 0
	case KindRegisterSpace:
		return v.offsets[KindRegisterSpace]
	default:
		return v.spaces[k]
	}
}

func (v *VarLayout) setOffset(k Kind, off uint64) { v.offsets[k] = off }
