package entity

import (
	"fmt"
	"slices"
)

func (g *Graph) childrenLocked(id ID) []ID {
	e := g.get(id)
	if e == nil {
		return nil
	}
	if e.subst == nil {
		return e.children
	}
	if list, ok := g.childLists[id]; ok {
		return list
	}
	orig := g.entities[e.Orig]
	list := make([]ID, len(orig.children))
	for i, c := range orig.children {
		list[i] = g.specializeChildLocked(c, e.subst)
	}
	g.childLists[id] = list
	return list
}

// Children returns the ordered children of id. Children of a specialized
// entity carry its specialization.
func (g *Graph) Children(id ID) []ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.childrenLocked(id))
}

// FindChild returns the unique child named name.
func (g *Graph) FindChild(id ID, name string) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.findChildLocked(id, name)
}

func (g *Graph) findChildLocked(id ID, name string) (ID, error) {
	if g.get(id) == nil {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: id, Name: name, Arg: -1}
	}
	sid, ok := g.strings.Find(name)
	if !ok {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: id, Name: name, Arg: -1}
	}
	found := NoID
	for _, c := range g.childrenLocked(id) {
		if ce := g.entities[c]; ce.Name != sid || !namedChild(ce) {
			continue
		}
		if found != NoID {
			return NoID, &Error{
				Kind:   ErrKindAmbiguousName,
				Entity: id,
				Name:   name,
				Arg:    -1,
				Detail: fmt.Sprintf("%s and %s", g.fqnLocked(found), g.fqnLocked(c)),
			}
		}
		found = c
	}
	if found == NoID {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: id, Name: name, Arg: -1}
	}
	return found, nil
}

// entry point and conformance records share names with their subjects and
// are reached through AsModule instead of name lookup
func namedChild(e *Entity) bool {
	return e.Kind != KindEntryPoint && e.Kind != KindConformance && e.Kind != KindConstraint
}

// ChildrenNamed returns every name-visible child called name, for callers
// that resolve ambiguity themselves.
func (g *Graph) ChildrenNamed(id ID, name string) []ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	sid, ok := g.strings.Find(name)
	if !ok || g.get(id) == nil {
		return nil
	}
	var out []ID
	for _, c := range g.childrenLocked(id) {
		if ce := g.entities[c]; ce.Name == sid && namedChild(ce) {
			out = append(out, c)
		}
	}
	return out
}

// FindModifier returns the first modifier with tag.
func (g *Graph) FindModifier(id ID, tag ModifierTag) (Modifier, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil {
		return Modifier{}, false
	}
	for _, m := range e.Modifiers {
		if m.Tag == tag {
			return m, true
		}
	}
	return Modifier{}, false
}

// HasModifier reports whether id carries tag.
func (g *Graph) HasModifier(id ID, tag ModifierTag) bool {
	_, ok := g.FindModifier(id, tag)
	return ok
}

// Modifiers returns all modifiers of id.
func (g *Graph) Modifiers(id ID) []Modifier {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil {
		return slices.Clone(e.Modifiers)
	}
	return nil
}

// Attribute is a user attribute with its value arguments.
type Attribute struct {
	ID   ID
	Name string
	Args []ID
}

// UserAttributes returns the user attributes attached to id.
func (g *Graph) UserAttributes(id ID) []Attribute {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil {
		return nil
	}
	out := make([]Attribute, 0, len(e.Attrs))
	for _, a := range e.Attrs {
		ae := g.entities[a]
		out = append(out, Attribute{ID: a, Name: g.strings.MustLookup(ae.Name), Args: slices.Clone(ae.Members)})
	}
	return out
}

// Capability views. Each As* query fails with ErrWrongKind instead of
// returning a zero view.

// StructInfo describes a struct or class.
type StructInfo struct {
	Shape    Shape
	Fields   []ID // instance and static fields in declaration order
	Conforms []ID
}

// AsStruct views id as a struct or class.
func (g *Graph) AsStruct(id ID) (StructInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || (e.Shape != ShapeStruct && e.Shape != ShapeClass) {
		return StructInfo{}, wrongKind(id, g.nameLocked(id), "struct", e)
	}
	info := StructInfo{Shape: e.Shape, Conforms: slices.Clone(e.Conforms)}
	for _, c := range g.childrenLocked(id) {
		if g.entities[c].Kind == KindVar {
			info.Fields = append(info.Fields, c)
		}
	}
	return info, nil
}

// InterfaceInfo describes an interface.
type InterfaceInfo struct {
	Methods  []ID
	Conforms []ID
}

// AsInterface views id as an interface.
func (g *Graph) AsInterface(id ID) (InterfaceInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeInterface {
		return InterfaceInfo{}, wrongKind(id, g.nameLocked(id), "interface", e)
	}
	info := InterfaceInfo{Conforms: slices.Clone(e.Conforms)}
	for _, c := range g.childrenLocked(id) {
		if k := g.entities[c].Kind; k == KindFunc || k == KindGeneric {
			info.Methods = append(info.Methods, c)
		}
	}
	return info, nil
}

// EnumInfo describes an enum.
type EnumInfo struct {
	Underlying ID
	Cases      []ID
}

// AsEnum views id as an enum.
func (g *Graph) AsEnum(id ID) (EnumInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeEnum {
		return EnumInfo{}, wrongKind(id, g.nameLocked(id), "enum", e)
	}
	return EnumInfo{Underlying: e.Elem, Cases: slices.Clone(g.childrenLocked(id))}, nil
}

// ArrayInfo describes an array type.
type ArrayInfo struct {
	Elem ID
	// Count is the element count of a sized array.
	Count   uint32
	Unsized bool
	// CountParam is set while the length is still a generic value parameter.
	CountParam ID
}

// ElementCount returns the count and whether it is known.
func (a ArrayInfo) ElementCount() (uint32, bool) {
	if a.Unsized || a.CountParam != NoID {
		return 0, false
	}
	return a.Count, true
}

// AsArray views id as an array.
func (g *Graph) AsArray(id ID) (ArrayInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeArray {
		return ArrayInfo{}, wrongKind(id, g.nameLocked(id), "array", e)
	}
	return ArrayInfo{Elem: e.Elem, Count: e.Count, Unsized: e.Unsized, CountParam: e.CountParam}, nil
}

// UnwrapArray strips every array layer and returns the innermost element.
func (g *Graph) UnwrapArray(id ID) ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for {
		e := g.get(id)
		if e == nil || e.Kind != KindType || e.Shape != ShapeArray {
			return id
		}
		id = e.Elem
	}
}

// TotalArrayElementCount multiplies the counts of nested arrays. It
// returns 0 when any layer is unsized and 1 for non-arrays.
func (g *Graph) TotalArrayElementCount(id ID) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := uint64(1)
	for {
		e := g.get(id)
		if e == nil || e.Kind != KindType || e.Shape != ShapeArray {
			return total
		}
		if e.Unsized || e.CountParam != NoID {
			return 0
		}
		total *= uint64(e.Count)
		id = e.Elem
	}
}

// VectorInfo describes a vector.
type VectorInfo struct {
	Elem  ID
	Count uint32
}

// AsVector views id as a vector.
func (g *Graph) AsVector(id ID) (VectorInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeVector {
		return VectorInfo{}, wrongKind(id, g.nameLocked(id), "vector", e)
	}
	return VectorInfo{Elem: e.Elem, Count: e.Count}, nil
}

// MatrixInfo describes a matrix.
type MatrixInfo struct {
	Elem ID
	Rows uint32
	Cols uint32
}

// AsMatrix views id as a matrix.
func (g *Graph) AsMatrix(id ID) (MatrixInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeMatrix {
		return MatrixInfo{}, wrongKind(id, g.nameLocked(id), "matrix", e)
	}
	return MatrixInfo{Elem: e.Elem, Rows: e.Count, Cols: e.Cols}, nil
}

// AsScalar views id as a scalar.
func (g *Graph) AsScalar(id ID) (ScalarKind, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeScalar {
		return ScalarInvalid, wrongKind(id, g.nameLocked(id), "scalar", e)
	}
	return e.Scalar, nil
}

// ResourceInfo describes a resource type.
type ResourceInfo struct {
	Shape  ResourceShape
	Access ResourceAccess
	// Result is the element type returned by loads, NoID for samplers.
	Result ID
}

// AsResource views id as a resource.
func (g *Graph) AsResource(id ID) (ResourceInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeResource {
		return ResourceInfo{}, wrongKind(id, g.nameLocked(id), "resource", e)
	}
	return ResourceInfo{Shape: e.Resource, Access: e.Access, Result: e.Elem}, nil
}

// GroupInfo describes a parameter group.
type GroupInfo struct {
	Kind GroupKind
	Elem ID
}

// AsParameterGroup views id as ConstantBuffer<T> or ParameterBlock<T>.
func (g *Graph) AsParameterGroup(id ID) (GroupInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeParameterGroup {
		return GroupInfo{}, wrongKind(id, g.nameLocked(id), "parameter group", e)
	}
	return GroupInfo{Kind: e.Group, Elem: e.Elem}, nil
}

// AsConjunction returns the members of an A & B type.
func (g *Graph) AsConjunction(id ID) ([]ID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindType || e.Shape != ShapeConjunction {
		return nil, wrongKind(id, g.nameLocked(id), "conjunction", e)
	}
	return slices.Clone(e.Members), nil
}

// FuncInfo describes a function.
type FuncInfo struct {
	Params []ID
	Result ID // NoID for void
}

// AsFunc views id as a function.
func (g *Graph) AsFunc(id ID) (FuncInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.get(id)
	if e == nil || e.Kind != KindFunc {
		return FuncInfo{}, wrongKind(id, g.nameLocked(id), "func", e)
	}
	return FuncInfo{Params: slices.Clone(g.childrenLocked(id)), Result: e.Type}, nil
}

// VarInfo describes a field, parameter or global.
type VarInfo struct {
	Type ID
	// Value is set for enum cases.
	Value Value
}

// AsVar views id as a variable.
func (g *Graph) AsVar(id ID) (VarInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindVar {
		return VarInfo{}, wrongKind(id, g.nameLocked(id), "var", e)
	}
	return VarInfo{Type: e.Type, Value: e.Value}, nil
}

// TypeOf returns the declared type of a variable.
func (g *Graph) TypeOf(id ID) (ID, error) {
	v, err := g.AsVar(id)
	return v.Type, err
}

// GenericInfo describes a generic wrapper.
type GenericInfo struct {
	Inner       ID
	Params      []ID
	Constraints []ID
}

// AsGeneric views id as a generic.
func (g *Graph) AsGeneric(id ID) (GenericInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.get(id)
	if e == nil || e.Kind != KindGeneric {
		return GenericInfo{}, wrongKind(id, g.nameLocked(id), "generic", e)
	}
	info := GenericInfo{Inner: e.Inner}
	for _, c := range g.childrenLocked(id) {
		ce := g.entities[c]
		switch {
		case isGenericParam(ce):
			info.Params = append(info.Params, c)
		case ce.Kind == KindConstraint:
			info.Constraints = append(info.Constraints, c)
		}
	}
	return info, nil
}

// ValueInfo describes a constant.
type ValueInfo struct {
	Type  ID
	Value Value
}

// AsValue views id as a constant.
func (g *Graph) AsValue(id ID) (ValueInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindValue {
		return ValueInfo{}, wrongKind(id, g.nameLocked(id), "value", e)
	}
	return ValueInfo{Type: e.Type, Value: e.Value}, nil
}

// ConstraintInfo describes a conformance constraint.
type ConstraintInfo struct {
	Sub   ID
	Super ID
}

// AsConstraint views id as a constraint.
func (g *Graph) AsConstraint(id ID) (ConstraintInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindConstraint {
		return ConstraintInfo{}, wrongKind(id, g.nameLocked(id), "constraint", e)
	}
	return ConstraintInfo{Sub: e.Type, Super: e.Super}, nil
}

// EntryPointInfo describes an entry point. The function is referenced,
// not inherited.
type EntryPointInfo struct {
	Func   ID
	Stage  Stage
	Module ID
}

// AsEntryPoint views id as an entry point.
func (g *Graph) AsEntryPoint(id ID) (EntryPointInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindEntryPoint {
		return EntryPointInfo{}, wrongKind(id, g.nameLocked(id), "entry point", e)
	}
	return EntryPointInfo{Func: e.Type, Stage: e.Stage, Module: e.Module}, nil
}

// ConformanceInfo describes an explicit conformance witness request.
type ConformanceInfo struct {
	Type      ID
	Interface ID
	Module    ID
}

// AsConformance views id as a conformance record.
func (g *Graph) AsConformance(id ID) (ConformanceInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindConformance {
		return ConformanceInfo{}, wrongKind(id, g.nameLocked(id), "conformance", e)
	}
	return ConformanceInfo{Type: e.Type, Interface: e.Super, Module: e.Module}, nil
}

// ModuleInfo describes a module.
type ModuleInfo struct {
	Imports     []string
	EntryPoints []ID
	Globals     []ID
	Conformance []ID
}

// AsModule views id as a module.
func (g *Graph) AsModule(id ID) (ModuleInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Kind != KindModule {
		return ModuleInfo{}, wrongKind(id, g.nameLocked(id), "module", e)
	}
	info := ModuleInfo{Imports: slices.Clone(e.Imports)}
	for _, c := range e.children {
		switch g.entities[c].Kind {
		case KindEntryPoint:
			info.EntryPoints = append(info.EntryPoints, c)
		case KindVar:
			info.Globals = append(info.Globals, c)
		case KindConformance:
			info.Conformance = append(info.Conformance, c)
		}
	}
	return info, nil
}

// FindEntryPoint returns the entry point named name declared in module.
func (g *Graph) FindEntryPoint(module ID, name string) (ID, error) {
	info, err := g.AsModule(module)
	if err != nil {
		return NoID, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	sid, ok := g.strings.Find(name)
	if !ok {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: module, Name: name, Arg: -1}
	}
	found := NoID
	for _, ep := range info.EntryPoints {
		if g.entities[ep].Name != sid {
			continue
		}
		if found != NoID {
			return NoID, &Error{Kind: ErrKindAmbiguousName, Entity: module, Name: name, Arg: -1, Detail: "declared for several stages"}
		}
		found = ep
	}
	if found == NoID {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: module, Name: name, Arg: -1}
	}
	return found, nil
}

// FindEntryPointForStage returns the entry point for function name and
// stage, declaring one when the module has a matching function that is
// not yet marked as an entry point.
func (g *Graph) FindEntryPointForStage(module ID, name string, stage Stage) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := g.get(module)
	if m == nil || m.Kind != KindModule {
		return NoID, wrongKind(module, g.nameLocked(module), "module", m)
	}
	sid, ok := g.strings.Find(name)
	if !ok {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: module, Name: name, Arg: -1}
	}
	fn := NoID
	for _, c := range m.children {
		ce := g.entities[c]
		if ce.Name != sid {
			continue
		}
		switch ce.Kind {
		case KindEntryPoint:
			if ce.Stage == stage {
				return c, nil
			}
		case KindFunc:
			fn = c
		}
	}
	if fn == NoID {
		return NoID, &Error{Kind: ErrKindNotFound, Entity: module, Name: name, Arg: -1}
	}
	return g.addEntryPointLocked(module, fn, stage), nil
}
