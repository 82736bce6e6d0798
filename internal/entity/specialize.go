package entity

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Subst binds the parameters of one generic to arguments. Parent is the
// substitution of an enclosing specialization (a generic nested inside
// Outer<int>).
type Subst struct {
	Scope  ID // unspecialized declaration under substitution
	Owner  ID // the specialization of Scope
	Params []ID
	Args   []ID
	Parent *Subst
}

func (s *Subst) lookup(param ID) (ID, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		for i, p := range cur.Params {
			if p == param {
				return cur.Args[i], true
			}
		}
	}
	return NoID, false
}

// scopeFor returns the innermost substitution whose scope encloses id.
func (g *Graph) scopeFor(id ID, s *Subst) *Subst {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Scope == NoID {
			continue
		}
		for p := id; p != NoID; p = g.entities[p].Parent {
			if p == cur.Scope {
				return cur
			}
		}
	}
	return nil
}

// substLocked rewrites a type reference under s.
func (g *Graph) substLocked(id ID, s *Subst) ID {
	if s == nil || id == NoID {
		return id
	}
	e := g.get(id)
	if e == nil {
		return id
	}
	switch {
	case e.Kind == KindTypeVar || isGenericParam(e):
		if arg, ok := s.lookup(id); ok {
			return arg
		}
		return id
	case e.Kind == KindValue:
		return id
	case e.Generic != NoID:
		gen := g.substLocked(e.Generic, s)
		args := make([]ID, len(e.Args))
		changed := gen != e.Generic
		for i, a := range e.Args {
			args[i] = g.substLocked(a, s)
			changed = changed || args[i] != a
		}
		if !changed {
			return id
		}
		return g.specializeLocked(gen, args)
	case e.Kind == KindType && !e.Shape.Nominal() && e.subst == nil:
		return g.substStructuralLocked(e, s)
	case e.subst != nil:
		return id
	}
	if sc := g.scopeFor(id, s); sc != nil {
		return g.specializeChildLocked(id, sc)
	}
	return id
}

func (g *Graph) substStructuralLocked(e *Entity, s *Subst) ID {
	switch e.Shape {
	case ShapeArray:
		elem := g.substLocked(e.Elem, s)
		key := structKey{Shape: ShapeArray, Elem: elem, Count: e.Count, Unsized: e.Unsized, CountParam: e.CountParam}
		if e.CountParam != NoID {
			if arg, ok := s.lookup(e.CountParam); ok {
				v := g.get(arg)
				if n, ok := arrayLength(v); ok {
					key.CountParam = NoID
					key.Count = n
				} else if v != nil && isGenericParam(v) {
					key.CountParam = arg
				}
			}
		}
		if key.Elem == e.Elem && key.CountParam == e.CountParam {
			return e.ID
		}
		return g.arrayLocked(key)
	case ShapeVector:
		elem := g.substLocked(e.Elem, s)
		if elem == e.Elem {
			return e.ID
		}
		return g.vectorLocked(elem, e.Count)
	case ShapeMatrix:
		elem := g.substLocked(e.Elem, s)
		if elem == e.Elem {
			return e.ID
		}
		key := structKey{Shape: ShapeMatrix, Elem: elem, Count: e.Count, Cols: e.Cols}
		return g.internLocked(key, func() *Entity { return &Entity{Elem: elem, Count: e.Count, Cols: e.Cols} })
	case ShapeResource:
		elem := g.substLocked(e.Elem, s)
		if elem == e.Elem {
			return e.ID
		}
		return g.resourceLocked(e.Resource, e.Access, elem)
	case ShapeParameterGroup:
		elem := g.substLocked(e.Elem, s)
		if elem == e.Elem {
			return e.ID
		}
		return g.groupLocked(e.Group, elem)
	case ShapeConjunction:
		members := make([]ID, len(e.Members))
		changed := false
		for i, m := range e.Members {
			members[i] = g.substLocked(m, s)
			changed = changed || members[i] != m
		}
		if !changed {
			return e.ID
		}
		return g.conjunctionLocked(members)
	}
	return e.ID
}

func (g *Graph) cloneHeader(o *Entity) *Entity {
	return &Entity{
		Kind:       o.Kind,
		Shape:      o.Shape,
		Name:       o.Name,
		Module:     o.Module,
		Span:       o.Span,
		Modifiers:  o.Modifiers,
		Attrs:      o.Attrs,
		Count:      o.Count,
		Cols:       o.Cols,
		Unsized:    o.Unsized,
		CountParam: o.CountParam,
		Scalar:     o.Scalar,
		Resource:   o.Resource,
		Access:     o.Access,
		Group:      o.Group,
		Stage:      o.Stage,
		Index:      o.Index,
		Imports:    o.Imports,
		Value:      o.Value,
	}
}

func (g *Graph) fillPayloadLocked(e, o *Entity, s *Subst) {
	e.Type = g.substLocked(o.Type, s)
	e.Super = g.substLocked(o.Super, s)
	e.Elem = g.substLocked(o.Elem, s)
	e.Inner = g.substLocked(o.Inner, s)
	if len(o.Conforms) > 0 {
		e.Conforms = make([]ID, len(o.Conforms))
		for i, c := range o.Conforms {
			e.Conforms[i] = g.substLocked(c, s)
		}
	}
	if len(o.Members) > 0 {
		e.Members = make([]ID, len(o.Members))
		for i, m := range o.Members {
			e.Members[i] = g.substLocked(m, s)
		}
	}
}

// specializeChildLocked returns the view of declaration orig inside the
// specialization s.Owner, creating it on first use.
func (g *Graph) specializeChildLocked(orig ID, s *Subst) ID {
	if orig == s.Scope {
		return s.Owner
	}
	key := childKey{Orig: orig, Owner: s.Owner}
	if id, ok := g.specChildren[key]; ok {
		return id
	}
	o := g.entities[orig]
	e := g.cloneHeader(o)
	e.Orig = orig
	e.subst = s
	id := g.allocLocked(e)
	g.specChildren[key] = id
	e.Parent = g.substLocked(o.Parent, s)
	g.fillPayloadLocked(e, o, s)
	return id
}

// genericParts returns the unspecialized generic behind gen.
func (g *Graph) genericParts(gen *Entity) *Entity {
	if gen.Orig != NoID {
		return g.entities[gen.Orig]
	}
	return gen
}

func (g *Graph) genericParamsLocked(gen *Entity) []ID {
	orig := g.genericParts(gen)
	var params []ID
	for _, c := range orig.children {
		if isGenericParam(g.entities[c]) {
			params = append(params, c)
		}
	}
	return params
}

func (g *Graph) specializeLocked(generic ID, args []ID) ID {
	key := specKey{Generic: generic, Args: idsKey(args)}
	if id, ok := g.specs[key]; ok {
		return id
	}
	gen := g.entities[generic]
	orig := g.genericParts(gen)
	inner := g.entities[orig.Inner]
	s := &Subst{
		Scope:  orig.Inner,
		Params: g.genericParamsLocked(gen),
		Args:   slices.Clone(args),
		Parent: gen.subst,
	}
	e := g.cloneHeader(inner)
	e.Parent = gen.Parent
	e.Module = gen.Module
	e.Generic = generic
	e.Args = s.Args
	e.Orig = orig.Inner
	e.subst = s
	id := g.allocLocked(e)
	s.Owner = id
	g.specs[key] = id
	g.fillPayloadLocked(e, inner, s)
	return id
}

// Specialize applies args to generic. Equal arguments return the same
// entity. Arity and kind mismatches fail with ErrArgumentMismatch, failed
// conformance constraints with ErrConstraintViolation.
func (g *Graph) Specialize(generic ID, args []ID) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.get(generic)
	if gen == nil || gen.Kind != KindGeneric {
		return NoID, wrongKind(generic, g.nameLocked(generic), "generic", gen)
	}
	name := g.fqnLocked(generic)
	orig := g.genericParts(gen)
	if orig.Inner == NoID {
		return NoID, &Error{Kind: ErrKindWrongKind, Entity: generic, Name: name, Arg: -1, Detail: "generic has no declaration"}
	}
	params := g.genericParamsLocked(gen)
	if len(args) != len(params) {
		return NoID, &Error{
			Kind:   ErrKindArgumentMismatch,
			Entity: generic,
			Name:   name,
			Arg:    -1,
			Detail: fmt.Sprintf("expected %d arguments, got %d", len(params), len(args)),
		}
	}
	check := &Subst{Params: params, Args: args, Parent: gen.subst}
	for i, p := range params {
		if err := g.checkArgLocked(generic, name, i, g.entities[p], args[i], check); err != nil {
			return NoID, err
		}
	}
	if id, ok := g.specs[specKey{Generic: generic, Args: idsKey(args)}]; ok {
		return id, nil
	}
	for _, c := range orig.children {
		ce := g.entities[c]
		if ce.Kind != KindConstraint {
			continue
		}
		sub := g.substLocked(ce.Type, check)
		super := g.substLocked(ce.Super, check)
		if g.conformsLocked(sub, super, 0) {
			continue
		}
		return NoID, &Error{
			Kind:   ErrKindConstraintViolation,
			Entity: generic,
			Name:   name,
			Arg:    slices.Index(params, ce.Type),
			Detail: fmt.Sprintf("%s does not conform to %s", g.fqnLocked(sub), g.fqnLocked(super)),
		}
	}
	return g.specializeLocked(generic, args), nil
}

func (g *Graph) checkArgLocked(generic ID, name string, i int, param *Entity, arg ID, check *Subst) error {
	mismatch := func(format string, a ...any) error {
		return &Error{Kind: ErrKindArgumentMismatch, Entity: generic, Name: name, Arg: i, Detail: fmt.Sprintf(format, a...)}
	}
	pname := g.strings.MustLookup(param.Name)
	a := g.get(arg)
	if a == nil {
		return mismatch("invalid argument for %s", pname)
	}
	if param.Kind == KindTypeVar {
		if a.Kind != KindType && a.Kind != KindTypeVar {
			return mismatch("type parameter %s given %s %s", pname, a.Kind, g.nameLocked(arg))
		}
		if a.Kind == KindType && a.Shape == ShapeConjunction {
			return mismatch("type parameter %s given conjunction %s", pname, g.nameLocked(arg))
		}
		return nil
	}
	want := g.substLocked(param.Type, check)
	switch {
	case a.Kind == KindValue:
		if a.Type != want {
			return mismatch("value parameter %s expects %s, got %s", pname, g.nameLocked(want), g.nameLocked(arg))
		}
	case isGenericParam(a):
		if a.Type != want {
			return mismatch("value parameter %s expects %s, got parameter %s", pname, g.nameLocked(want), g.nameLocked(arg))
		}
	default:
		return mismatch("value parameter %s given %s %s", pname, a.Kind, g.nameLocked(arg))
	}
	return nil
}

// Conforms reports whether t declares (directly, through interface
// inheritance or through generic constraints) conformance to iface.
// Conjunction interfaces require every member.
func (g *Graph) Conforms(t, iface ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conformsLocked(t, iface, 0)
}

func (g *Graph) conformsLocked(t, iface ID, depth int) bool {
	if depth > 32 || t == NoID || iface == NoID {
		return false
	}
	if t == iface {
		return true
	}
	if ie := g.get(iface); ie != nil && ie.Kind == KindType && ie.Shape == ShapeConjunction {
		for _, m := range ie.Members {
			if !g.conformsLocked(t, m, depth+1) {
				return false
			}
		}
		return true
	}
	te := g.get(t)
	if te == nil {
		return false
	}
	switch {
	case te.Kind == KindTypeVar:
		param := t
		if te.Orig != NoID {
			param = te.Orig
		}
		gen := g.get(g.entities[param].Parent)
		if gen != nil {
			for _, c := range gen.children {
				ce := g.entities[c]
				if ce.Kind == KindConstraint && ce.Type == param && g.conformsLocked(ce.Super, iface, depth+1) {
					return true
				}
			}
		}
	case te.Kind == KindType && te.Shape == ShapeConjunction:
		for _, m := range te.Members {
			if g.conformsLocked(m, iface, depth+1) {
				return true
			}
		}
	}
	for _, c := range te.Conforms {
		if g.conformsLocked(c, iface, depth+1) {
			return true
		}
	}
	return false
}

// UnspecializedInner returns the plain declaration behind id, unwrapping
// any number of specialization layers and generic wrappers.
func (g *Graph) UnspecializedInner(id ID) ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for {
		e := g.get(id)
		if e == nil {
			return NoID
		}
		switch {
		case e.Orig != NoID:
			id = e.Orig
		case e.Kind == KindGeneric && e.Inner != NoID:
			id = e.Inner
		default:
			return id
		}
	}
}

// SpecializedGeneric returns the generic id was specialized from.
func (g *Graph) SpecializedGeneric(id ID) (ID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Generic == NoID {
		return NoID, wrongKind(id, g.nameLocked(id), "generic specialization", e)
	}
	return e.Generic, nil
}

// SpecializationArgs returns the arguments id was specialized with.
func (g *Graph) SpecializationArgs(id ID) ([]ID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil || e.Generic == NoID {
		return nil, wrongKind(id, g.nameLocked(id), "generic specialization", e)
	}
	return slices.Clone(e.Args), nil
}

func arrayLength(v *Entity) (uint32, bool) {
	if v == nil || v.Kind != KindValue || v.Value.Kind != ValueInt {
		return 0, false
	}
	n, err := safecast.Conv[uint32](v.Value.Int)
	if err != nil {
		return 0, false
	}
	return n, true
}
