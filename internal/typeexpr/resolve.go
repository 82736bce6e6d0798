package typeexpr

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"shaderrefl/internal/entity"
)

// Scope supplies the candidates for the first segment of a dotted name.
type Scope interface {
	LookupFirst(name string) []entity.ID
}

// ScopeFunc adapts a function to Scope.
type ScopeFunc func(name string) []entity.ID

func (f ScopeFunc) LookupFirst(name string) []entity.ID { return f(name) }

// Resolver turns expressions into entity IDs: builtin keywords become
// interned structural types, literals become values, dotted names are
// resolved through Scope and FindChild, generic arguments specialize.
type Resolver struct {
	Graph *entity.Graph
	Scope Scope
}

// ResolveError wraps a resolution failure with the offending expression.
type ResolveError struct {
	Expr string
	Err  error
}

func (e *ResolveError) Error() string { return fmt.Sprintf("%s: %v", e.Expr, e.Err) }
func (e *ResolveError) Unwrap() error { return e.Err }

// ResolveString parses and resolves src.
func (r *Resolver) ResolveString(src string) (entity.ID, error) {
	e, err := Parse(src)
	if err != nil {
		return entity.NoID, err
	}
	return r.Resolve(e)
}

// Resolve resolves a parsed expression. "void" resolves to NoID.
func (r *Resolver) Resolve(e *Expr) (entity.ID, error) {
	id, err := r.resolve(e)
	if err != nil {
		var re *ResolveError
		if !asResolveError(err, &re) {
			err = &ResolveError{Expr: e.String(), Err: err}
		}
		return entity.NoID, err
	}
	return id, nil
}

func asResolveError(err error, out **ResolveError) bool {
	re, ok := err.(*ResolveError)
	if ok {
		*out = re
	}
	return ok
}

func (r *Resolver) resolve(e *Expr) (entity.ID, error) {
	g := r.Graph
	switch e.Kind {
	case KindInt:
		return g.IntValue(e.Int), nil
	case KindFloat:
		return g.FloatValue(e.Float), nil
	case KindString:
		return g.StringValue(e.Str), nil
	case KindBool:
		return g.BoolValue(e.Bool), nil
	case KindConjunction:
		members := make([]entity.ID, len(e.Members))
		for i, m := range e.Members {
			id, err := r.resolve(m)
			if err != nil {
				return entity.NoID, err
			}
			members[i] = id
		}
		return g.Conjunction(members...), nil
	case KindArray:
		elem, err := r.resolve(e.Elem)
		if err != nil {
			return entity.NoID, err
		}
		switch {
		case e.Unsized:
			return g.UnsizedArray(elem), nil
		case e.CountName != "":
			param, err := r.resolve(&Expr{Kind: KindName, Pos: e.Pos, Segments: []Segment{{Name: e.CountName}}})
			if err != nil {
				return entity.NoID, err
			}
			if v, err := g.AsValue(param); err == nil && v.Value.Kind == entity.ValueInt {
				n, err := safecast.Conv[uint32](v.Value.Int)
				if err != nil {
					return entity.NoID, fmt.Errorf("array length %d: %w", v.Value.Int, err)
				}
				return g.Array(elem, n), nil
			}
			return g.ArrayOfParam(elem, param), nil
		default:
			n, err := safecast.Conv[uint32](e.Count)
			if err != nil {
				return entity.NoID, fmt.Errorf("array length %d: %w", e.Count, err)
			}
			return g.Array(elem, n), nil
		}
	case KindName:
		if len(e.Segments) == 1 {
			if id, ok, err := r.builtin(e.Segments[0]); ok || err != nil {
				return id, err
			}
		}
		return r.resolvePath(e)
	}
	return entity.NoID, fmt.Errorf("unsupported expression kind %d", e.Kind)
}

func (r *Resolver) builtin(seg Segment) (entity.ID, bool, error) {
	g := r.Graph
	if seg.Name == "void" && len(seg.Args) == 0 {
		return entity.NoID, true, nil
	}
	if k, ok := entity.ParseScalar(seg.Name); ok && len(seg.Args) == 0 {
		return g.Scalar(k), true, nil
	}
	if sh, ok := ParseShorthand(seg.Name); ok && len(seg.Args) == 0 {
		k, _ := entity.ParseScalar(sh.Scalar)
		if sh.IsMatrix() {
			return g.Matrix(g.Scalar(k), sh.Rows, sh.Cols), true, nil
		}
		return g.Vector(g.Scalar(k), sh.Rows), true, nil
	}
	args := func(n int) ([]entity.ID, error) {
		if len(seg.Args) != n {
			return nil, fmt.Errorf("%s expects %d arguments, got %d", seg.Name, n, len(seg.Args))
		}
		out := make([]entity.ID, n)
		for i, a := range seg.Args {
			id, err := r.resolve(a)
			if err != nil {
				return nil, err
			}
			out[i] = id
		}
		return out, nil
	}
	switch seg.Name {
	case "ConstantBuffer", "ParameterBlock":
		a, err := args(1)
		if err != nil {
			return entity.NoID, true, err
		}
		kind := entity.GroupConstantBuffer
		if seg.Name == "ParameterBlock" {
			kind = entity.GroupParameterBlock
		}
		return g.ParameterGroup(kind, a[0]), true, nil
	case "vector":
		a, err := args(2)
		if err != nil {
			return entity.NoID, true, err
		}
		n, err := dimension(g, a[1])
		if err != nil {
			return entity.NoID, true, err
		}
		return g.Vector(a[0], n), true, nil
	case "matrix":
		a, err := args(3)
		if err != nil {
			return entity.NoID, true, err
		}
		rows, err := dimension(g, a[1])
		if err != nil {
			return entity.NoID, true, err
		}
		cols, err := dimension(g, a[2])
		if err != nil {
			return entity.NoID, true, err
		}
		return g.Matrix(a[0], rows, cols), true, nil
	}
	if shape, access, ok := entity.ParseResource(seg.Name); ok {
		var elem entity.ID
		switch len(seg.Args) {
		case 0:
		case 1:
			a, err := args(1)
			if err != nil {
				return entity.NoID, true, err
			}
			elem = a[0]
		default:
			return entity.NoID, true, fmt.Errorf("%s takes at most one argument", seg.Name)
		}
		return g.Resource(shape, access, elem), true, nil
	}
	return entity.NoID, false, nil
}

func dimension(g *entity.Graph, id entity.ID) (uint32, error) {
	v, err := g.AsValue(id)
	if err != nil || v.Value.Kind != entity.ValueInt || v.Value.Int < 1 || v.Value.Int > 4 {
		return 0, fmt.Errorf("dimension must be an integer in 1..4, got %s", g.Name(id))
	}
	return uint32(v.Value.Int), nil //nolint:gosec // checked above
}

func (r *Resolver) resolvePath(e *Expr) (entity.ID, error) {
	g := r.Graph
	first := e.Segments[0]
	var cands []entity.ID
	if r.Scope != nil {
		cands = r.Scope.LookupFirst(first.Name)
	}
	slices.Sort(cands)
	cands = slices.Compact(cands)
	switch len(cands) {
	case 0:
		return entity.NoID, &entity.Error{Kind: entity.ErrKindNotFound, Name: first.Name, Arg: -1}
	case 1:
	default:
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = g.FullyQualifiedName(c)
		}
		return entity.NoID, &entity.Error{
			Kind:   entity.ErrKindAmbiguousName,
			Name:   first.Name,
			Arg:    -1,
			Detail: strings.Join(names, ", "),
		}
	}
	cur, err := r.applyArgs(cands[0], first, len(e.Segments) > 1)
	if err != nil {
		return entity.NoID, err
	}
	for i, seg := range e.Segments[1:] {
		next, err := g.FindChild(cur, seg.Name)
		if err != nil {
			return entity.NoID, err
		}
		cur, err = r.applyArgs(next, seg, i+2 < len(e.Segments))
		if err != nil {
			return entity.NoID, err
		}
	}
	return cur, nil
}

// applyArgs specializes id with the segment's arguments. A bare generic
// followed by more segments is navigated through its declaration.
func (r *Resolver) applyArgs(id entity.ID, seg Segment, more bool) (entity.ID, error) {
	g := r.Graph
	if len(seg.Args) == 0 {
		if more && g.Kind(id) == entity.KindGeneric {
			info, err := g.AsGeneric(id)
			if err != nil {
				return entity.NoID, err
			}
			return info.Inner, nil
		}
		return id, nil
	}
	if g.Kind(id) != entity.KindGeneric {
		return entity.NoID, &entity.Error{
			Kind:   entity.ErrKindArgumentMismatch,
			Entity: id,
			Name:   g.FullyQualifiedName(id),
			Arg:    -1,
			Detail: "is not generic",
		}
	}
	args := make([]entity.ID, len(seg.Args))
	for i, a := range seg.Args {
		arg, err := r.resolve(a)
		if err != nil {
			return entity.NoID, err
		}
		args[i] = arg
	}
	return g.Specialize(id, args)
}
