package entity

import (
	"strconv"
	"strings"

	"shaderrefl/internal/source"
)

// Name returns the readable name of id including generic arguments
// ("Outer<float, 4>").
func (g *Graph) Name(id ID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nameLocked(id)
}

// SimpleName returns the leaf declaration name without arguments.
func (g *Graph) SimpleName(id ID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil {
		return ""
	}
	if e.Kind == KindValue || (e.Kind == KindType && e.Name == source.NoStringID) {
		return g.nameLocked(id)
	}
	return g.strings.MustLookup(e.Name)
}

// FullyQualifiedName returns the module-qualified name with fully
// qualified generic arguments ("lighting.Outer<lighting.Light>.Inner").
func (g *Graph) FullyQualifiedName(id ID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fqnLocked(id)
}

func (g *Graph) nameLocked(id ID) string { return g.renderLocked(id, false) }
func (g *Graph) fqnLocked(id ID) string  { return g.renderLocked(id, true) }

func (g *Graph) renderLocked(id ID, qualified bool) string {
	e := g.get(id)
	if e == nil {
		return "<invalid>"
	}
	if e.Kind == KindValue {
		return formatValue(e.Value)
	}
	if e.Kind == KindType && e.Name == source.NoStringID {
		return g.renderStructuralLocked(e, qualified)
	}
	leaf := g.strings.MustLookup(e.Name)
	if e.Generic != NoID {
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = g.renderLocked(a, qualified)
		}
		leaf += "<" + strings.Join(args, ", ") + ">"
	}
	if !qualified {
		return leaf
	}
	if prefix := g.qualifierLocked(e); prefix != "" {
		return prefix + "." + leaf
	}
	return leaf
}

func (g *Graph) qualifierLocked(e *Entity) string {
	if e.Kind == KindModule {
		return ""
	}
	pe := g.get(e.Parent)
	if pe == nil {
		return ""
	}
	// the wrapped declaration of a generic carries the wrapper's name
	if pe.Kind == KindGeneric && pe.Inner == e.ID {
		pe = g.get(pe.Parent)
		if pe == nil {
			return ""
		}
	}
	return g.renderLocked(pe.ID, true)
}

func (g *Graph) renderStructuralLocked(e *Entity, qualified bool) string {
	sub := func(id ID) string { return g.renderLocked(id, qualified) }
	switch e.Shape {
	case ShapeScalar:
		return e.Scalar.String()
	case ShapeVector:
		if el := g.get(e.Elem); el != nil && el.Shape == ShapeScalar {
			return el.Scalar.String() + strconv.FormatUint(uint64(e.Count), 10)
		}
		return "vector<" + sub(e.Elem) + ", " + strconv.FormatUint(uint64(e.Count), 10) + ">"
	case ShapeMatrix:
		dims := strconv.FormatUint(uint64(e.Count), 10) + "x" + strconv.FormatUint(uint64(e.Cols), 10)
		if el := g.get(e.Elem); el != nil && el.Shape == ShapeScalar {
			return el.Scalar.String() + dims
		}
		return "matrix<" + sub(e.Elem) + ", " + dims + ">"
	case ShapeArray:
		switch {
		case e.Unsized:
			return sub(e.Elem) + "[]"
		case e.CountParam != NoID:
			return sub(e.Elem) + "[" + g.nameLocked(e.CountParam) + "]"
		default:
			return sub(e.Elem) + "[" + strconv.FormatUint(uint64(e.Count), 10) + "]"
		}
	case ShapeResource:
		name := e.Resource.String()
		if e.Access == AccessReadWrite {
			name = "RW" + name
		}
		if e.Elem != NoID {
			name += "<" + sub(e.Elem) + ">"
		}
		return name
	case ShapeParameterGroup:
		return e.Group.String() + "<" + sub(e.Elem) + ">"
	case ShapeConjunction:
		parts := make([]string, len(e.Members))
		for i, m := range e.Members {
			parts[i] = sub(m)
		}
		return strings.Join(parts, " & ")
	}
	return e.Shape.String()
}

func formatValue(v Value) string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueBool:
		return strconv.FormatBool(v.Int != 0)
	}
	return "<value>"
}
