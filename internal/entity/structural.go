package entity

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func (g *Graph) internLocked(key structKey, build func() *Entity) ID {
	if id, ok := g.structural[key]; ok {
		return id
	}
	e := build()
	e.Kind = KindType
	e.Shape = key.Shape
	id := g.allocLocked(e)
	g.structural[key] = id
	return id
}

func (g *Graph) scalarLocked(k ScalarKind) ID {
	key := structKey{Shape: ShapeScalar, Scalar: k}
	return g.internLocked(key, func() *Entity { return &Entity{Scalar: k} })
}

// Scalar returns the interned scalar type.
func (g *Graph) Scalar(k ScalarKind) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scalarLocked(k)
}

// Vector returns the interned vector type elem×n.
func (g *Graph) Vector(elem ID, n uint32) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vectorLocked(elem, n)
}

func (g *Graph) vectorLocked(elem ID, n uint32) ID {
	key := structKey{Shape: ShapeVector, Elem: elem, Count: n}
	return g.internLocked(key, func() *Entity { return &Entity{Elem: elem, Count: n} })
}

// Matrix returns the interned matrix type with rows×cols elements.
func (g *Graph) Matrix(elem ID, rows, cols uint32) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := structKey{Shape: ShapeMatrix, Elem: elem, Count: rows, Cols: cols}
	return g.internLocked(key, func() *Entity { return &Entity{Elem: elem, Count: rows, Cols: cols} })
}

// Array returns the interned sized array type.
func (g *Graph) Array(elem ID, count uint32) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.arrayLocked(structKey{Shape: ShapeArray, Elem: elem, Count: count})
}

// UnsizedArray returns the interned T[] type.
func (g *Graph) UnsizedArray(elem ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.arrayLocked(structKey{Shape: ShapeArray, Elem: elem, Unsized: true})
}

// ArrayOfParam returns T[N] where N is a generic value parameter.
func (g *Graph) ArrayOfParam(elem, param ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.arrayLocked(structKey{Shape: ShapeArray, Elem: elem, CountParam: param})
}

func (g *Graph) arrayLocked(key structKey) ID {
	return g.internLocked(key, func() *Entity {
		return &Entity{Elem: key.Elem, Count: key.Count, Unsized: key.Unsized, CountParam: key.CountParam}
	})
}

// Resource returns the interned resource type. elem may be NoID.
func (g *Graph) Resource(shape ResourceShape, access ResourceAccess, elem ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resourceLocked(shape, access, elem)
}

func (g *Graph) resourceLocked(shape ResourceShape, access ResourceAccess, elem ID) ID {
	key := structKey{Shape: ShapeResource, Resource: shape, Access: access, Elem: elem}
	return g.internLocked(key, func() *Entity { return &Entity{Resource: shape, Access: access, Elem: elem} })
}

// ParameterGroup returns ConstantBuffer<elem> or ParameterBlock<elem>.
func (g *Graph) ParameterGroup(kind GroupKind, elem ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.groupLocked(kind, elem)
}

func (g *Graph) groupLocked(kind GroupKind, elem ID) ID {
	key := structKey{Shape: ShapeParameterGroup, Group: kind, Elem: elem}
	return g.internLocked(key, func() *Entity { return &Entity{Group: kind, Elem: elem} })
}

// Conjunction returns the interned A & B type. Nested conjunctions are
// flattened and members deduplicated; a single member is returned as is.
func (g *Graph) Conjunction(members ...ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conjunctionLocked(members)
}

func (g *Graph) conjunctionLocked(members []ID) ID {
	flat := make([]ID, 0, len(members))
	for _, m := range members {
		if e := g.get(m); e != nil && e.Kind == KindType && e.Shape == ShapeConjunction {
			flat = append(flat, e.Members...)
			continue
		}
		flat = append(flat, m)
	}
	slices.Sort(flat)
	flat = slices.Compact(flat)
	if len(flat) == 1 {
		return flat[0]
	}
	key := structKey{Shape: ShapeConjunction, Members: idsKey(flat)}
	return g.internLocked(key, func() *Entity { return &Entity{Members: flat} })
}

func idsKey(ids []ID) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('#')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

func (g *Graph) valueLocked(v Value) ID {
	if id, ok := g.values[v]; ok {
		return id
	}
	var typ ID
	switch v.Kind {
	case ValueInt:
		typ = g.scalarLocked(ScalarInt)
	case ValueFloat:
		typ = g.scalarLocked(ScalarFloat)
	case ValueBool:
		typ = g.scalarLocked(ScalarBool)
	case ValueString:
	default:
		panic(fmt.Sprintf("entity: invalid value kind %d", v.Kind))
	}
	id := g.allocLocked(&Entity{Kind: KindValue, Type: typ, Value: v})
	g.values[v] = id
	return id
}

// IntValue returns the interned integer constant.
func (g *Graph) IntValue(v int64) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.valueLocked(Value{Kind: ValueInt, Int: v})
}

// FloatValue returns the interned float constant.
func (g *Graph) FloatValue(v float64) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.valueLocked(Value{Kind: ValueFloat, Float: v})
}

// StringValue returns the interned string constant.
func (g *Graph) StringValue(v string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.valueLocked(Value{Kind: ValueString, Str: v})
}

// BoolValue returns the interned boolean constant.
func (g *Graph) BoolValue(v bool) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := int64(0)
	if v {
		n = 1
	}
	return g.valueLocked(Value{Kind: ValueBool, Int: n})
}
