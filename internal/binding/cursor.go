package binding

import (
	"fmt"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
)

// ShaderCursor walks into a parameter the way an application fills a
// shader object: by field name or index and array element. Cursors are
// values; every step returns a new cursor and the first failure sticks.
type ShaderCursor struct {
	x    *Extractor
	info *Info
	typ  *layout.TypeLayout
	name string

	loc layout.Location

	rangeIndex int
	arrayIndex uint64
	err        error
}

// DescriptorWrite says where a value goes: a descriptor for resources and
// groups, a byte offset for ordinary data.
type DescriptorWrite struct {
	Type         BindingType
	Kind         layout.Kind
	Set          uint64
	Binding      uint64
	ArrayElement uint64

	Uniform    bool
	ByteOffset uint64
	ByteSize   uint64
}

// Cursor starts at a top-level parameter.
func (x *Extractor) Cursor(v *layout.VarLayout) ShaderCursor {
	c := ShaderCursor{x: x, name: v.Name, typ: v.Type, loc: layout.Root(v)}
	c.info, c.err = x.Extract(v.Type)
	return c
}

func (c ShaderCursor) fail(format string, args ...any) ShaderCursor {
	if c.err == nil {
		c.err = fmt.Errorf("%s: %s", c.name, fmt.Sprintf(format, args...))
	}
	return c
}

// Err returns the first failure along the path.
func (c ShaderCursor) Err() error { return c.err }

// Type returns the layout at the cursor.
func (c ShaderCursor) Type() *layout.TypeLayout { return c.typ }

// Location returns the absolute position of the cursor.
func (c ShaderCursor) Location() layout.Location { return c.loc }

// BindingRangeIndex indexes the binding ranges of the object the cursor is
// currently in.
func (c ShaderCursor) BindingRangeIndex() int { return c.rangeIndex }

// ArrayIndex is the linearised element index inside the current object:
// outer*count + inner.
func (c ShaderCursor) ArrayIndex() uint64 { return c.arrayIndex }

// Field steps into the field called name. Parameter groups are entered
// transparently.
func (c ShaderCursor) Field(name string) ShaderCursor {
	c = c.enterGroup()
	if c.err != nil {
		return c
	}
	_, i, err := c.typ.FindField(name)
	if err != nil {
		c.err = err
		return c
	}
	return c.FieldIndex(i)
}

// FieldIndex steps into field i.
func (c ShaderCursor) FieldIndex(i int) ShaderCursor {
	c = c.enterGroup()
	if c.err != nil {
		return c
	}
	if i < 0 || i >= len(c.typ.Fields) {
		return c.fail("field index %d out of range (%d fields)", i, len(c.typ.Fields))
	}
	off, err := c.x.BindingRangeOffsetForField(c.typ, i)
	if err != nil {
		c.err = err
		return c
	}
	f := c.typ.Fields[i]
	c.rangeIndex += off
	c.loc = c.loc.Field(f)
	c.typ = f.Type
	c.name += "." + f.Name
	return c
}

// Element steps into element i of an array.
func (c ShaderCursor) Element(i uint64) ShaderCursor {
	if c.err != nil {
		return c
	}
	if c.typ.Shape != entity.ShapeArray || c.typ.Element == nil {
		return c.fail("%s is not an array", c.typ.Name)
	}
	n := c.typ.ElementCount
	if n != layout.UnboundedCount && i >= n {
		return c.fail("index %d out of range [0, %d)", i, n)
	}
	if n == layout.UnboundedCount {
		c.arrayIndex += i
	} else {
		c.arrayIndex = c.arrayIndex*n + i
	}
	c.loc = c.loc.ArrayElement(c.typ, i)
	c.typ = c.typ.Element
	c.name += fmt.Sprintf("[%d]", i)
	return c
}

// enterGroup moves from a parameter group into the object behind it.
func (c ShaderCursor) enterGroup() ShaderCursor {
	if c.err != nil || c.typ.Shape != entity.ShapeParameterGroup {
		return c
	}
	g := c.typ
	in := c.x.extract(g)
	if c.info != nil && c.info.Layout != g {
		sub, ok := c.info.SubObject(c.rangeIndex)
		if !ok {
			return c.fail("no sub-object at binding range %d", c.rangeIndex)
		}
		in = sub.Info
	}
	c.info = in
	c.loc = c.loc.Element(g)
	c.arrayIndex = 0
	c.rangeIndex = 0
	if in.ImplicitBuffer {
		c.rangeIndex = 1
	}
	c.typ = g.ElementType()
	return c
}

// Write reports where the value at the cursor is written.
func (c ShaderCursor) Write() (DescriptorWrite, error) {
	if c.err != nil {
		return DescriptorWrite{}, c.err
	}
	l := c.typ
	switch l.Shape {
	case entity.ShapeResource:
		k := leafKind(l)
		if !descriptorKind(k) {
			return c.uniform(ResourceType(l.Resource), k), nil
		}
		return DescriptorWrite{
			Type:         ResourceType(l.Resource),
			Kind:         k,
			Set:          c.loc.Space(k),
			Binding:      c.loc.RunStart(k),
			ArrayElement: c.loc.Index(),
		}, nil

	case entity.ShapeParameterGroup:
		typ := GroupType(c.x.Target, l)
		if l.SpaceCreating {
			return DescriptorWrite{Type: typ, Kind: layout.KindRegisterSpace, Set: c.loc.Offset(layout.KindRegisterSpace)}, nil
		}
		k := containerKind(l)
		if !descriptorKind(k) {
			return c.uniform(typ, k), nil
		}
		cl := c.loc.Container(l)
		return DescriptorWrite{Type: typ, Kind: k, Set: cl.Space(k), Binding: cl.RunStart(k), ArrayElement: cl.Index()}, nil
	}

	if l.Size(layout.KindBytes) == 0 {
		return DescriptorWrite{}, fmt.Errorf("%s: %s holds nothing to write", c.name, l.Name)
	}
	return c.uniform(TypeUnknown, layout.KindBytes), nil
}

func (c ShaderCursor) uniform(typ BindingType, k layout.Kind) DescriptorWrite {
	return DescriptorWrite{
		Type:       typ,
		Kind:       k,
		Uniform:    true,
		ByteOffset: c.loc.Offset(layout.KindBytes),
		ByteSize:   c.typ.Size(layout.KindBytes),
	}
}
