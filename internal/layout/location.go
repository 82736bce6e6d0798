package layout

// Location is an absolute position reached by walking a chain of
// variable layouts from a top-level parameter. Offsets of a field are
// relative to its parent and can be added; crossing into a parameter
// group goes through Container or Element, because the container and
// its contents use different slots and, for space-creating groups, a
// different space.
//
// Inside sized arrays register kinds are stored one run per leaf, so a
// location keeps the run start, the product of the enclosing element
// counts (scale) and the linearised element index. The slot of a leaf is
// start + index*size.
type Location struct {
	offsets kindSet
	spaces  kindSet
	scale   uint64 // 0 means 1
	index   uint64
	typ     *TypeLayout
}

// Root starts at a top-level parameter.
func Root(v *VarLayout) Location {
	var l Location
	if v != nil {
		l.offsets = v.offsets
		l.spaces = v.spaces
		l.typ = v.Type
	}
	return l
}

// Offset returns the absolute offset for k.
func (l Location) Offset(k Kind) uint64 {
	if k >= kindCount {
		return 0
	}
	if k.IsRegister() && l.index != 0 && l.typ != nil {
		return l.offsets[k] + l.index*l.typ.Size(k)
	}
	return l.offsets[k]
}

// RunStart returns the first slot of the run that holds every element of
// the leaf at l for register kind k. For other kinds it is Offset.
func (l Location) RunStart(k Kind) uint64 {
	if k >= kindCount {
		return 0
	}
	return l.offsets[k]
}

// Index is the linearised element index inside the enclosing arrays:
// outer*count + inner.
func (l Location) Index() uint64 { return l.index }

// Space returns the absolute space for register kind k.
func (l Location) Space(k Kind) uint64 {
	if k >= kindCount {
		return 0
	}
	return l.spaces[k]
}

func (l Location) mult() uint64 {
	if l.scale == 0 {
		return 1
	}
	return l.scale
}

// Field descends into a struct field.
func (l Location) Field(v *VarLayout) Location {
	if v == nil {
		return l
	}
	s := l.mult()
	for k := range kindCount {
		if k.IsRegister() {
			l.offsets[k] += s * v.offsets[k]
		} else {
			l.offsets[k] += v.offsets[k]
		}
		l.spaces[k] += v.spaces[k]
	}
	l.typ = v.Type
	return l
}

// ArrayElement moves to element i of an array laid out as arr.
func (l Location) ArrayElement(arr *TypeLayout, i uint64) Location {
	if arr == nil || arr.Element == nil {
		return l
	}
	for k := range kindCount {
		if !k.IsRegister() {
			l.offsets[k] += i * arr.ElementStride(k)
		}
	}
	n := arr.ElementCount
	if n == UnboundedCount {
		// Unsized arrays sit alone in their space with one slot per element.
		l.index += i
	} else {
		l.index = l.index*n + i
		l.scale = l.mult() * n
	}
	l.typ = arr.Element
	return l
}

// Container moves to the group's own buffer or block slot.
func (l Location) Container(g *TypeLayout) Location {
	if g == nil || g.Container == nil {
		return l
	}
	if g.SpaceCreating {
		return l.enterSpace(g.Container)
	}
	return l.Field(g.Container)
}

// Element moves into the group's element. Ordinary data restarts at the
// beginning of the group's buffer.
func (l Location) Element(g *TypeLayout) Location {
	if g == nil || g.ElementVar == nil {
		return l
	}
	if g.SpaceCreating {
		return l.enterSpace(g.ElementVar)
	}
	out := l.Field(g.ElementVar)
	out.offsets[KindBytes] = g.ElementVar.offsets[KindBytes]
	return out
}

func (l Location) enterSpace(v *VarLayout) Location {
	space := l.offsets[KindRegisterSpace]
	out := Location{typ: v.Type}
	for k := range kindCount {
		out.offsets[k] = v.offsets[k]
		if k.IsRegister() {
			out.spaces[k] = space
		}
	}
	out.offsets[KindRegisterSpace] = space + v.offsets[KindRegisterSpace]
	return out
}

// At returns a variable placed at l, for reporting positions relative to
// an outer type.
func (l Location) At(name string, typ *TypeLayout) *VarLayout {
	v := &VarLayout{Name: name, Type: typ, spaces: l.spaces}
	for k := range kindCount {
		v.offsets[k] = l.Offset(k)
	}
	return v
}
