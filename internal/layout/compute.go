package layout

import (
	"math/bits"
	"slices"

	"shaderrefl/internal/entity"
)

func (e *Engine) compute(key layoutKey, state *layoutState) (*TypeLayout, error) {
	g := e.Graph
	id := key.typ
	switch g.Kind(id) {
	case entity.KindType:
	case entity.KindTypeVar:
		return nil, e.unsupported(id, "unspecialized generic parameter")
	case entity.KindGeneric:
		return nil, e.unsupported(id, "generic must be specialized before layout")
	default:
		return nil, e.unsupported(id, "not a type")
	}

	l := &TypeLayout{
		Target: e.Target,
		Rules:  key.rules,
		Type:   id,
		Name:   g.Name(id),
		Shape:  g.ShapeOf(id),
	}
	p := packingFor(key.rules)

	switch l.Shape {
	case entity.ShapeScalar:
		k, _ := g.AsScalar(id)
		if k == entity.ScalarDouble && e.Target.NoDouble {
			return nil, e.unsupported(id, "64-bit floats are not available")
		}
		b := p.scalar(k)
		l.set(KindBytes, b.size, b.align)

	case entity.ShapeVector:
		v, _ := g.AsVector(id)
		k, err := g.AsScalar(v.Elem)
		if err != nil {
			return nil, e.unsupported(id, "vector of non-scalar %s", g.Name(v.Elem))
		}
		elem, err := e.layoutOf(layoutKey{typ: v.Elem, rules: key.rules}, state)
		if err != nil {
			return nil, err
		}
		b := p.vector(k, uint64(v.Count))
		l.set(KindBytes, b.size, b.align)
		l.Element = elem
		l.ElementCount = uint64(v.Count)

	case entity.ShapeMatrix:
		m, _ := g.AsMatrix(id)
		k, err := g.AsScalar(m.Elem)
		if err != nil {
			return nil, e.unsupported(id, "matrix of non-scalar %s", g.Name(m.Elem))
		}
		count, vecLen := uint64(m.Cols), uint64(m.Rows)
		if key.mode == MatrixRowMajor {
			count, vecLen = uint64(m.Rows), uint64(m.Cols)
		}
		b, major := p.matrix(k, count, vecLen)
		l.set(KindBytes, b.size, b.align)
		l.Rows, l.Cols = m.Rows, m.Cols
		l.MatrixMode = key.mode
		l.MajorStride = major

	case entity.ShapeEnum:
		info, _ := g.AsEnum(id)
		under, err := e.layoutOf(layoutKey{typ: info.Underlying, rules: key.rules}, state)
		if err != nil {
			return nil, err
		}
		l.sizes, l.aligns, l.strides = under.sizes, under.aligns, under.strides

	case entity.ShapeArray:
		if err := e.computeArray(l, key, p, state); err != nil {
			return nil, err
		}

	case entity.ShapeStruct:
		if err := e.computeStruct(l, key, p, state); err != nil {
			return nil, err
		}

	case entity.ShapeClass:
		if e.Target.PtrSize == 0 {
			return nil, e.unsupported(id, "class types are references and need a pointer-capable target")
		}
		l.set(KindBytes, e.Target.PtrSize, e.Target.PtrSize)

	case entity.ShapeResource:
		info, _ := g.AsResource(id)
		kinds, ok := e.Target.resourceKinds(info)
		if !ok {
			return nil, e.unsupported(id, "no binding for %s resources", info.Shape)
		}
		l.Resource = info
		for _, k := range kinds {
			if k == KindBytes {
				l.set(KindBytes, e.Target.PtrSize, e.Target.PtrSize)
				continue
			}
			l.set(k, 1, 1)
		}

	case entity.ShapeParameterGroup:
		info, _ := g.AsParameterGroup(id)
		return e.groupLayout(id, info.Kind, info.Elem, false, state)

	case entity.ShapeInterface:
		return nil, e.unsupported(id, "interface-typed values need a concrete type")
	case entity.ShapeConjunction:
		return nil, e.unsupported(id, "conjunction types have no storage")
	default:
		return nil, e.unsupported(id, "shape %s", l.Shape)
	}
	return l, nil
}

func (e *Engine) computeArray(l *TypeLayout, key layoutKey, p packing, state *layoutState) error {
	g := e.Graph
	info, _ := g.AsArray(key.typ)
	switch {
	case info.Unsized:
		return e.unsupported(key.typ, "unsized array outside a binding context")
	case info.CountParam != entity.NoID:
		return e.unsupported(key.typ, "array length depends on generic parameter %s", g.Name(info.CountParam))
	}
	elem, err := e.layoutOf(layoutKey{typ: info.Elem, rules: key.rules, mode: key.mode}, state)
	if err != nil {
		return err
	}
	n := uint64(info.Count)
	l.Element = elem
	l.ElementCount = n
	// Register kinds are stored leaf by leaf: every leaf of the element
	// gets its own run of n slots, in the element's field order.
	for _, k := range Kinds() {
		size := elem.sizes[k]
		if size == 0 {
			continue
		}
		stride, align := size, uint64(1)
		if k == KindBytes {
			align = p.aggregateAlign(elem.Alignment(KindBytes))
			stride = roundUp(size, align)
		}
		total, ok := mulSize(n, stride)
		if !ok || stride < size {
			return e.unsupported(key.typ, "array size overflows for %s", k)
		}
		l.sizes[k], l.aligns[k], l.strides[k] = total, align, total
		l.elemStrides[k] = stride
	}
	return nil
}

// mulSize multiplies a count by a per-element size; ok is false when the
// product does not fit.
func mulSize(n, size uint64) (uint64, bool) {
	hi, lo := bits.Mul64(n, size)
	return lo, hi == 0
}

func (e *Engine) computeStruct(l *TypeLayout, key layoutKey, p packing, state *layoutState) error {
	g := e.Graph
	info, _ := g.AsStruct(key.typ)
	var acc kindSet
	var align kindSet
	for _, f := range info.Fields {
		if g.HasModifier(f, entity.ModStatic) {
			continue
		}
		typ, _ := g.TypeOf(f)
		fl, err := e.layoutOf(e.key(typ, key.rules, fieldMode(g, f)), state)
		if err != nil {
			return err
		}
		v := &VarLayout{Var: f, Name: g.SimpleName(f), Type: fl}
		if sem, ok := g.FindModifier(f, entity.ModSemantic); ok {
			v.Semantic = sem.Semantic
		}
		for _, k := range Kinds() {
			size := fl.sizes[k]
			if size == 0 {
				v.offsets[k] = acc[k]
				continue
			}
			off := acc[k]
			if k == KindBytes {
				off = p.fieldOffset(acc[k], size, fl.Alignment(k))
			}
			v.offsets[k] = off
			end, carry := bits.Add64(off, size, 0)
			if carry != 0 || off < acc[k] {
				return e.unsupported(key.typ, "struct size overflows for %s at field %s", k, v.Name)
			}
			acc[k] = end
			align[k] = max(align[k], fl.Alignment(k))
		}
		l.Fields = append(l.Fields, v)
	}
	for _, k := range Kinds() {
		if acc[k] == 0 {
			continue
		}
		a := max(align[k], 1)
		if k == KindBytes {
			a = p.aggregateAlign(a)
		}
		stride := roundUp(acc[k], a)
		if stride < acc[k] {
			return e.unsupported(key.typ, "struct size overflows for %s", k)
		}
		l.sizes[k], l.aligns[k], l.strides[k] = acc[k], a, stride
	}
	if l.aligns[KindBytes] == 0 {
		l.aligns[KindBytes] = p.aggregateAlign(1)
	}
	return nil
}

func fieldMode(g *entity.Graph, v entity.ID) MatrixMode {
	switch {
	case g.HasModifier(v, entity.ModRowMajor):
		return MatrixRowMajor
	case g.HasModifier(v, entity.ModColumnMajor):
		return MatrixColumnMajor
	}
	return MatrixDefault
}

// groupLayout lays out ConstantBuffer<T>, ParameterBlock<T> or a push
// constant buffer. The element uses the target's uniform rules; the
// container takes the target's buffer or block slot.
func (e *Engine) groupLayout(id entity.ID, kind entity.GroupKind, elemType entity.ID, push bool, state *layoutState) (*TypeLayout, error) {
	t := e.Target
	inner := t.UniformRules
	if push {
		inner = t.PushRules
	}
	elem, err := e.layoutOf(layoutKey{typ: elemType, rules: inner}, state)
	if err != nil {
		return nil, err
	}
	containerKinds := t.containerKinds(kind, push)
	if len(containerKinds) == 0 {
		return nil, e.unsupported(id, "no slot for %s", kind)
	}
	l := &TypeLayout{
		Target: t,
		Rules:  inner,
		Type:   id,
		Name:   e.Graph.Name(id),
		Shape:  entity.ShapeParameterGroup,
		Group:  kind,
		Push:   push,
	}
	container := &TypeLayout{Target: t, Rules: inner, Type: id, Name: l.Name, Shape: entity.ShapeNone}
	elemVar := &VarLayout{Name: "element", Type: elem}
	l.SpaceCreating = slices.Contains(containerKinds, KindRegisterSpace)

	if l.SpaceCreating {
		if elem.Size(KindBytes) > 0 {
			container.set(t.BufferKind, 1, 1)
			elemVar.offsets[t.BufferKind] = 1
		}
		elemVar.offsets[KindRegisterSpace] = 1
		l.set(KindRegisterSpace, 1+elem.Size(KindRegisterSpace), 1)
	} else {
		for _, k := range containerKinds {
			if k == KindBytes {
				container.set(KindBytes, t.PtrSize, t.PtrSize)
				continue
			}
			container.set(k, 1, 1)
		}
		for _, k := range Kinds() {
			if k == KindBytes {
				continue
			}
			elemVar.offsets[k] = container.sizes[k]
			if size := container.sizes[k] + elem.sizes[k]; size > 0 {
				l.set(k, size, 1)
			}
		}
		if container.sizes[KindBytes] > 0 {
			l.set(KindBytes, container.sizes[KindBytes], container.Alignment(KindBytes))
		}
	}
	l.Container = &VarLayout{Name: "container", Type: container}
	l.ElementVar = elemVar
	return l, nil
}
