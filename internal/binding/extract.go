package binding

import (
	"slices"
	"sync"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/observ"
)

// Extractor derives binding views from type layouts of one target and
// caches them per layout. It is safe for concurrent use.
type Extractor struct {
	Target  *layout.Target
	Metrics *observ.LayoutMetrics

	mu    sync.Mutex
	cache map[*layout.TypeLayout]*Info
}

// NewExtractor returns an extractor for target.
func NewExtractor(target *layout.Target) *Extractor {
	return &Extractor{Target: target, cache: make(map[*layout.TypeLayout]*Info)}
}

// Extract is a one-off extraction without a shared cache.
func Extract(target *layout.Target, l *layout.TypeLayout) (*Info, error) {
	return NewExtractor(target).Extract(l)
}

// Extract returns the binding view of l. Layouts computed for another
// target fail with layout.ErrTargetMismatch.
func (x *Extractor) Extract(l *layout.TypeLayout) (*Info, error) {
	if err := layout.CheckTarget(l, x.Target); err != nil {
		return nil, err
	}
	return x.extract(l), nil
}

func (x *Extractor) extract(l *layout.TypeLayout) *Info {
	x.mu.Lock()
	in, ok := x.cache[l]
	x.mu.Unlock()
	if ok {
		return in
	}

	in = x.build(l)
	x.Metrics.BindingsExtracted(x.Target.Name)

	x.mu.Lock()
	defer x.mu.Unlock()
	if prev, ok := x.cache[l]; ok {
		return prev
	}
	x.cache[l] = in
	return in
}

// BindingRangeOffsetForField returns the number of binding ranges that the
// fields before field i of a struct layout contribute.
func (x *Extractor) BindingRangeOffsetForField(l *layout.TypeLayout, i int) (int, error) {
	in, err := x.Extract(l)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(in.fieldRanges) {
		return 0, &entity.Error{Kind: entity.ErrKindNotFound, Entity: l.Type, Name: l.Name, Arg: i,
			Detail: "field index out of range"}
	}
	return in.fieldRanges[i], nil
}

type builder struct {
	x    *Extractor
	info *Info
	sets map[uint64]int
}

func (x *Extractor) build(l *layout.TypeLayout) *Info {
	b := &builder{x: x, info: &Info{Layout: l}, sets: make(map[uint64]int)}
	var root layout.Location

	switch {
	case l.Shape == entity.ShapeParameterGroup:
		b.groupContents(l, root)
	case len(l.Fields) > 0:
		for _, f := range l.Fields {
			b.info.fieldRanges = append(b.info.fieldRanges, len(b.info.BindingRanges))
			b.walk(f.Type, root.Field(f), 1, f, true)
		}
	default:
		b.walk(l, root, 1, nil, true)
	}
	return b.info
}

// groupContents lays out the object behind a parameter group: the implicit
// uniform buffer first, then the element's own ranges.
func (b *builder) groupContents(g *layout.TypeLayout, loc layout.Location) {
	t := b.x.Target
	elem := g.ElementType()
	if g.Container != nil {
		cloc := loc.Container(g)
		kind := leafKind(g.Container.Type)
		first, count, set := 0, 0, -1
		for _, k := range g.Container.Type.ConsumedKinds() {
			if !descriptorKind(k) {
				continue
			}
			s, r := b.addDescriptor(cloc, k, 1, TypeConstantBuffer)
			if set < 0 {
				set, first = s, r
			}
			count++
		}
		if kind != layout.KindNone && elem.Size(layout.KindBytes) > 0 {
			typ := TypeConstantBuffer
			if g.Push {
				typ = GroupType(t, g)
			}
			b.info.BindingRanges = append(b.info.BindingRanges, BindingRange{
				Type:                      typ,
				Kind:                      kind,
				Count:                     1,
				DescriptorSetIndex:        set,
				FirstDescriptorRangeIndex: first,
				DescriptorRangeCount:      count,
				LeafTypeLayout:            g,
			})
			b.info.ImplicitBuffer = true
		}
	}
	if elem == nil {
		return
	}
	b.walk(elem, loc.Element(g), 1, g.ElementVar, true)
}

// walk flattens l found at loc. With ranges false only descriptors are
// collected; the contents of a constant buffer land in the parent's sets
// but belong to the sub-object's ranges.
func (b *builder) walk(l *layout.TypeLayout, loc layout.Location, count uint64, leaf *layout.VarLayout, ranges bool) {
	if l == nil {
		return
	}
	switch l.Shape {
	case entity.ShapeStruct:
		for _, f := range l.Fields {
			b.walk(f.Type, loc.Field(f), count, f, ranges)
		}

	case entity.ShapeArray:
		if l.Element == nil {
			return
		}
		// Every leaf of the element owns a run of count slots.
		b.walk(l.Element, loc.ArrayElement(l, 0), mulCount(count, l.ElementCount), leaf, ranges)

	case entity.ShapeResource:
		typ := ResourceType(l.Resource)
		kind := leafKind(l)
		br := BindingRange{Type: typ, Kind: kind, Count: count, DescriptorSetIndex: -1, LeafTypeLayout: l, LeafVar: leaf}
		for _, k := range l.ConsumedKinds() {
			if !descriptorKind(k) {
				continue
			}
			s, r := b.addDescriptor(loc, k, count, typ)
			if br.DescriptorSetIndex < 0 {
				br.DescriptorSetIndex, br.FirstDescriptorRangeIndex = s, r
			}
			br.DescriptorRangeCount++
		}
		if ranges {
			b.info.BindingRanges = append(b.info.BindingRanges, br)
		}

	case entity.ShapeParameterGroup:
		b.group(l, loc, count, leaf, ranges)
	}
}

func (b *builder) group(g *layout.TypeLayout, loc layout.Location, count uint64, leaf *layout.VarLayout, ranges bool) {
	typ := GroupType(b.x.Target, g)
	kind := containerKind(g)
	br := BindingRange{Type: typ, Kind: kind, Count: count, DescriptorSetIndex: -1, LeafTypeLayout: g, LeafVar: leaf}

	if !g.SpaceCreating && g.Container != nil {
		cloc := loc.Container(g)
		for _, k := range g.Container.Type.ConsumedKinds() {
			if !descriptorKind(k) {
				continue
			}
			s, r := b.addDescriptor(cloc, k, count, typ)
			if br.DescriptorSetIndex < 0 {
				br.DescriptorSetIndex, br.FirstDescriptorRangeIndex = s, r
			}
			br.DescriptorRangeCount++
		}
		b.walk(g.ElementType(), loc.Element(g), count, nil, false)
	}
	if !ranges {
		return
	}
	idx := len(b.info.BindingRanges)
	b.info.BindingRanges = append(b.info.BindingRanges, br)
	name := "element"
	if leaf != nil {
		name = leaf.Name
	}
	sub := SubObjectRange{
		BindingRangeIndex: idx,
		Offset:            loc.At(name, g),
		Info:              b.x.extract(g),
	}
	if g.SpaceCreating {
		sub.SpaceOffset = loc.Offset(layout.KindRegisterSpace)
	}
	b.info.SubObjectRanges = append(b.info.SubObjectRanges, sub)
}

// addDescriptor appends a descriptor range to the set of its space and
// returns the set and range indexes.
func (b *builder) addDescriptor(loc layout.Location, k layout.Kind, count uint64, typ BindingType) (int, int) {
	space := loc.Space(k)
	si, ok := b.sets[space]
	if !ok {
		si = len(b.info.DescriptorSets)
		b.sets[space] = si
		b.info.DescriptorSets = append(b.info.DescriptorSets, DescriptorSet{SpaceOffset: space})
	}
	set := &b.info.DescriptorSets[si]
	set.Ranges = append(set.Ranges, DescriptorRange{
		IndexOffset:     loc.RunStart(k),
		DescriptorCount: count,
		Type:            typ,
		Kind:            k,
	})
	return si, len(set.Ranges) - 1
}

// leafKind is the kind a leaf resource is bound through: its first
// register kind, or bytes on targets that pass handles as data.
func leafKind(l *layout.TypeLayout) layout.Kind {
	kinds := l.ConsumedKinds()
	if i := slices.IndexFunc(kinds, layout.Kind.IsRegister); i >= 0 {
		return kinds[i]
	}
	if len(kinds) > 0 {
		return kinds[0]
	}
	return layout.KindNone
}

// containerKind is the kind a group is bound through from outside.
func containerKind(g *layout.TypeLayout) layout.Kind {
	switch {
	case g.SpaceCreating:
		return layout.KindRegisterSpace
	case g.Container == nil:
		return layout.KindNone
	}
	return leafKind(g.Container.Type)
}
