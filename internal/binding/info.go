package binding

import "shaderrefl/internal/layout"

// BindingRange is one atomic bindable unit: a resource, an array of
// resources, or a parameter group. Arrays multiply Count; unsized arrays
// have Count == layout.UnboundedCount.
type BindingRange struct {
	Type  BindingType
	Kind  layout.Kind
	Count uint64

	// DescriptorSetIndex indexes Info.DescriptorSets, -1 when the range
	// has no descriptors (push constants, inline data, CPU handles).
	DescriptorSetIndex        int
	FirstDescriptorRangeIndex int
	DescriptorRangeCount      int

	LeafTypeLayout *layout.TypeLayout
	LeafVar        *layout.VarLayout // nil for the implicit uniform buffer
}

// DescriptorRange is a run of descriptors of one type inside a set.
type DescriptorRange struct {
	IndexOffset     uint64
	DescriptorCount uint64
	Type            BindingType
	Kind            layout.Kind
}

// DescriptorSet gathers the descriptor ranges that live in one register
// space, relative to the enclosing object.
type DescriptorSet struct {
	SpaceOffset uint64
	Ranges      []DescriptorRange
}

// SubObjectRange describes a binding range that is itself an object with
// its own layout: a ConstantBuffer, ParameterBlock or push constant block.
type SubObjectRange struct {
	BindingRangeIndex int
	SpaceOffset       uint64
	// Offset places the sub-object relative to the outer type.
	Offset *layout.VarLayout
	Info   *Info
}

// Info is the binding view of one type layout.
type Info struct {
	Layout          *layout.TypeLayout
	BindingRanges   []BindingRange
	DescriptorSets  []DescriptorSet
	SubObjectRanges []SubObjectRange

	// ImplicitBuffer is set when range 0 is the uniform buffer holding
	// the ordinary data of a parameter group.
	ImplicitBuffer bool

	fieldRanges []int
}

// SubObject returns the sub-object range attached to binding range i.
func (in *Info) SubObject(i int) (SubObjectRange, bool) {
	for _, s := range in.SubObjectRanges {
		if s.BindingRangeIndex == i {
			return s, true
		}
	}
	return SubObjectRange{}, false
}

// DescriptorCount sums the descriptors of every set.
func (in *Info) DescriptorCount() uint64 {
	var n uint64
	for _, set := range in.DescriptorSets {
		for _, r := range set.Ranges {
			c := r.DescriptorCount
			if c == layout.UnboundedCount || n > layout.UnboundedCount-c {
				return layout.UnboundedCount
			}
			n += c
		}
	}
	return n
}

func mulCount(a, b uint64) uint64 {
	switch {
	case a == layout.UnboundedCount || b == layout.UnboundedCount:
		return layout.UnboundedCount
	case a != 0 && b > layout.UnboundedCount/a:
		return layout.UnboundedCount
	}
	return a * b
}
