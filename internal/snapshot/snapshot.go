// Package snapshot freezes the reflection of one target program into plain
// data that can be written as JSON or msgpack and cached on disk.
package snapshot

import (
	"fmt"

	"shaderrefl/internal/binding"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/session"
)

// SchemaVersion changes whenever the encoded form does.
const SchemaVersion uint16 = 1

// Snapshot is the reflection of one program on one target.
type Snapshot struct {
	Schema        uint16       `json:"schema"`
	Target        string       `json:"target"`
	Modules       []string     `json:"modules"`
	Parameters    []Param      `json:"parameters"`
	DefaultBuffer *Param       `json:"default_buffer,omitempty"`
	EntryPoints   []EntryPoint `json:"entry_points,omitempty"`
	// Code is the generated target code, when it was asked for.
	Code []byte `json:"code,omitempty"`
}

// Param is a placed variable.
type Param struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Shape       string    `json:"shape"`
	Semantic    string    `json:"semantic,omitempty"`
	SystemValue bool      `json:"system_value,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Binding     *Slot     `json:"binding,omitempty"`
	Offsets     []Offset  `json:"offsets,omitempty"`
	Sizes       []Size    `json:"sizes,omitempty"`
	Fields      []Param   `json:"fields,omitempty"`
	Bindings    *Bindings `json:"bindings,omitempty"`
}

// Slot is the register or descriptor a bindable variable starts at.
type Slot struct {
	Kind  string `json:"kind"`
	Index uint64 `json:"index"`
	Space uint64 `json:"space"`
}

// Offset is the position of a variable for one kind.
type Offset struct {
	Kind  string `json:"kind"`
	Value uint64 `json:"value"`
	Space uint64 `json:"space,omitempty"`
}

// Size is the amount of one kind a type consumes. Unsized arrays report
// layout.UnboundedCount.
type Size struct {
	Kind  string `json:"kind"`
	Value uint64 `json:"value"`
}

// EntryPoint is a placed entry point.
type EntryPoint struct {
	Name     string  `json:"name"`
	Stage    string  `json:"stage"`
	Params   []Param `json:"params,omitempty"`
	Result   *Param  `json:"result,omitempty"`
	Uniforms *Param  `json:"uniforms,omitempty"`
}

// Bindings is the binding view of a parameter's type.
type Bindings struct {
	ImplicitBuffer bool        `json:"implicit_buffer,omitempty"`
	Ranges         []Range     `json:"ranges,omitempty"`
	Sets           []Set       `json:"descriptor_sets,omitempty"`
	SubObjects     []SubObject `json:"sub_objects,omitempty"`
}

// Range is one binding range.
type Range struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Count uint64 `json:"count"`
	// Set is -1 for ranges without descriptors.
	Set             int    `json:"set"`
	FirstDescriptor int    `json:"first_descriptor_range"`
	Descriptors     int    `json:"descriptor_range_count"`
	Leaf            string `json:"leaf,omitempty"`
}

// Set is a descriptor set or register space.
type Set struct {
	SpaceOffset uint64            `json:"space_offset"`
	Ranges      []DescriptorRange `json:"ranges"`
}

// DescriptorRange is a run of descriptors of one type.
type DescriptorRange struct {
	IndexOffset uint64 `json:"index_offset"`
	Count       uint64 `json:"count"`
	Type        string `json:"type"`
	Kind        string `json:"kind"`
}

// SubObject is a binding range with a layout of its own.
type SubObject struct {
	Range       int       `json:"range"`
	SpaceOffset uint64    `json:"space_offset"`
	Bindings    *Bindings `json:"bindings,omitempty"`
}

// FromProgram captures tp. infos holds the binding view of every global
// parameter in declaration order; nil extracts it from tp.
func FromProgram(tp *session.TargetProgram, infos []*binding.Info) (*Snapshot, error) {
	if tp == nil || tp.Layout == nil {
		return nil, fmt.Errorf("snapshot: no program")
	}
	pl := tp.Layout
	params := pl.Parameters()
	if infos == nil {
		var err error
		if infos, err = tp.Bindings(); err != nil {
			return nil, err
		}
	}
	if len(infos) != len(params) {
		return nil, fmt.Errorf("snapshot: %d binding infos for %d parameters", len(infos), len(params))
	}

	s := &Snapshot{Schema: SchemaVersion, Target: pl.Target.Name}
	g := tp.Program().Graph()
	for _, m := range tp.Program().Modules() {
		s.Modules = append(s.Modules, g.Name(m))
	}
	for i, v := range params {
		p := param(v)
		p.Bindings = bindings(infos[i])
		s.Parameters = append(s.Parameters, p)
	}
	if pl.DefaultBuffer != nil {
		p := param(pl.DefaultBuffer)
		s.DefaultBuffer = &p
	}
	for _, ep := range pl.EntryPoints {
		s.EntryPoints = append(s.EntryPoints, entryPoint(ep))
	}
	return s, nil
}

func entryPoint(ep *layout.EntryPointLayout) EntryPoint {
	out := EntryPoint{Name: ep.Name, Stage: ep.Stage.String()}
	for _, v := range ep.Params {
		out.Params = append(out.Params, param(v))
	}
	if ep.Result != nil {
		p := param(ep.Result)
		out.Result = &p
	}
	if ep.UniformBuffer != nil {
		p := param(ep.UniformBuffer)
		out.Uniforms = &p
	}
	return out
}

func param(v *layout.VarLayout) Param {
	p := Param{
		Name:        v.Name,
		Semantic:    v.Semantic,
		SystemValue: v.SystemValue,
	}
	if v.Stage != entity.StageNone {
		p.Stage = v.Stage.String()
	}
	t := v.Type
	if t == nil {
		return p
	}
	p.Type = t.Name
	p.Shape = t.Shape.String()
	if k := v.BindingKind(); k != layout.KindNone {
		p.Binding = &Slot{Kind: k.String(), Index: v.BindingIndex(), Space: v.BindingSpace()}
	}
	for _, k := range t.ConsumedKinds() {
		p.Sizes = append(p.Sizes, Size{Kind: k.String(), Value: t.Size(k)})
		p.Offsets = append(p.Offsets, Offset{Kind: k.String(), Value: v.Offset(k), Space: v.Space(k)})
	}
	fields := t.Fields
	if t.ElementVar != nil {
		// Parameter groups show the fields of their element.
		fields = t.ElementVar.Type.Fields
	}
	for _, f := range fields {
		p.Fields = append(p.Fields, param(f))
	}
	return p
}

func bindings(in *binding.Info) *Bindings {
	if in == nil || (len(in.BindingRanges) == 0 && len(in.DescriptorSets) == 0) {
		return nil
	}
	b := &Bindings{ImplicitBuffer: in.ImplicitBuffer}
	for _, r := range in.BindingRanges {
		out := Range{
			Type:            r.Type.String(),
			Kind:            r.Kind.String(),
			Count:           r.Count,
			Set:             r.DescriptorSetIndex,
			FirstDescriptor: r.FirstDescriptorRangeIndex,
			Descriptors:     r.DescriptorRangeCount,
		}
		if r.LeafVar != nil {
			out.Leaf = r.LeafVar.Name
		}
		b.Ranges = append(b.Ranges, out)
	}
	for _, set := range in.DescriptorSets {
		out := Set{SpaceOffset: set.SpaceOffset}
		for _, r := range set.Ranges {
			out.Ranges = append(out.Ranges, DescriptorRange{
				IndexOffset: r.IndexOffset,
				Count:       r.DescriptorCount,
				Type:        r.Type.String(),
				Kind:        r.Kind.String(),
			})
		}
		b.Sets = append(b.Sets, out)
	}
	for _, so := range in.SubObjectRanges {
		b.SubObjects = append(b.SubObjects, SubObject{
			Range:       so.BindingRangeIndex,
			SpaceOffset: so.SpaceOffset,
			Bindings:    bindings(so.Info),
		})
	}
	return b
}

// FindParam returns the global parameter called name.
func (s *Snapshot) FindParam(name string) (*Param, bool) {
	for i := range s.Parameters {
		if s.Parameters[i].Name == name {
			return &s.Parameters[i], true
		}
	}
	return nil, false
}

// Offset returns the offset recorded for kind, if any.
func (p *Param) Offset(kind layout.Kind) (uint64, bool) {
	name := kind.String()
	for _, o := range p.Offsets {
		if o.Kind == name {
			return o.Value, true
		}
	}
	return 0, false
}
