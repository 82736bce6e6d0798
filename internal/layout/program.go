package layout

import (
	"context"
	"fmt"
	"slices"
	"time"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/link"
	"shaderrefl/internal/trace"
)

// DefaultBufferName names the implicit constant buffer that gathers
// globals of ordinary data.
const DefaultBufferName = "$Globals"

// ProgramLayout places every global parameter and entry point of a linked
// program for one target. Offsets of top-level parameters are absolute.
type ProgramLayout struct {
	Target  *Target
	Program *link.Program
	// Globals is a synthesized struct whose fields are the global
	// parameters in declaration order.
	Globals *TypeLayout
	// DefaultBuffer is nil when no global holds ordinary data or the
	// target passes ordinary data inline.
	DefaultBuffer *VarLayout
	EntryPoints   []*EntryPointLayout
	Diagnostics   *diag.Bag
}

// Parameters returns the global parameters.
func (p *ProgramLayout) Parameters() []*VarLayout {
	if p == nil || p.Globals == nil {
		return nil
	}
	return slices.Clone(p.Globals.Fields)
}

// FindParam returns the global parameter called name.
func (p *ProgramLayout) FindParam(name string) (*VarLayout, error) {
	v, _, err := p.Globals.FindField(name)
	return v, err
}

// FindEntryPoint returns the layout of the entry point called name.
func (p *ProgramLayout) FindEntryPoint(name string) (*EntryPointLayout, error) {
	for _, ep := range p.EntryPoints {
		if ep.Name == name {
			return ep, nil
		}
	}
	return nil, &entity.Error{Kind: entity.ErrKindNotFound, Name: name, Arg: -1}
}

// paramSlot tracks what has been placed for one top-level parameter.
type paramSlot struct {
	v          *VarLayout
	assigned   [kindCount]bool
	spaceFixed bool
}

type programBinder struct {
	e     *Engine
	g     *entity.Graph
	r     diag.Reporter
	alloc *allocator
}

// LayoutProgram lays out the globals and entry points of prog. Parameters
// that cannot be laid out are reported in the returned layout's
// Diagnostics and left out; the partial layout is returned together with
// the error. Cyclic layouts abort immediately.
func (e *Engine) LayoutProgram(ctx context.Context, prog *link.Program) (*ProgramLayout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	span := trace.Begin(e.Tracer, trace.ScopeTarget, "layout program", trace.CurrentSpan(ctx))
	span.WithExtra("target", e.Target.Name)
	start := time.Now()

	pl, err := e.layoutProgram(ctx, prog)

	elapsed := time.Since(start)
	e.Metrics.ObserveProgram(e.Target.Name, elapsed.Seconds(), err)
	if pl != nil {
		span.WithExtra("params", fmt.Sprint(len(pl.Globals.Fields)))
	}
	span.End(elapsed.String())
	return pl, err
}

func (e *Engine) layoutProgram(ctx context.Context, prog *link.Program) (*ProgramLayout, error) {
	bag := diag.NewBag(100)
	b := &programBinder{e: e, g: e.Graph, r: diag.BagReporter{Bag: bag}, alloc: newAllocator()}
	pl := &ProgramLayout{
		Target:      e.Target,
		Program:     prog,
		Diagnostics: bag,
		Globals: &TypeLayout{
			Target: e.Target,
			Rules:  e.Target.UniformRules,
			Type:   entity.NoID,
			Name:   "globals",
			Shape:  entity.ShapeStruct,
		},
	}

	var globals []*paramSlot
	for _, v := range prog.Globals() {
		slot, err := b.param(v, entity.StageNone)
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			continue
		}
		globals = append(globals, slot)
	}
	for _, s := range globals {
		b.explicit(s)
	}
	pl.DefaultBuffer = b.gatherOrdinary(globals, DefaultBufferName)
	b.assignRegisters(globals)

	var uniforms []*paramSlot
	for _, ep := range prog.EntryPoints() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		epl, slots, err := b.entryPoint(ep)
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			continue
		}
		pl.EntryPoints = append(pl.EntryPoints, epl)
		uniforms = append(uniforms, slots...)
	}

	b.alloc.claimUsedSpaces()
	b.assignSpaces(globals)
	b.assignSpaces(uniforms)

	for _, s := range globals {
		pl.Globals.Fields = append(pl.Globals.Fields, s.v)
	}
	aggregate(pl.Globals, pl.Globals.Fields)

	bag.Sort()
	return pl, diag.AsError(bag)
}

// param computes the layout of one top-level parameter: a global or an
// entry-point uniform.
func (b *programBinder) param(v entity.ID, stage entity.Stage) (*paramSlot, error) {
	l, err := b.e.paramLayout(v)
	if err != nil {
		b.report(v, err)
		return nil, err
	}
	vl := &VarLayout{Var: v, Name: b.g.SimpleName(v), Type: l, Stage: stage}
	if sem, ok := b.g.FindModifier(v, entity.ModSemantic); ok {
		vl.Semantic = sem.Semantic
	}
	return &paramSlot{v: vl}, nil
}

func (b *programBinder) report(v entity.ID, err error) {
	code := diag.LayUnsupportedConstruct
	if IsFatal(err) {
		code = diag.LayCyclicLayout
	}
	diag.ReportError(b.r, code, b.g.Span(v), err.Error()).
		WithSubject(b.g.SimpleName(v)).
		WithCause(err).
		Emit()
}

func (e *Engine) paramLayout(v entity.ID) (*TypeLayout, error) {
	g := e.Graph
	typ, err := g.TypeOf(v)
	if err != nil {
		return nil, e.unsupported(v, "not a variable")
	}
	t := e.Target

	if g.HasModifier(v, entity.ModPushConstant) {
		elem := typ
		if info, err := g.AsParameterGroup(typ); err == nil {
			elem = info.Elem
		}
		return e.groupLayout(typ, entity.GroupConstantBuffer, elem, true, newLayoutState())
	}

	if g.HasModifier(v, entity.ModSpecializationConstant) && t.SpecConstants {
		if _, err := g.AsScalar(typ); err != nil {
			return nil, e.unsupported(v, "specialization constants must be scalars")
		}
		l := &TypeLayout{Target: t, Rules: t.UniformRules, Type: typ, Name: g.Name(typ), Shape: entity.ShapeScalar}
		l.set(KindVKSpecializationConstant, 1, 1)
		return l, nil
	}

	if info, err := g.AsArray(typ); err == nil && info.Unsized {
		return e.unsizedParamLayout(typ, info.Elem)
	}
	return e.TypeLayoutWithMode(typ, t.UniformRules, fieldMode(g, v))
}

// unsizedParamLayout gives an unsized resource array a register space of
// its own; its elements are unbounded inside that space.
func (e *Engine) unsizedParamLayout(typ, elemType entity.ID) (*TypeLayout, error) {
	t := e.Target
	if !t.HasSpaces {
		return nil, e.unsupported(typ, "unsized arrays need a register space")
	}
	elem, err := e.TypeLayout(elemType, t.UniformRules)
	if err != nil {
		return nil, err
	}
	if elem.Size(KindBytes) > 0 {
		return nil, e.unsupported(typ, "unsized array of ordinary data")
	}
	for _, k := range elem.ConsumedKinds() {
		if k.IsRegister() && elem.Size(k) > 1 {
			return nil, e.unsupported(typ, "unsized array elements must bind through one %s slot", k)
		}
	}
	l := &TypeLayout{
		Target:       t,
		Rules:        t.UniformRules,
		Type:         typ,
		Name:         e.Graph.Name(typ),
		Shape:        entity.ShapeArray,
		Element:      elem,
		ElementCount: UnboundedCount,
	}
	for _, k := range elem.ConsumedKinds() {
		l.elemStrides[k] = elem.Stride(k)
	}
	l.set(KindRegisterSpace, 1, 1)
	return l, nil
}

// explicit applies a register(...) or vk::binding(...) annotation.
func (b *programBinder) explicit(s *paramSlot) {
	mod, ok := b.g.FindModifier(s.v.Var, entity.ModBinding)
	if !ok {
		return
	}
	eb := mod.Binding
	t := b.e.Target
	l := s.v.Type
	name := s.v.Name

	if l.Unsized() || l.SpaceCreating {
		if conflict, ok := b.alloc.reserveSpace(uint64(eb.Space), l.Size(KindRegisterSpace), name); !ok {
			b.overlap(s.v.Var, name, conflict, fmt.Sprintf("space %d", eb.Space))
		}
		s.v.offsets[KindRegisterSpace] = uint64(eb.Space)
		s.spaceFixed = true
		return
	}

	var k Kind
	switch d3d := t.usesRegisterClasses(); {
	case d3d && eb.Class == entity.RegisterAny:
		return
	case d3d:
		k = t.KindForClass(eb.Class)
		if l.Size(k) == 0 {
			diag.ReportWarning(b.r, diag.LayInfo, b.g.Span(s.v.Var),
				fmt.Sprintf("register(%c%d) ignored: parameter consumes no %s", eb.Class, eb.Index, k)).
				WithSubject(name).
				Emit()
			return
		}
	case eb.Class != entity.RegisterAny:
		return
	default:
		k = s.v.BindingKind()
		if !k.IsRegister() {
			return
		}
	}

	count := l.Size(k)
	if conflict, ok := b.alloc.reserve(k, uint64(eb.Space), uint64(eb.Index), count, name); !ok {
		b.overlap(s.v.Var, name, conflict, fmt.Sprintf("%s %d in space %d", k, eb.Index, eb.Space))
	}
	s.v.offsets[k] = uint64(eb.Index)
	s.v.spaces[k] = uint64(eb.Space)
	s.assigned[k] = true
}

func (b *programBinder) overlap(v entity.ID, name, other, where string) {
	diag.ReportWarning(b.r, diag.LayBindingOverlap, b.g.Span(v),
		fmt.Sprintf("%s overlaps %s already used by %s", name, where, other)).
		WithSubject(name).
		Emit()
}

// gatherOrdinary packs the ordinary data of slots into one buffer and
// places that buffer at the lowest free buffer slot. It returns nil when
// nothing needs a buffer.
func (b *programBinder) gatherOrdinary(slots []*paramSlot, name string) *VarLayout {
	t := b.e.Target
	p := packingFor(t.UniformRules)
	var acc, align uint64 = 0, 1
	for _, s := range slots {
		size := s.v.Type.Size(KindBytes)
		if size == 0 {
			continue
		}
		a := s.v.Type.Alignment(KindBytes)
		off := p.fieldOffset(acc, size, a)
		s.v.offsets[KindBytes] = off
		acc = off + size
		align = max(align, a)
	}
	if acc == 0 || t.BufferKind == KindNone {
		return nil
	}
	buf := &TypeLayout{Target: t, Rules: t.UniformRules, Name: name, Shape: entity.ShapeParameterGroup, Group: entity.GroupConstantBuffer}
	buf.set(t.BufferKind, 1, 1)
	buf.set(KindBytes, acc, p.aggregateAlign(align))
	v := &VarLayout{Name: name, Type: buf}
	v.offsets[t.BufferKind] = b.alloc.allocate(t.BufferKind, 0, 1, name)
	return v
}

func assignable(k Kind) bool { return k.IsRegister() || k == KindVKSpecializationConstant }

// assignRegisters places every register kind not fixed explicitly at the
// lowest free range of space 0.
func (b *programBinder) assignRegisters(slots []*paramSlot) {
	for _, s := range slots {
		for _, k := range s.v.Type.ConsumedKinds() {
			if !assignable(k) || s.assigned[k] {
				continue
			}
			s.v.offsets[k] = b.alloc.allocate(k, 0, s.v.Type.Size(k), s.v.Name)
			s.assigned[k] = true
		}
	}
}

func (b *programBinder) assignSpaces(slots []*paramSlot) {
	for _, s := range slots {
		n := s.v.Type.Size(KindRegisterSpace)
		if n == 0 || s.spaceFixed {
			continue
		}
		s.v.offsets[KindRegisterSpace] = b.alloc.allocateSpace(n, s.v.Name)
		s.spaceFixed = true
	}
}

// aggregate sets the per-kind sizes of a synthesized struct to the end of
// its furthest field.
func aggregate(l *TypeLayout, fields []*VarLayout) {
	var end kindSet
	for _, f := range fields {
		for _, k := range f.Type.ConsumedKinds() {
			end[k] = max(end[k], rangeEnd(f.offsets[k], f.Type.Size(k)))
		}
	}
	for _, k := range Kinds() {
		if end[k] > 0 {
			l.set(k, end[k], 1)
		}
	}
}
