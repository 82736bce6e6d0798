package layout

import (
	"math/bits"
	"slices"
	"strings"

	"shaderrefl/internal/entity"
)

// EntryPointLayout places the parameters and result of one entry point.
// Uniform parameters share the program's binding ranges and come after
// the globals; varying parameters count stage inputs and outputs.
type EntryPointLayout struct {
	EntryPoint entity.ID
	Name       string
	Stage      entity.Stage
	Params     []*VarLayout
	Result     *VarLayout // nil for void

	// UniformBuffer gathers the ordinary data of uniform parameters; nil
	// when there is none.
	UniformBuffer *VarLayout
}

// FindParam returns the parameter called name.
func (l *EntryPointLayout) FindParam(name string) (*VarLayout, error) {
	i := slices.IndexFunc(l.Params, func(v *VarLayout) bool { return v.Name == name })
	if i < 0 {
		return nil, &entity.Error{Kind: entity.ErrKindNotFound, Entity: l.EntryPoint, Name: name, Arg: -1}
	}
	return l.Params[i], nil
}

// IsSystemValue reports SV_ semantics, which bind to fixed-function
// inputs and outputs and consume no varying slots.
func IsSystemValue(semantic string) bool {
	return len(semantic) >= 3 && strings.EqualFold(semantic[:3], "SV_")
}

// entryPoint lays out ep. Failures of single parameters are reported and
// skipped; only fatal errors are returned.
func (b *programBinder) entryPoint(ep entity.ID) (*EntryPointLayout, []*paramSlot, error) {
	g := b.g
	info, err := g.AsEntryPoint(ep)
	if err != nil {
		return nil, nil, err
	}
	fn, err := g.AsFunc(info.Func)
	if err != nil {
		return nil, nil, err
	}
	epl := &EntryPointLayout{EntryPoint: ep, Name: g.Name(ep), Stage: info.Stage}

	var uniforms []*paramSlot
	var acc kindSet
	for _, p := range fn.Params {
		if g.HasModifier(p, entity.ModUniform) {
			slot, err := b.param(p, info.Stage)
			if err != nil {
				if IsFatal(err) {
					return nil, nil, err
				}
				continue
			}
			uniforms = append(uniforms, slot)
			epl.Params = append(epl.Params, slot.v)
			continue
		}
		v, err := b.e.stageParam(p, info.Stage)
		if err != nil {
			b.report(p, err)
			if IsFatal(err) {
				return nil, nil, err
			}
			continue
		}
		place(v, &acc)
		epl.Params = append(epl.Params, v)
	}

	for _, s := range uniforms {
		b.explicit(s)
	}
	epl.UniformBuffer = b.gatherOrdinary(uniforms, epl.Name+".uniforms")
	b.assignRegisters(uniforms)

	if fn.Result != entity.NoID {
		res, err := b.e.resultLayout(info.Func, fn.Result, info.Stage)
		if err != nil {
			b.report(info.Func, err)
			if IsFatal(err) {
				return nil, nil, err
			}
		} else {
			place(res, &acc)
			epl.Result = res
		}
	}
	return epl, uniforms, nil
}

// place puts v after everything already counted in acc.
func place(v *VarLayout, acc *kindSet) {
	for _, k := range v.Type.ConsumedKinds() {
		v.offsets[k] = acc[k]
		acc[k] += v.Type.Size(k)
	}
}

// stageParam lays out a non-uniform entry-point parameter: a varying, or
// a ray-tracing payload, hit attribute or shader record.
func (e *Engine) stageParam(v entity.ID, stage entity.Stage) (*VarLayout, error) {
	g := e.Graph
	typ, err := g.TypeOf(v)
	if err != nil {
		return nil, e.unsupported(v, "not a variable")
	}
	vl := &VarLayout{Var: v, Name: g.SimpleName(v), Stage: stage}
	if sem, ok := g.FindModifier(v, entity.ModSemantic); ok {
		vl.Semantic = sem.Semantic
	}

	if k := e.rayTracingKind(v, stage); k != KindNone {
		l := e.emptyLayout(typ)
		l.set(k, 1, 1)
		vl.Type = l
		return vl, nil
	}

	if IsSystemValue(vl.Semantic) {
		vl.SystemValue = true
		vl.Type = e.emptyLayout(typ)
		return vl, nil
	}

	var kinds []Kind
	switch {
	case g.HasModifier(v, entity.ModInOut):
		kinds = []Kind{e.Target.varyingInputKind(), KindVaryingOutput}
	case g.HasModifier(v, entity.ModOut):
		kinds = []Kind{KindVaryingOutput}
	default:
		kinds = []Kind{e.Target.varyingInputKind()}
	}
	l, err := e.varyingLayout(typ, kinds, nil)
	if err != nil {
		return nil, err
	}
	vl.Type = l
	return vl, nil
}

func (e *Engine) resultLayout(fn, typ entity.ID, stage entity.Stage) (*VarLayout, error) {
	vl := &VarLayout{Var: fn, Name: "result", Stage: stage}
	if sem, ok := e.Graph.FindModifier(fn, entity.ModSemantic); ok {
		vl.Semantic = sem.Semantic
	}
	if IsSystemValue(vl.Semantic) {
		vl.SystemValue = true
		vl.Type = e.emptyLayout(typ)
		return vl, nil
	}
	l, err := e.varyingLayout(typ, []Kind{KindVaryingOutput}, nil)
	if err != nil {
		return nil, err
	}
	vl.Type = l
	return vl, nil
}

func (e *Engine) rayTracingKind(v entity.ID, stage entity.Stage) Kind {
	g := e.Graph
	t := e.Target
	inout := g.HasModifier(v, entity.ModInOut)
	hit := stage == entity.StageAnyHit || stage == entity.StageClosestHit
	switch {
	case g.HasModifier(v, entity.ModShaderRecord):
		return t.payloadKind(KindRTShaderRecord)
	case !stage.IsRayTracing():
		return KindNone
	case inout && stage == entity.StageCallable:
		return t.payloadKind(KindRTCallablePayload)
	case inout && (hit || stage == entity.StageMiss):
		return t.payloadKind(KindRTRayPayload)
	case hit && !g.HasModifier(v, entity.ModOut):
		return t.payloadKind(KindRTHitAttributes)
	}
	return KindNone
}

func (e *Engine) emptyLayout(typ entity.ID) *TypeLayout {
	return &TypeLayout{Target: e.Target, Type: typ, Name: e.Graph.Name(typ), Shape: e.Graph.ShapeOf(typ)}
}

// varyingLayout counts stage slots: one per scalar or vector, one per row
// of a matrix, and the sum of the members for arrays and structs.
func (e *Engine) varyingLayout(typ entity.ID, kinds []Kind, outer []entity.ID) (*TypeLayout, error) {
	g := e.Graph
	if slices.Contains(outer, typ) {
		cycle := make([]string, 0, len(outer)+1)
		for _, id := range outer {
			cycle = append(cycle, g.Name(id))
		}
		cycle = append(cycle, g.Name(typ))
		return nil, &Error{Kind: ErrKindCyclic, Type: typ, Name: g.Name(typ), Target: e.Target.Name, Cycle: cycle}
	}
	l := e.emptyLayout(typ)
	var slots uint64

	switch l.Shape {
	case entity.ShapeScalar, entity.ShapeVector, entity.ShapeEnum:
		slots = 1

	case entity.ShapeMatrix:
		m, _ := g.AsMatrix(typ)
		l.Rows, l.Cols = m.Rows, m.Cols
		slots = uint64(m.Rows)

	case entity.ShapeArray:
		info, _ := g.AsArray(typ)
		if info.Unsized || info.CountParam != entity.NoID {
			return nil, e.unsupported(typ, "stage inputs and outputs need a fixed array length")
		}
		elem, err := e.varyingLayout(info.Elem, kinds, append(outer, typ))
		if err != nil {
			return nil, err
		}
		l.Element = elem
		l.ElementCount = uint64(info.Count)
		for _, k := range kinds {
			l.elemStrides[k] = elem.Size(k)
		}
		n, ok := mulSize(uint64(info.Count), elem.Size(kinds[0]))
		if !ok {
			return nil, e.unsupported(typ, "array size overflows for %s", kinds[0])
		}
		slots = n

	case entity.ShapeStruct:
		info, _ := g.AsStruct(typ)
		for _, f := range info.Fields {
			if g.HasModifier(f, entity.ModStatic) {
				continue
			}
			ft, _ := g.TypeOf(f)
			fv := &VarLayout{Var: f, Name: g.SimpleName(f)}
			if sem, ok := g.FindModifier(f, entity.ModSemantic); ok {
				fv.Semantic = sem.Semantic
			}
			if IsSystemValue(fv.Semantic) {
				fv.SystemValue = true
				fv.Type = e.emptyLayout(ft)
				l.Fields = append(l.Fields, fv)
				continue
			}
			fl, err := e.varyingLayout(ft, kinds, append(outer, typ))
			if err != nil {
				return nil, err
			}
			fv.Type = fl
			for _, k := range kinds {
				fv.offsets[k] = slots
			}
			next, carry := bits.Add64(slots, fl.Size(kinds[0]), 0)
			if carry != 0 {
				return nil, e.unsupported(typ, "struct size overflows for %s at field %s", kinds[0], fv.Name)
			}
			slots = next
			l.Fields = append(l.Fields, fv)
		}

	default:
		return nil, e.unsupported(typ, "%s values cannot be passed between stages", l.Shape)
	}

	if slots > 0 {
		for _, k := range kinds {
			l.set(k, slots, 1)
		}
	}
	return l, nil
}
