package codegen

import (
	"fmt"
	"strings"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
)

var stageAttrs = map[entity.Stage]string{
	entity.StageVertex:   "@vertex",
	entity.StageFragment: "@fragment",
	entity.StageCompute:  "@compute",
}

// builtins maps system-value semantics to WGSL builtins, per direction.
var builtins = map[string][2]string{
	"SV_POSITION":         {"position", "position"},
	"SV_VERTEXID":         {"vertex_index", ""},
	"SV_INSTANCEID":       {"instance_index", ""},
	"SV_ISFRONTFACE":      {"front_facing", ""},
	"SV_SAMPLEINDEX":      {"sample_index", ""},
	"SV_DISPATCHTHREADID": {"global_invocation_id", ""},
	"SV_GROUPTHREADID":    {"local_invocation_id", ""},
	"SV_GROUPINDEX":       {"local_invocation_index", ""},
	"SV_GROUPID":          {"workgroup_id", ""},
	"SV_DEPTH":            {"", "frag_depth"},
}

func (e *Emitter) entryPoint(ep *layout.EntryPointLayout) error {
	attr, ok := stageAttrs[ep.Stage]
	if !ok {
		return unsupported("%s stage", ep.Stage)
	}
	name := ident(ep.Name)

	var uniforms []*layout.VarLayout
	var params []string
	for _, p := range ep.Params {
		if !varying(p) {
			if err := e.global(p); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
			if ordinary(p.Type) {
				uniforms = append(uniforms, p)
			}
			continue
		}
		if p.Type.Size(layout.KindVaryingInput) == 0 && p.Type.Size(layout.KindMetalAttribute) == 0 && !p.SystemValue {
			// Outputs through out parameters have no WGSL counterpart in a stub.
			continue
		}
		io, err := e.ioType(ep, p, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		params = append(params, fmt.Sprintf("%s%s: %s", io.attr, ident(p.Name), io.typ))
	}
	if err := e.uniformBlock(name+"Uniforms", name+"_uniforms", uniforms, ep.UniformBuffer); err != nil {
		return err
	}

	result := ""
	body := "    return;"
	if ep.Result != nil && ep.Result.Type != nil && ep.Result.Type.Shape != entity.ShapeNone {
		io, err := e.ioType(ep, ep.Result, 1)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		result = fmt.Sprintf(" -> %s%s", io.attr, io.typ)
		body = fmt.Sprintf("    return %s();", io.typ)
	}

	e.buf.WriteString(attr)
	if ep.Stage == entity.StageCompute {
		x, y, z := e.workgroupSize(ep)
		fmt.Fprintf(&e.buf, " @workgroup_size(%d, %d, %d)", x, y, z)
	}
	fmt.Fprintf(&e.buf, "\nfn %s(%s)%s {\n%s\n}\n\n", name, strings.Join(params, ", "), result, body)
	return nil
}

func varying(v *layout.VarLayout) bool {
	if v.SystemValue {
		return true
	}
	for _, k := range v.Type.ConsumedKinds() {
		if k.IsVarying() {
			return true
		}
	}
	return false
}

type ioDecl struct {
	attr string
	typ  string
}

// ioType names a stage input (dir 0) or output (dir 1) and its attribute.
// Structs become IO structs whose members carry the attributes.
func (e *Emitter) ioType(ep *layout.EntryPointLayout, v *layout.VarLayout, dir int) (ioDecl, error) {
	t := v.Type
	if t.Shape == entity.ShapeStruct {
		name := e.unique(ident(ep.Name) + "_" + ident(t.Name))
		var body strings.Builder
		for _, f := range t.Fields {
			attr, err := e.ioAttr(f, v, dir)
			if err != nil {
				return ioDecl{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			typ, err := e.graphType(f.Type.Type)
			if err != nil {
				return ioDecl{}, fmt.Errorf("%s: %w", f.Name, err)
			}
			fmt.Fprintf(&body, "    %s%s: %s,\n", attr, ident(f.Name), typ)
		}
		fmt.Fprintf(&e.decls, "struct %s {\n%s}\n\n", name, body.String())
		return ioDecl{typ: name}, nil
	}
	attr, err := e.ioAttr(v, nil, dir)
	if err != nil {
		return ioDecl{}, err
	}
	typ, err := e.graphType(t.Type)
	if err != nil {
		return ioDecl{}, err
	}
	return ioDecl{attr: attr, typ: typ}, nil
}

func (e *Emitter) ioAttr(v, parent *layout.VarLayout, dir int) (string, error) {
	sem := strings.ToUpper(v.Semantic)
	if strings.HasPrefix(sem, "SV_TARGET") {
		n := strings.TrimPrefix(sem, "SV_TARGET")
		if n == "" {
			n = "0"
		}
		return "@location(" + n + ") ", nil
	}
	if layout.IsSystemValue(v.Semantic) {
		b := builtins[strings.TrimRight(sem, "0123456789")][dir]
		if b == "" {
			return "", unsupported("system value %s", v.Semantic)
		}
		return "@builtin(" + b + ") ", nil
	}
	kinds := []layout.Kind{layout.KindVaryingInput, layout.KindVaryingOutput}
	if e.pl.Target.MetalVaryings && dir == 0 {
		kinds[0] = layout.KindMetalAttribute
	}
	k := kinds[dir]
	loc := v.Offset(k)
	if parent != nil {
		loc += parent.Offset(k)
	}
	return fmt.Sprintf("@location(%d) ", loc), nil
}

// workgroupSize reads a numthreads attribute on the entry point's
// function; 1, 1, 1 without one.
func (e *Emitter) workgroupSize(ep *layout.EntryPointLayout) (x, y, z int64) {
	size := [3]int64{1, 1, 1}
	info, err := e.graph.AsEntryPoint(ep.EntryPoint)
	if err != nil {
		return 1, 1, 1
	}
	for _, a := range e.graph.UserAttributes(info.Func) {
		if !strings.EqualFold(a.Name, "numthreads") {
			continue
		}
		for i, arg := range a.Args {
			if i >= len(size) {
				break
			}
			if v, err := e.graph.AsValue(arg); err == nil && v.Value.Kind == entity.ValueInt && v.Value.Int > 0 {
				size[i] = v.Value.Int
			}
		}
	}
	return size[0], size[1], size[2]
}
