package codegen

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"shaderrefl/internal/binding"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
)

// ErrUnsupported marks constructs WGSL cannot express.
var ErrUnsupported = errors.New("not expressible in WGSL")

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnsupported)
}

// Binding is one resource declaration of the generated WGSL together with
// the target slot it stands for.
type Binding struct {
	Name    string
	Group   uint32 // @group in the WGSL
	Binding uint32 // @binding in the WGSL
	Set     uint64 // register space or descriptor set on the target
	Slot    uint64 // register or binding on the target
	Count   uint64 // 1 for single resources, layout.UnboundedCount for unsized arrays
}

// Emitter writes WGSL for a laid out program. Resources are declared one
// per leaf with the computed bindings; ordinary globals are gathered into
// the default buffer; entry points become stubs returning zero values.
type Emitter struct {
	pl    *layout.ProgramLayout
	graph *entity.Graph
	x     *binding.Extractor
	eng   *layout.Engine
	// remap numbers @binding densely per group; the real register goes
	// through Binding.Slot.
	remap bool

	buf      strings.Builder
	decls    strings.Builder
	structs  map[*layout.TypeLayout]string
	names    map[string]int
	next     map[uint32]uint32
	bindings []Binding
	f16      bool
}

// NewEmitter prepares an emitter for pl.
func NewEmitter(pl *layout.ProgramLayout) *Emitter {
	remap := true
	switch pl.Target {
	case layout.TargetVulkan, layout.TargetWebGPU:
		remap = false
	}
	return &Emitter{
		pl:      pl,
		graph:   pl.Program.Graph(),
		x:       binding.NewExtractor(pl.Target),
		remap:   remap,
		structs: make(map[*layout.TypeLayout]string),
		names:   make(map[string]int),
		next:    make(map[uint32]uint32),
	}
}

func (e *Emitter) engine() *layout.Engine {
	if e.eng == nil {
		e.eng = layout.NewEngine(e.pl.Target, e.graph)
	}
	return e.eng
}

// Bindings returns the resource declarations written so far.
func (e *Emitter) Bindings() []Binding { return e.bindings }

// EmitWGSL writes the globals and the entry point called entryPoint, or
// every entry point when it is empty.
func EmitWGSL(pl *layout.ProgramLayout, entryPoint string) (string, []Binding, error) {
	e := NewEmitter(pl)
	src, err := e.Emit(entryPoint)
	return src, e.bindings, err
}

// Emit produces the module text.
func (e *Emitter) Emit(entryPoint string) (string, error) {
	eps := e.pl.EntryPoints
	if entryPoint != "" {
		ep, err := e.pl.FindEntryPoint(entryPoint)
		if err != nil {
			return "", err
		}
		eps = []*layout.EntryPointLayout{ep}
	}

	var ordinaryGlobals []*layout.VarLayout
	for _, v := range e.pl.Parameters() {
		if err := e.global(v); err != nil {
			return "", fmt.Errorf("%s: %w", v.Name, err)
		}
		if ordinary(v.Type) {
			ordinaryGlobals = append(ordinaryGlobals, v)
		}
	}
	if err := e.uniformBlock("Globals", "globals", ordinaryGlobals, e.pl.DefaultBuffer); err != nil {
		return "", err
	}

	for _, ep := range eps {
		if err := e.entryPoint(ep); err != nil {
			return "", fmt.Errorf("entry point %s: %w", ep.Name, err)
		}
	}

	var out strings.Builder
	if e.f16 {
		out.WriteString("enable f16;\n\n")
	}
	fmt.Fprintf(&out, "// %s layout\n\n", e.pl.Target.Name)
	out.WriteString(e.decls.String())
	out.WriteString(e.buf.String())
	return out.String(), nil
}

// global declares the resources and groups reachable from v. Ordinary
// data is left to the enclosing uniform block.
func (e *Emitter) global(v *layout.VarLayout) error {
	if v.Type.ConsumedKind() == layout.KindVKSpecializationConstant {
		typ, err := e.valueType(v.Type, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(&e.buf, "@id(%d) override %s: %s;\n\n",
			v.Offset(layout.KindVKSpecializationConstant), e.unique(ident(v.Name)), typ)
		return nil
	}
	if !bindable(v.Type) {
		return nil
	}
	return e.bind(e.x.Cursor(v), ident(v.Name), 1)
}

func (e *Emitter) bind(c binding.ShaderCursor, name string, count uint64) error {
	if err := c.Err(); err != nil {
		return err
	}
	t := c.Type()
	switch t.Shape {
	case entity.ShapeResource:
		w, err := c.Write()
		if err != nil {
			return err
		}
		typ, err := e.resourceType(t)
		if err != nil {
			return err
		}
		space := ""
		switch t.Resource.Shape {
		case entity.ResStructuredBuffer, entity.ResTypedBuffer, entity.ResByteAddressBuffer:
			space = "<storage, read>"
			if t.Resource.Access == entity.AccessReadWrite {
				space = "<storage, read_write>"
			}
		}
		return e.declare(name, space, typ, w, count)

	case entity.ShapeParameterGroup:
		elem := t.ElementType()
		if ordinary(elem) {
			typ, err := e.valueType(elem, true)
			if err != nil {
				return err
			}
			w, err := c.Write()
			if err != nil {
				return err
			}
			space := "<uniform>"
			if t.Push && w.Kind == layout.KindVKPushConstantBuffer {
				space = "<push_constant>"
			}
			if t.SpaceCreating {
				// The implicit buffer opens the group's own space.
				w.Binding = 0
			}
			if err := e.declare(name, space, typ, w, count); err != nil {
				return err
			}
		}
		if elem.Shape == entity.ShapeStruct || elem.Shape == entity.ShapeClass {
			return e.fields(c, elem, name, count)
		}
		return nil

	case entity.ShapeStruct, entity.ShapeClass:
		return e.fields(c, t, name, count)

	case entity.ShapeArray:
		n := t.ElementCount
		if n == layout.UnboundedCount || count == layout.UnboundedCount {
			count = layout.UnboundedCount
		} else {
			count *= n
		}
		return e.bind(c.Element(0), name, count)
	}
	return nil
}

func (e *Emitter) fields(c binding.ShaderCursor, t *layout.TypeLayout, name string, count uint64) error {
	for i, f := range t.Fields {
		if !bindable(f.Type) {
			continue
		}
		if err := e.bind(c.FieldIndex(i), name+"_"+ident(f.Name), count); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) declare(name, space, typ string, w binding.DescriptorWrite, count uint64) error {
	set, slot := w.Set, w.Binding
	if w.Uniform && w.Kind != layout.KindVKPushConstantBuffer {
		slot = w.ByteOffset
	}
	group, err := safecast.Conv[uint32](set)
	if err != nil {
		return fmt.Errorf("group %d: %w", set, err)
	}
	var bind uint32
	if e.remap {
		bind = e.next[group]
		e.next[group]++
	} else if bind, err = safecast.Conv[uint32](slot); err != nil {
		return fmt.Errorf("binding %d: %w", slot, err)
	}

	name = e.unique(name)
	switch {
	case count == layout.UnboundedCount:
		typ = "binding_array<" + typ + ">"
	case count > 1:
		typ = fmt.Sprintf("binding_array<%s, %d>", typ, count)
	}
	if space == "<push_constant>" {
		fmt.Fprintf(&e.buf, "var<push_constant> %s: %s;\n\n", name, typ)
	} else {
		fmt.Fprintf(&e.buf, "@group(%d) @binding(%d) var%s %s: %s;\n\n", group, bind, space, name, typ)
	}
	e.bindings = append(e.bindings, Binding{
		Name:    name,
		Group:   group,
		Binding: bind,
		Set:     set,
		Slot:    slot,
		Count:   count,
	})
	return nil
}

// uniformBlock gathers ordinary variables into one uniform buffer. Without
// a buffer the target passes them inline and they become private globals.
func (e *Emitter) uniformBlock(typeName, varName string, vars []*layout.VarLayout, buf *layout.VarLayout) error {
	if len(vars) == 0 {
		return nil
	}
	var body strings.Builder
	for _, v := range vars {
		typ, err := e.valueType(v.Type, buf != nil)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		if buf == nil {
			fmt.Fprintf(&e.buf, "var<private> %s: %s;\n\n", e.unique(ident(v.Name)), typ)
			continue
		}
		fmt.Fprintf(&body, "    %s: %s, // offset %d\n", ident(v.Name), typ, v.Offset(layout.KindBytes))
	}
	if buf == nil {
		return nil
	}
	typeName = e.unique(typeName)
	fmt.Fprintf(&e.decls, "struct %s {\n%s}\n\n", typeName, body.String())
	w := binding.DescriptorWrite{Set: buf.BindingSpace(), Binding: buf.BindingIndex(), Kind: buf.BindingKind()}
	return e.declare(varName, "<uniform>", typeName, w, 1)
}
