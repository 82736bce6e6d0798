package codegen

import (
	"fmt"
	"strings"
	"unicode"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
)

func (e *Emitter) scalarType(id entity.ID, hostShared bool) (string, error) {
	k, err := e.graph.AsScalar(id)
	if err != nil {
		return "", err
	}
	switch k {
	case entity.ScalarFloat:
		return "f32", nil
	case entity.ScalarInt:
		return "i32", nil
	case entity.ScalarUint:
		return "u32", nil
	case entity.ScalarBool:
		// bool is not host-shareable.
		if hostShared {
			return "u32", nil
		}
		return "bool", nil
	case entity.ScalarHalf:
		e.f16 = true
		return "f16", nil
	}
	return "", unsupported("%s has no WGSL equivalent", k)
}

// valueType names ordinary data. Struct types are declared on first use
// with their ordinary fields only.
func (e *Emitter) valueType(t *layout.TypeLayout, hostShared bool) (string, error) {
	switch t.Shape {
	case entity.ShapeScalar, entity.ShapeEnum:
		id := t.Type
		if t.Shape == entity.ShapeEnum {
			info, err := e.graph.AsEnum(id)
			if err != nil {
				return "", err
			}
			id = info.Underlying
		}
		return e.scalarType(id, hostShared)
	case entity.ShapeVector:
		elem, err := e.valueType(t.Element, hostShared)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("vec%d<%s>", t.ElementCount, elem), nil
	case entity.ShapeMatrix:
		info, err := e.graph.AsMatrix(t.Type)
		if err != nil {
			return "", err
		}
		elem, err := e.scalarType(info.Elem, hostShared)
		if err != nil {
			return "", err
		}
		if elem != "f32" && elem != "f16" {
			return "", unsupported("WGSL matrices hold floats, not %s", elem)
		}
		// WGSL names matrices columns first.
		return fmt.Sprintf("mat%dx%d<%s>", info.Cols, info.Rows, elem), nil
	case entity.ShapeArray:
		if t.Unsized() {
			return "", unsupported("unsized array %s of ordinary data", t.Name)
		}
		elem, err := e.valueType(t.Element, hostShared)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array<%s, %d>", elem, t.ElementCount), nil
	case entity.ShapeStruct, entity.ShapeClass:
		return e.structType(t, hostShared)
	}
	return "", unsupported("%s is not ordinary data", t.Name)
}

func (e *Emitter) structType(t *layout.TypeLayout, hostShared bool) (string, error) {
	if name, ok := e.structs[t]; ok {
		return name, nil
	}
	name := e.unique(ident(t.Name))
	e.structs[t] = name

	var body strings.Builder
	n := 0
	for _, f := range t.Fields {
		if !ordinary(f.Type) {
			continue
		}
		typ, err := e.valueType(f.Type, hostShared)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
		}
		fmt.Fprintf(&body, "    %s: %s, // offset %d\n", ident(f.Name), typ, f.Offset(layout.KindBytes))
		n++
	}
	if n == 0 {
		return "", unsupported("%s holds no ordinary data", t.Name)
	}
	fmt.Fprintf(&e.decls, "struct %s {\n%s}\n\n", name, body.String())
	return name, nil
}

func (e *Emitter) resourceType(t *layout.TypeLayout) (string, error) {
	r := t.Resource
	sampled := "f32"
	if r.Result != entity.NoID {
		var err error
		if sampled, err = e.elemScalar(r.Result); err != nil {
			return "", err
		}
	}
	if r.Shape.IsTexture() && r.Access == entity.AccessReadWrite {
		dim := textureDims[r.Shape]
		format := "rgba32float"
		switch sampled {
		case "i32":
			format = "rgba32sint"
		case "u32":
			format = "rgba32uint"
		}
		return fmt.Sprintf("texture_storage_%s<%s, write>", dim, format), nil
	}
	switch r.Shape {
	case entity.ResTexture1D, entity.ResTexture2D, entity.ResTexture3D, entity.ResTextureCube, entity.ResTexture2DArray:
		return fmt.Sprintf("texture_%s<%s>", textureDims[r.Shape], sampled), nil
	case entity.ResSampler:
		return "sampler", nil
	case entity.ResStructuredBuffer, entity.ResTypedBuffer:
		elem := sampled
		if r.Result != entity.NoID {
			rt, err := e.engine().TypeLayout(r.Result, layout.RulesStd430)
			if err != nil {
				return "", err
			}
			if elem, err = e.valueType(rt, true); err != nil {
				return "", err
			}
		}
		return "array<" + elem + ">", nil
	case entity.ResByteAddressBuffer:
		return "array<u32>", nil
	}
	return "", unsupported("%s has no WGSL equivalent", r.Shape)
}

var textureDims = map[entity.ResourceShape]string{
	entity.ResTexture1D:      "1d",
	entity.ResTexture2D:      "2d",
	entity.ResTexture3D:      "3d",
	entity.ResTextureCube:    "cube",
	entity.ResTexture2DArray: "2d_array",
}

// elemScalar returns the scalar a texture sample yields.
func (e *Emitter) elemScalar(id entity.ID) (string, error) {
	switch e.graph.ShapeOf(id) {
	case entity.ShapeVector:
		info, err := e.graph.AsVector(id)
		if err != nil {
			return "", err
		}
		id = info.Elem
	case entity.ShapeScalar:
	default:
		return "f32", nil
	}
	s, err := e.scalarType(id, true)
	if err != nil {
		return "", err
	}
	if s == "f16" {
		return "f32", nil
	}
	return s, nil
}

// ordinary reports types that hold plain bytes and nothing else.
func ordinary(t *layout.TypeLayout) bool {
	if t == nil || t.Size(layout.KindBytes) == 0 {
		return false
	}
	switch t.Shape {
	case entity.ShapeResource, entity.ShapeParameterGroup:
		return false
	case entity.ShapeArray:
		return ordinary(t.Element)
	case entity.ShapeStruct, entity.ShapeClass:
		for _, f := range t.Fields {
			if ordinary(f.Type) {
				return true
			}
		}
		return false
	}
	return true
}

// bindable reports types that contain a resource or a parameter group.
func bindable(t *layout.TypeLayout) bool {
	if t == nil {
		return false
	}
	switch t.Shape {
	case entity.ShapeResource, entity.ShapeParameterGroup:
		return true
	case entity.ShapeArray:
		return bindable(t.Element)
	case entity.ShapeStruct, entity.ShapeClass:
		for _, f := range t.Fields {
			if bindable(f.Type) {
				return true
			}
		}
	}
	return false
}

var reserved = map[string]bool{
	"array": true, "bool": true, "break": true, "const": true, "continue": true,
	"else": true, "f16": true, "f32": true, "fn": true, "for": true, "i32": true,
	"if": true, "let": true, "loop": true, "override": true, "return": true,
	"sampler": true, "struct": true, "switch": true, "texture": true, "u32": true,
	"uniform": true, "var": true, "while": true,
}

// ident turns a declaration name such as "Ring<float, 4>" into a WGSL
// identifier.
func ident(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	s := strings.TrimRight(b.String(), "_")
	switch {
	case s == "":
		return "v"
	case unicode.IsDigit(rune(s[0])):
		return "v" + s
	case reserved[s]:
		return s + "_"
	}
	return s
}

func (e *Emitter) unique(name string) string {
	n := e.names[name]
	e.names[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, n)
}

// graphType names a stage input or output. Varying layouts carry no
// element layouts, so the type comes from the graph.
func (e *Emitter) graphType(id entity.ID) (string, error) {
	g := e.graph
	switch g.ShapeOf(id) {
	case entity.ShapeScalar:
		return e.scalarType(id, false)
	case entity.ShapeEnum:
		info, err := g.AsEnum(id)
		if err != nil {
			return "", err
		}
		return e.scalarType(info.Underlying, false)
	case entity.ShapeVector:
		info, err := g.AsVector(id)
		if err != nil {
			return "", err
		}
		elem, err := e.scalarType(info.Elem, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("vec%d<%s>", info.Count, elem), nil
	case entity.ShapeMatrix:
		info, err := g.AsMatrix(id)
		if err != nil {
			return "", err
		}
		elem, err := e.scalarType(info.Elem, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("mat%dx%d<%s>", info.Cols, info.Rows, elem), nil
	case entity.ShapeArray:
		info, err := g.AsArray(id)
		if err != nil {
			return "", err
		}
		if info.Unsized || info.CountParam != entity.NoID {
			return "", unsupported("array %s without a fixed length", g.Name(id))
		}
		elem, err := e.graphType(info.Elem)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array<%s, %d>", elem, info.Count), nil
	}
	return "", unsupported("%s cannot cross a stage boundary", g.Name(id))
}
