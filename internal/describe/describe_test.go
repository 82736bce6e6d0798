package describe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/source"
)

const lightingTOML = `
name = "lighting"

[[decl]]
kind = "interface"
name = "IShade"

[[decl]]
kind = "struct"
name = "Light"
conforms = ["IShade"]

  [[decl.field]]
  name = "color"
  type = "float3"

  [[decl.field]]
  name = "shadowMap"
  type = "Texture2D<float>"
  binding = { class = "t", index = 3 }

[[decl]]
kind = "generic"
name = "Ring"

  [[decl.type_param]]
  name = "T"
  conforms = ["IShade"]

  [[decl.type_param]]
  name = "N"
  type = "int"

  [[decl.field]]
  name = "items"
  type = "T"

[[decl]]
kind = "param"
name = "gLight"
type = "ConstantBuffer<Light>"

[[decl]]
kind = "func"
name = "main"
result = "float4"
semantic = "SV_Target"

  [[decl.param]]
  name = "uv"
  type = "float2"
  semantic = "TEXCOORD0"

[[entry_point]]
name = "main"
stage = "pixel"
`

const lightingYAML = `
name: lighting
decl:
  - kind: struct
    name: Light
    field:
      - name: color
        type: float3
  - kind: param
    name: gLight
    type: ConstantBuffer<Light>
`

func buildTOML(t *testing.T, g *entity.Graph, src string) (entity.ID, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual("lighting.toml", []byte(src)))
	m, err := decodeFile(f, FormatTOML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bag := diag.NewBag(0)
	return Build(g, m, diag.BagReporter{Bag: bag}), bag
}

func TestBuildTOML(t *testing.T) {
	g := entity.NewGraph(nil)
	mod, bag := buildTOML(t, g, lightingTOML)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", dump(bag))
	}

	light, err := g.FindChild(mod, "Light")
	if err != nil {
		t.Fatalf("Light: %v", err)
	}
	info, err := g.AsStruct(light)
	if err != nil || len(info.Fields) != 2 {
		t.Fatalf("Light fields = %v, %v", info.Fields, err)
	}
	iface, _ := g.FindChild(mod, "IShade")
	if len(info.Conforms) != 1 || info.Conforms[0] != iface {
		t.Fatalf("Light conforms = %v", info.Conforms)
	}
	if sp := g.Span(light); sp.Empty() {
		t.Fatalf("Light has no span")
	}

	ring, err := g.FindChild(mod, "Ring")
	if err != nil || g.Kind(ring) != entity.KindGeneric {
		t.Fatalf("Ring = %v, %v", g.Kind(ring), err)
	}
	if inner := g.UnspecializedInner(ring); inner == ring || g.ShapeOf(inner) != entity.ShapeStruct {
		t.Fatalf("Ring wraps %v", g.ShapeOf(inner))
	}

	if _, err := g.FindChild(mod, "gLight"); err != nil {
		t.Fatalf("gLight: %v", err)
	}
	if _, err := g.FindEntryPoint(mod, "main"); err != nil {
		t.Fatalf("entry point: %v", err)
	}
}

func TestDecodeYAML(t *testing.T) {
	m, err := Decode([]byte(lightingYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Name != "lighting" || len(m.Decls) != 2 || len(m.Decls[0].Fields) != 1 {
		t.Fatalf("decoded %+v", m)
	}
	g := entity.NewGraph(nil)
	bag := diag.NewBag(0)
	mod := Build(g, m, diag.BagReporter{Bag: bag})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", dump(bag))
	}
	if _, err := g.FindChild(mod, "gLight"); err != nil {
		t.Fatalf("gLight: %v", err)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	if _, err := Decode([]byte("name = \"a\"\ncolour = 1\n"), FormatTOML); err == nil {
		t.Fatalf("TOML with unknown key accepted")
	}
	if _, err := Decode([]byte("name: a\ncolour: 1\n"), FormatYAML); err == nil {
		t.Fatalf("YAML with unknown key accepted")
	}
	if _, err := Decode([]byte("imports = [\"b\"]\n"), FormatTOML); !errors.Is(err, ErrMissingField) {
		t.Fatalf("missing name: %v", err)
	}
	if _, err := FormatOf("a.json"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("FormatOf(json) = %v", err)
	}
}

func TestBuildReportsBadDeclarations(t *testing.T) {
	src := `
name = "broken"

[[decl]]
kind = "struct"
name = "A"

  [[decl.field]]
  name = "x"
  type = "Missing"

  [[decl.field]]
  name = "y"
  type = "float3"
  modifiers = ["volatile"]

[[decl]]
kind = "struct"
name = "A"

[[decl]]
kind = "union"
name = "U"

[[decl]]
kind = "func"
name = "main"

[[entry_point]]
name = "main"
stage = "geometry-ish"
`
	g := entity.NewGraph(nil)
	_, bag := buildTOML(t, g, src)
	for _, code := range []diag.Code{
		diag.DscUnresolvedName,
		diag.DscBadModifier,
		diag.DscDuplicateDecl,
		diag.DscUnknownKind,
		diag.DscBadStage,
	} {
		if !bag.HasCode(code) {
			t.Fatalf("expected %v in:\n%s", code, dump(bag))
		}
	}
}

func writeModule(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryLoadsImportsFirst(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "common/material.yaml", `
name: common/material
decl:
  - kind: struct
    name: Material
    field:
      - name: albedo
        type: Texture2D<float4>
`)
	writeModule(t, dir, "scene.toml", `
name = "scene"
imports = ["common/material"]

[[decl]]
kind = "param"
name = "gMaterial"
type = "ParameterBlock<Material>"
`)
	reg := NewRegistry(nil, dir)
	g := entity.NewGraph(nil)
	bag := diag.NewBag(0)
	mod, err := reg.LoadModule(context.Background(), g, "scene", diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("LoadModule: %v\n%s", err, dump(bag))
	}
	if _, err := g.FindChild(mod, "gMaterial"); err != nil {
		t.Fatalf("gMaterial: %v", err)
	}
	mods := g.Modules()
	if len(mods) != 2 || g.Name(mods[0]) != "common/material" {
		t.Fatalf("modules built out of order: %v", mods)
	}

	again, err := reg.LoadModule(context.Background(), g, "scene.toml", diag.BagReporter{Bag: bag})
	if err != nil || again != mod {
		t.Fatalf("second load = %v, %v", again, err)
	}

	before := reg.Digest("scene")
	if before == reg.Digest("common/material") {
		t.Fatalf("distinct modules share a digest")
	}
	writeModule(t, dir, "common/material.yaml", `
name: common/material
decl:
  - kind: struct
    name: Material
    field:
      - name: albedo
        type: Texture2D<float3>
`)
	reg2 := NewRegistry(nil, dir)
	if _, err := reg2.LoadModule(context.Background(), entity.NewGraph(nil), "scene", diag.BagReporter{Bag: diag.NewBag(0)}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reg2.Digest("scene") == before {
		t.Fatalf("digest ignores a changed import")
	}
}

func TestRegistryImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.toml", "name = \"a\"\nimports = [\"b\"]\n")
	writeModule(t, dir, "b.toml", "name = \"b\"\nimports = [\"a\"]\n")

	bag := diag.NewBag(0)
	_, err := NewRegistry(nil, dir).LoadModule(context.Background(), entity.NewGraph(nil), "a", diag.BagReporter{Bag: bag})
	if err == nil {
		t.Fatalf("cycle accepted")
	}
	if !bag.HasCode(diag.DscImportCycle) {
		t.Fatalf("expected import cycle:\n%s", dump(bag))
	}
}

func TestRegistryBrokenAndMissingImports(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "base.toml", "name = \"base\"\n[[decl]]\nkind = \"struct\"\n")
	writeModule(t, dir, "top.toml", "name = \"top\"\nimports = [\"base\", \"nowhere\"]\n")

	bag := diag.NewBag(0)
	_, err := NewRegistry(nil, dir).LoadModule(context.Background(), entity.NewGraph(nil), "top", diag.BagReporter{Bag: bag})
	if err == nil {
		t.Fatalf("broken import accepted")
	}
	for _, code := range []diag.Code{diag.DscMissingField, diag.DscMissingModule, diag.DscDependency} {
		if !bag.HasCode(code) {
			t.Fatalf("expected %v in:\n%s", code, dump(bag))
		}
	}

	bag = diag.NewBag(0)
	if _, err := NewRegistry(nil, dir).LoadModule(context.Background(), entity.NewGraph(nil), "ghost", diag.BagReporter{Bag: bag}); err == nil || !bag.HasCode(diag.DscMissingModule) {
		t.Fatalf("missing root: %v", err)
	}
}

func dump(b *diag.Bag) string {
	return diag.FormatShort(b.Items(), nil, true)
}
