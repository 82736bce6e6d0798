package layout_test

import (
	"context"
	"errors"
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/link"
)

func layoutProgram(t *testing.T, target *layout.Target, g *entity.Graph, c link.Component) (*layout.ProgramLayout, error) {
	t.Helper()
	prog, err := link.Link(context.Background(), g, c)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	return layout.NewEngine(target, g).LayoutProgram(context.Background(), prog)
}

func mustProgram(t *testing.T, target *layout.Target, g *entity.Graph, c link.Component) *layout.ProgramLayout {
	t.Helper()
	pl, err := layoutProgram(t, target, g, c)
	if err != nil {
		if bag, ok := diag.BagOf(err); ok {
			t.Fatalf("LayoutProgram(%s): %v\n%s", target, err, bag.Summary())
		}
		t.Fatalf("LayoutProgram(%s): %v", target, err)
	}
	return pl
}

func mustParam(t *testing.T, pl *layout.ProgramLayout, name string) *layout.VarLayout {
	t.Helper()
	v, err := pl.FindParam(name)
	if err != nil {
		t.Fatalf("FindParam(%s): %v", name, err)
	}
	return v
}

func TestConstantBufferBindingOffsetsNestedResources(t *testing.T) {
	f := newFixture(t)
	g := f.g
	mat := g.AddStruct(f.mod, "Material")
	g.AddField(mat, "color", f.float4)
	g.AddField(mat, "albedo", f.tex)
	g.AddGlobalParam(f.mod, "gMaterial", g.ParameterGroup(entity.GroupConstantBuffer, mat),
		entity.Binding(entity.RegisterAny, 10, 0))

	pl := mustProgram(t, layout.TargetVulkan, g, link.Module(f.mod))
	v := mustParam(t, pl, "gMaterial")
	if v.BindingKind() != layout.KindVKBinding || v.BindingIndex() != 10 {
		t.Fatalf("gMaterial binding = %s %d, want vk_binding 10", v.BindingKind(), v.BindingIndex())
	}
	field := mustField(t, v.Type.ElementType(), "albedo")
	loc := layout.Root(v).Element(v.Type).Field(field)
	if got := loc.Offset(layout.KindVKBinding); got != 11 {
		t.Fatalf("albedo binding = %d, want 11", got)
	}
	if pl.DefaultBuffer != nil {
		t.Fatalf("no global holds ordinary data, got default buffer %+v", pl.DefaultBuffer)
	}
}

func TestD3D11GlobalsAndExplicitRegisters(t *testing.T) {
	f := newFixture(t)
	g := f.g
	sampler := g.Resource(entity.ResSampler, entity.AccessRead, entity.NoID)
	g.AddGlobalParam(f.mod, "gScale", f.float)
	g.AddGlobalParam(f.mod, "gTex", f.tex)
	g.AddGlobalParam(f.mod, "gShadow", f.tex, entity.Binding(entity.RegisterT, 3, 0))
	g.AddGlobalParam(f.mod, "gSampler", sampler)
	g.AddGlobalParam(f.mod, "gTint", f.float3)
	g.AddGlobalParam(f.mod, "gCache", f.float, entity.Mod(entity.ModStatic))

	pl := mustProgram(t, layout.TargetD3D11, g, link.Module(f.mod))
	if len(pl.Parameters()) != 5 {
		t.Fatalf("parameters = %d, want 5 (static excluded)", len(pl.Parameters()))
	}
	if pl.DefaultBuffer == nil || pl.DefaultBuffer.Offset(layout.KindD3DConstantBuffer) != 0 {
		t.Fatalf("default buffer = %+v, want b0", pl.DefaultBuffer)
	}
	cases := []struct {
		name  string
		kind  layout.Kind
		index uint64
	}{
		{"gScale", layout.KindBytes, 0},
		{"gTint", layout.KindBytes, 4},
		{"gShadow", layout.KindD3DShaderResource, 3},
		{"gTex", layout.KindD3DShaderResource, 0},
		{"gSampler", layout.KindD3DSamplerState, 0},
	}
	for _, tc := range cases {
		if got := mustParam(t, pl, tc.name).Offset(tc.kind); got != tc.index {
			t.Fatalf("%s %s = %d, want %d", tc.name, tc.kind, got, tc.index)
		}
	}
	if got := mustParam(t, pl, "gShadow").BindingSpace(); got != 0 {
		t.Fatalf("gShadow space = %d", got)
	}
	if _, err := pl.FindParam("gCache"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("static global must not be a parameter: %v", err)
	}
}

func TestExplicitBindingOverlapIsWarning(t *testing.T) {
	f := newFixture(t)
	g := f.g
	g.AddGlobalParam(f.mod, "a", f.tex, entity.Binding(entity.RegisterT, 0, 0))
	g.AddGlobalParam(f.mod, "b", f.tex, entity.Binding(entity.RegisterT, 0, 0))

	pl, err := layoutProgram(t, layout.TargetD3D11, g, link.Module(f.mod))
	if err != nil {
		t.Fatalf("overlap must only warn: %v", err)
	}
	if !pl.Diagnostics.HasCode(diag.LayBindingOverlap) {
		t.Fatalf("expected %s, got:\n%s", diag.LayBindingOverlap, pl.Diagnostics.Summary())
	}
}

func TestParameterBlocksAndUnsizedArraysTakeSpaces(t *testing.T) {
	f := newFixture(t)
	g := f.g
	mat := g.AddStruct(f.mod, "Material")
	g.AddField(mat, "color", f.float4)
	g.AddField(mat, "albedo", f.tex)
	g.AddGlobalParam(f.mod, "gTex", f.tex)
	g.AddGlobalParam(f.mod, "gMaterial", g.ParameterGroup(entity.GroupParameterBlock, mat))
	g.AddGlobalParam(f.mod, "gTextures", g.UnsizedArray(f.tex))

	pl := mustProgram(t, layout.TargetD3D12, g, link.Module(f.mod))
	tex := mustParam(t, pl, "gTex")
	if tex.BindingIndex() != 0 || tex.BindingSpace() != 0 {
		t.Fatalf("gTex = t%d space%d", tex.BindingIndex(), tex.BindingSpace())
	}
	block := mustParam(t, pl, "gMaterial")
	if block.BindingKind() != layout.KindRegisterSpace || block.BindingSpace() != 1 {
		t.Fatalf("gMaterial = %s space %d, want its own space 1", block.BindingKind(), block.BindingSpace())
	}
	buf := layout.Root(block).Container(block.Type)
	if buf.Offset(layout.KindD3DConstantBuffer) != 0 || buf.Space(layout.KindD3DConstantBuffer) != 1 {
		t.Fatalf("implicit buffer = b%d space%d", buf.Offset(layout.KindD3DConstantBuffer), buf.Space(layout.KindD3DConstantBuffer))
	}
	albedo := layout.Root(block).Element(block.Type).Field(mustField(t, block.Type.ElementType(), "albedo"))
	if albedo.Offset(layout.KindD3DShaderResource) != 0 || albedo.Space(layout.KindD3DShaderResource) != 1 {
		t.Fatalf("albedo = t%d space%d", albedo.Offset(layout.KindD3DShaderResource), albedo.Space(layout.KindD3DShaderResource))
	}
	arr := mustParam(t, pl, "gTextures")
	if !arr.Type.Unsized() || arr.BindingSpace() != 2 {
		t.Fatalf("gTextures unsized=%v space=%d", arr.Type.Unsized(), arr.BindingSpace())
	}

	// Without spaces the unsized array has no layout; the rest still does.
	pl, err := layoutProgram(t, layout.TargetD3D11, g, link.Module(f.mod))
	if !errors.Is(err, layout.ErrUnsupportedConstruct) {
		t.Fatalf("expected ErrUnsupportedConstruct on d3d11, got %v", err)
	}
	if _, ferr := pl.FindParam("gTex"); ferr != nil {
		t.Fatalf("partial layout lost gTex: %v", ferr)
	}
	if block := mustParam(t, pl, "gMaterial"); block.BindingKind() != layout.KindD3DConstantBuffer {
		t.Fatalf("ParameterBlock on d3d11 = %s, want a constant buffer", block.BindingKind())
	}
}

func TestPushAndSpecializationConstants(t *testing.T) {
	f := newFixture(t)
	g := f.g
	params := g.AddStruct(f.mod, "Params")
	g.AddField(params, "scale", f.float4)
	g.AddGlobalParam(f.mod, "gPush", g.ParameterGroup(entity.GroupConstantBuffer, params), entity.Mod(entity.ModPushConstant))
	g.AddGlobalParam(f.mod, "gCount", g.Scalar(entity.ScalarInt), entity.Mod(entity.ModSpecializationConstant))

	pl := mustProgram(t, layout.TargetVulkan, g, link.Module(f.mod))
	push := mustParam(t, pl, "gPush")
	if push.BindingKind() != layout.KindVKPushConstantBuffer || push.BindingIndex() != 0 {
		t.Fatalf("gPush = %s %d", push.BindingKind(), push.BindingIndex())
	}
	if push.Type.ElementType().Rules != layout.RulesStd430 {
		t.Fatalf("push constants packed with %s", push.Type.ElementType().Rules)
	}
	count := mustParam(t, pl, "gCount")
	if count.Type.ConsumedKind() != layout.KindVKSpecializationConstant {
		t.Fatalf("gCount consumes %s", count.Type.ConsumedKind())
	}
	if pl.DefaultBuffer != nil {
		t.Fatalf("unexpected default buffer")
	}

	// Elsewhere a specialization constant is an ordinary global.
	pl = mustProgram(t, layout.TargetD3D11, g, link.Module(f.mod))
	if pl.DefaultBuffer == nil || mustParam(t, pl, "gCount").Type.ConsumedKind() != layout.KindBytes {
		t.Fatalf("gCount on d3d11 should live in the default buffer")
	}
}

func TestCPUPassesEverythingInline(t *testing.T) {
	f := newFixture(t)
	g := f.g
	g.AddGlobalParam(f.mod, "gScale", f.float)
	g.AddGlobalParam(f.mod, "gTex", f.tex)

	pl := mustProgram(t, layout.TargetCPU, g, link.Module(f.mod))
	if pl.DefaultBuffer != nil {
		t.Fatalf("cpu has no default buffer")
	}
	if got := mustParam(t, pl, "gTex").Offset(layout.KindBytes); got != 8 {
		t.Fatalf("gTex at byte %d, want 8", got)
	}
	if got := pl.Globals.Size(layout.KindBytes); got != 16 {
		t.Fatalf("globals = %d bytes, want 16", got)
	}
}

// VSOut main(float3 pos : POSITION, float2 uv : TEXCOORD0, uint id : SV_VertexID, uniform float4 tint)
func buildVertexShader(f fixture) entity.ID {
	g := f.g
	out := g.AddStruct(f.mod, "VSOut")
	g.AddField(out, "position", f.float4, entity.Semantic("SV_Position"))
	g.AddField(out, "uv", g.Vector(f.float, 2), entity.Semantic("TEXCOORD0"))
	g.AddField(out, "normal", f.float3, entity.Semantic("NORMAL"))

	fn := g.AddFunc(f.mod, "main", out)
	g.AddParam(fn, "pos", f.float3, entity.Semantic("POSITION"))
	g.AddParam(fn, "uv", g.Vector(f.float, 2), entity.Semantic("TEXCOORD0"))
	g.AddParam(fn, "id", g.Scalar(entity.ScalarUint), entity.Semantic("SV_VertexID"))
	g.AddParam(fn, "tint", f.float4, entity.Mod(entity.ModUniform))
	return g.AddEntryPoint(f.mod, fn, entity.StageVertex)
}

func TestEntryPointParameters(t *testing.T) {
	f := newFixture(t)
	g := f.g
	g.AddGlobalParam(f.mod, "gScale", f.float)
	g.AddGlobalParam(f.mod, "gTex", f.tex)
	ep := buildVertexShader(f)
	c := link.Composite(link.Module(f.mod), link.EntryPoint(ep))

	pl := mustProgram(t, layout.TargetD3D11, g, c)
	epl, err := pl.FindEntryPoint("main")
	if err != nil {
		t.Fatal(err)
	}
	if epl.Stage != entity.StageVertex || len(epl.Params) != 4 {
		t.Fatalf("entry point = %+v", epl)
	}
	param := func(name string) *layout.VarLayout {
		v, err := epl.FindParam(name)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	if got := param("pos").Offset(layout.KindVaryingInput); got != 0 {
		t.Fatalf("pos input = %d", got)
	}
	if got := param("uv").Offset(layout.KindVaryingInput); got != 1 {
		t.Fatalf("uv input = %d", got)
	}
	id := param("id")
	if !id.SystemValue || id.Type.ConsumedKind() != layout.KindNone {
		t.Fatalf("SV_VertexID must consume nothing: %+v", id.Type.ConsumedKinds())
	}
	if epl.UniformBuffer == nil || epl.UniformBuffer.Offset(layout.KindD3DConstantBuffer) != 1 {
		t.Fatalf("entry-point uniforms should follow $Globals at b1, got %+v", epl.UniformBuffer)
	}
	if param("tint").Stage != entity.StageVertex {
		t.Fatalf("tint stage = %s", param("tint").Stage)
	}
	res := epl.Result
	if res == nil || res.Type.Size(layout.KindVaryingOutput) != 2 {
		t.Fatalf("result outputs = %v", res)
	}
	if got := mustField(t, res.Type, "normal").Offset(layout.KindVaryingOutput); got != 1 {
		t.Fatalf("normal output = %d", got)
	}

	if got := param("pos").Type.ConsumedKind(); got != layout.KindVaryingInput {
		t.Fatalf("d3d11 pos consumes %s", got)
	}

	pl = mustProgram(t, layout.TargetMetal, g, c)
	mepl, err := pl.FindEntryPoint("main")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := mepl.FindParam("pos")
	if got := v.Type.ConsumedKind(); got != layout.KindMetalAttribute {
		t.Fatalf("metal pos consumes %s", got)
	}
	if _, err := pl.FindEntryPoint("other"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("FindEntryPoint(other): %v", err)
	}
}

func TestRayTracingParameters(t *testing.T) {
	f := newFixture(t)
	g := f.g
	payload := g.AddStruct(f.mod, "Payload")
	g.AddField(payload, "color", f.float4)
	attribs := g.AddStruct(f.mod, "Attribs")
	g.AddField(attribs, "bary", g.Vector(f.float, 2))
	fn := g.AddFunc(f.mod, "hit", entity.NoID)
	g.AddParam(fn, "payload", payload, entity.Mod(entity.ModInOut))
	g.AddParam(fn, "attribs", attribs)
	ep := g.AddEntryPoint(f.mod, fn, entity.StageClosestHit)
	c := link.Composite(link.Module(f.mod), link.EntryPoint(ep))

	for _, tc := range []struct {
		target           *layout.Target
		payload, attribs layout.Kind
	}{
		{layout.TargetVulkan, layout.KindRTRayPayload, layout.KindRTHitAttributes},
		{layout.TargetMetal, layout.KindMetalPayload, layout.KindMetalPayload},
	} {
		pl := mustProgram(t, tc.target, g, c)
		epl, err := pl.FindEntryPoint("hit")
		if err != nil {
			t.Fatal(err)
		}
		if epl.Result != nil {
			t.Fatalf("void entry point has a result")
		}
		p, _ := epl.FindParam("payload")
		a, _ := epl.FindParam("attribs")
		if p.Type.ConsumedKind() != tc.payload || a.Type.ConsumedKind() != tc.attribs {
			t.Fatalf("%s: payload %s, attribs %s", tc.target, p.Type.ConsumedKind(), a.Type.ConsumedKind())
		}
	}
}

func TestArraysOfResourceStructsStoreOneRunPerLeaf(t *testing.T) {
	f := newFixture(t)
	g := f.g
	pair := g.AddStruct(f.mod, "Pair")
	g.AddField(pair, "a", f.tex)
	g.AddField(pair, "b", f.tex)
	quad := g.AddStruct(f.mod, "Quad")
	g.AddField(quad, "a", f.tex)
	g.AddField(quad, "b", g.Array(f.tex, 2))
	g.AddGlobalParam(f.mod, "gPairs", g.Array(pair, 3))
	g.AddGlobalParam(f.mod, "gQuads", g.Array(quad, 3))

	pl := mustProgram(t, layout.TargetD3D11, g, link.Module(f.mod))
	pairs := mustParam(t, pl, "gPairs")
	if got := pairs.Type.Size(layout.KindD3DShaderResource); got != 6 {
		t.Fatalf("gPairs size = %d, want 6", got)
	}
	elem := layout.Root(pairs).ArrayElement(pairs.Type, 1)
	for _, tc := range []struct {
		field string
		want  uint64
	}{
		{"a", 1},
		{"b", 4},
	} {
		loc := elem.Field(mustField(t, pairs.Type.Element, tc.field))
		if got := loc.Offset(layout.KindD3DShaderResource); got != tc.want {
			t.Fatalf("gPairs[1].%s = t%d, want t%d", tc.field, got, tc.want)
		}
		if loc.RunStart(layout.KindD3DShaderResource)+1 != tc.want || loc.Index() != 1 {
			t.Fatalf("gPairs[1].%s run = t%d index %d", tc.field, loc.RunStart(layout.KindD3DShaderResource), loc.Index())
		}
	}

	// gQuads follows gPairs: a takes t6..t8, b takes t9..t14.
	quads := mustParam(t, pl, "gQuads")
	qt := quads.Type
	b := layout.Root(quads).ArrayElement(qt, 2).Field(mustField(t, qt.Element, "b"))
	b = b.ArrayElement(mustField(t, qt.Element, "b").Type, 1)
	if got := b.Offset(layout.KindD3DShaderResource); got != 9+5 {
		t.Fatalf("gQuads[2].b[1] = t%d, want t14", got)
	}
}
