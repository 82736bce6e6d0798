package binding_test

import (
	"context"
	"errors"
	"testing"

	"shaderrefl/internal/binding"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/link"
)

type fixture struct {
	g      *entity.Graph
	mod    entity.ID
	float  entity.ID
	float3 entity.ID
	float4 entity.ID
	tex    entity.ID
}

func newFixture() fixture {
	g := entity.NewGraph(nil)
	f := fixture{g: g, mod: g.AddModule("scene")}
	f.float = g.Scalar(entity.ScalarFloat)
	f.float3 = g.Vector(f.float, 3)
	f.float4 = g.Vector(f.float, 4)
	f.tex = g.Resource(entity.ResTexture2D, entity.AccessRead, f.float4)
	return f
}

// struct Material { float4 color; Texture2D albedo; }
func (f fixture) material() entity.ID {
	m := f.g.AddStruct(f.mod, "Material")
	f.g.AddField(m, "color", f.float4)
	f.g.AddField(m, "albedo", f.tex)
	return m
}

func mustLayout(t *testing.T, target *layout.Target, g *entity.Graph, id entity.ID, rules layout.Rules) *layout.TypeLayout {
	t.Helper()
	l, err := layout.NewEngine(target, g).TypeLayout(id, rules)
	if err != nil {
		t.Fatalf("TypeLayout(%s) on %s: %v", g.Name(id), target, err)
	}
	return l
}

func mustExtract(t *testing.T, x *binding.Extractor, l *layout.TypeLayout) *binding.Info {
	t.Helper()
	in, err := x.Extract(l)
	if err != nil {
		t.Fatalf("Extract(%s): %v", l.Name, err)
	}
	return in
}

func mustProgram(t *testing.T, target *layout.Target, f fixture) *layout.ProgramLayout {
	t.Helper()
	prog, err := link.Link(context.Background(), f.g, link.Module(f.mod))
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	pl, err := layout.NewEngine(target, f.g).LayoutProgram(context.Background(), prog)
	if err != nil {
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

func TestLightRangesOnD3D11(t *testing.T) {
	f := newFixture()
	g := f.g
	light := g.AddStruct(f.mod, "Light")
	g.AddField(light, "intensity", f.float3)
	g.AddField(light, "shadowMap", f.tex)
	g.AddField(light, "radius", f.float)
	g.AddField(light, "cookieMap", f.tex)

	x := binding.NewExtractor(layout.TargetD3D11)
	l := mustLayout(t, layout.TargetD3D11, g, light, layout.RulesConstantBuffer)
	in := mustExtract(t, x, l)

	if len(in.BindingRanges) != 2 {
		t.Fatalf("ranges = %d, want 2", len(in.BindingRanges))
	}
	for i, r := range in.BindingRanges {
		if r.Type != binding.TypeTexture || r.Kind != layout.KindD3DShaderResource || r.Count != 1 {
			t.Fatalf("range %d = %+v", i, r)
		}
		if r.DescriptorSetIndex != 0 || r.FirstDescriptorRangeIndex != i || r.DescriptorRangeCount != 1 {
			t.Fatalf("range %d descriptors = set %d first %d count %d", i,
				r.DescriptorSetIndex, r.FirstDescriptorRangeIndex, r.DescriptorRangeCount)
		}
	}
	if got := in.BindingRanges[1].LeafVar.Name; got != "cookieMap" {
		t.Fatalf("range 1 leaf = %s", got)
	}
	if len(in.DescriptorSets) != 1 || len(in.DescriptorSets[0].Ranges) != 2 {
		t.Fatalf("descriptor sets = %+v", in.DescriptorSets)
	}
	if got := in.DescriptorSets[0].Ranges[1].IndexOffset; got != 1 {
		t.Fatalf("cookieMap register = t%d, want t1", got)
	}

	for i, want := range []int{0, 0, 1, 1} {
		got, err := x.BindingRangeOffsetForField(l, i)
		if err != nil || got != want {
			t.Fatalf("BindingRangeOffsetForField(%d) = %d, %v; want %d", i, got, err, want)
		}
	}
	if _, err := x.BindingRangeOffsetForField(l, 4); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("field 4: %v, want not found", err)
	}
}

func TestCPUHandlesHaveNoDescriptors(t *testing.T) {
	f := newFixture()
	m := f.material()
	in, err := binding.Extract(layout.TargetCPU, mustLayout(t, layout.TargetCPU, f.g, m, layout.RulesDefault))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(in.BindingRanges) != 1 || in.BindingRanges[0].DescriptorSetIndex != -1 {
		t.Fatalf("ranges = %+v", in.BindingRanges)
	}
	if len(in.DescriptorSets) != 0 || in.DescriptorCount() != 0 {
		t.Fatalf("cpu has no descriptor sets, got %+v", in.DescriptorSets)
	}
}

func TestArrayCounts(t *testing.T) {
	f := newFixture()
	g := f.g
	grid := g.Array(g.Array(f.tex, 3), 2)
	x := binding.NewExtractor(layout.TargetD3D11)
	in := mustExtract(t, x, mustLayout(t, layout.TargetD3D11, g, grid, layout.RulesDefault))
	if len(in.BindingRanges) != 1 || in.BindingRanges[0].Count != 6 {
		t.Fatalf("ranges = %+v, want one range of 6", in.BindingRanges)
	}
	if got := in.DescriptorCount(); got != 6 {
		t.Fatalf("descriptors = %d, want 6", got)
	}

	// A bindless table is unbounded.
	g.AddGlobalParam(f.mod, "gTextures", g.UnsizedArray(f.tex))
	pl := mustProgram(t, layout.TargetD3D12, f)
	v := mustParam(t, pl, "gTextures")
	in = mustExtract(t, binding.NewExtractor(layout.TargetD3D12), v.Type)
	if in.BindingRanges[0].Count != layout.UnboundedCount || in.DescriptorCount() != layout.UnboundedCount {
		t.Fatalf("unsized array count = %d", in.BindingRanges[0].Count)
	}
}

func TestConstantBufferVersusParameterBlock(t *testing.T) {
	f := newFixture()
	g := f.g
	mat := f.material()
	scene := g.AddStruct(f.mod, "Scene")
	g.AddField(scene, "mat", g.ParameterGroup(entity.GroupConstantBuffer, mat))
	g.AddField(scene, "block", g.ParameterGroup(entity.GroupParameterBlock, mat))
	g.AddField(scene, "env", f.tex)

	x := binding.NewExtractor(layout.TargetVulkan)
	in := mustExtract(t, x, mustLayout(t, layout.TargetVulkan, g, scene, layout.RulesDefault))

	want := []binding.BindingType{binding.TypeConstantBuffer, binding.TypeParameterBlock, binding.TypeTexture}
	if len(in.BindingRanges) != len(want) {
		t.Fatalf("ranges = %d, want %d", len(in.BindingRanges), len(want))
	}
	for i, typ := range want {
		if in.BindingRanges[i].Type != typ {
			t.Fatalf("range %d = %s, want %s", i, in.BindingRanges[i].Type, typ)
		}
	}
	if in.BindingRanges[1].DescriptorSetIndex != -1 {
		t.Fatalf("a parameter block owns its set, got index %d", in.BindingRanges[1].DescriptorSetIndex)
	}

	// The constant buffer and its texture flatten into set 0 before env.
	if len(in.DescriptorSets) != 1 {
		t.Fatalf("sets = %d, want 1", len(in.DescriptorSets))
	}
	var offsets []uint64
	for _, r := range in.DescriptorSets[0].Ranges {
		offsets = append(offsets, r.IndexOffset)
	}
	if len(offsets) != 3 || offsets[0] != 0 || offsets[1] != 1 || offsets[2] != 2 {
		t.Fatalf("set 0 bindings = %v, want [0 1 2]", offsets)
	}

	if len(in.SubObjectRanges) != 2 {
		t.Fatalf("sub-objects = %d, want 2", len(in.SubObjectRanges))
	}
	block, ok := in.SubObject(1)
	if !ok {
		t.Fatalf("no sub-object for block")
	}
	if !block.Info.ImplicitBuffer || block.Info.BindingRanges[0].Type != binding.TypeConstantBuffer {
		t.Fatalf("block range 0 = %+v, want implicit buffer", block.Info.BindingRanges[0])
	}
	if len(block.Info.DescriptorSets) != 1 || len(block.Info.DescriptorSets[0].Ranges) != 2 {
		t.Fatalf("block sets = %+v", block.Info.DescriptorSets)
	}
	if got := block.Info.DescriptorSets[0].Ranges[1].IndexOffset; got != 1 {
		t.Fatalf("block albedo binding = %d, want 1", got)
	}
}

func TestPushConstantRange(t *testing.T) {
	f := newFixture()
	g := f.g
	params := g.AddStruct(f.mod, "Params")
	g.AddField(params, "scale", f.float4)
	g.AddGlobalParam(f.mod, "gPush", g.ParameterGroup(entity.GroupConstantBuffer, params), entity.Mod(entity.ModPushConstant))

	pl := mustProgram(t, layout.TargetVulkan, f)
	in := mustExtract(t, binding.NewExtractor(layout.TargetVulkan), mustParam(t, pl, "gPush").Type)
	if len(in.BindingRanges) != 1 {
		t.Fatalf("ranges = %+v", in.BindingRanges)
	}
	r := in.BindingRanges[0]
	if r.Type != binding.TypePushConstant || r.Kind != layout.KindVKPushConstantBuffer || r.DescriptorSetIndex != -1 {
		t.Fatalf("push range = %+v", r)
	}
}

func TestExtractRejectsOtherTarget(t *testing.T) {
	f := newFixture()
	l := mustLayout(t, layout.TargetD3D11, f.g, f.material(), layout.RulesDefault)
	_, err := binding.NewExtractor(layout.TargetVulkan).Extract(l)
	if !errors.Is(err, layout.ErrTargetMismatch) {
		t.Fatalf("Extract = %v, want target mismatch", err)
	}
}

func TestExtractIsCached(t *testing.T) {
	f := newFixture()
	x := binding.NewExtractor(layout.TargetVulkan)
	l := mustLayout(t, layout.TargetVulkan, f.g, f.material(), layout.RulesDefault)
	if mustExtract(t, x, l) != mustExtract(t, x, l) {
		t.Fatalf("second extraction must come from the cache")
	}
}

func TestBindingTypes(t *testing.T) {
	cases := []struct {
		res  entity.ResourceInfo
		want binding.BindingType
	}{
		{entity.ResourceInfo{Shape: entity.ResTexture2D, Access: entity.AccessRead}, binding.TypeTexture},
		{entity.ResourceInfo{Shape: entity.ResTexture2D, Access: entity.AccessReadWrite}, binding.TypeMutableTexture},
		{entity.ResourceInfo{Shape: entity.ResStructuredBuffer, Access: entity.AccessReadWrite}, binding.TypeMutableRawBuffer},
		{entity.ResourceInfo{Shape: entity.ResTypedBuffer, Access: entity.AccessRead}, binding.TypeTypedBuffer},
		{entity.ResourceInfo{Shape: entity.ResSampler, Access: entity.AccessRead}, binding.TypeSampler},
		{entity.ResourceInfo{Shape: entity.ResAccelerationStructure, Access: entity.AccessRead}, binding.TypeRayTracingAccelerationStructure},
		{entity.ResourceInfo{Shape: entity.ResSubpassInput, Access: entity.AccessRead}, binding.TypeInputRenderTarget},
	}
	for _, tc := range cases {
		if got := binding.ResourceType(tc.res); got != tc.want {
			t.Fatalf("ResourceType(%v) = %s, want %s", tc.res, got, tc.want)
		}
	}

	f := newFixture()
	pb := f.g.ParameterGroup(entity.GroupParameterBlock, f.material())
	if got := binding.GroupType(layout.TargetD3D11, mustLayout(t, layout.TargetD3D11, f.g, pb, layout.RulesDefault)); got != binding.TypeConstantBuffer {
		t.Fatalf("d3d11 parameter block = %s, want constant_buffer", got)
	}
	if got := binding.GroupType(layout.TargetD3D12, mustLayout(t, layout.TargetD3D12, f.g, pb, layout.RulesDefault)); got != binding.TypeParameterBlock {
		t.Fatalf("d3d12 parameter block = %s", got)
	}

	var bt binding.BindingType
	if err := bt.UnmarshalText([]byte("mutable_texture")); err != nil || bt != binding.TypeMutableTexture {
		t.Fatalf("UnmarshalText = %s, %v", bt, err)
	}
	if err := bt.UnmarshalText([]byte("framebuffer")); err == nil {
		t.Fatalf("unknown binding type accepted")
	}
}

func TestCursorWritesThroughConstantBuffer(t *testing.T) {
	f := newFixture()
	g := f.g
	g.AddGlobalParam(f.mod, "gMaterial", g.ParameterGroup(entity.GroupConstantBuffer, f.material()),
		entity.Binding(entity.RegisterAny, 10, 0))

	pl := mustProgram(t, layout.TargetVulkan, f)
	x := binding.NewExtractor(layout.TargetVulkan)
	c := x.Cursor(mustParam(t, pl, "gMaterial"))

	albedo := c.Field("albedo")
	w, err := albedo.Write()
	if err != nil {
		t.Fatalf("Write(albedo): %v", err)
	}
	if w.Type != binding.TypeTexture || w.Set != 0 || w.Binding != 11 {
		t.Fatalf("albedo write = %+v, want texture set 0 binding 11", w)
	}
	if got := albedo.BindingRangeIndex(); got != 1 {
		t.Fatalf("albedo range = %d, want 1 after the implicit buffer", got)
	}

	w, err = c.Field("color").Write()
	if err != nil {
		t.Fatalf("Write(color): %v", err)
	}
	if !w.Uniform || w.ByteOffset != 0 || w.ByteSize != 16 {
		t.Fatalf("color write = %+v", w)
	}

	w, err = c.Write()
	if err != nil {
		t.Fatalf("Write(gMaterial): %v", err)
	}
	if w.Type != binding.TypeConstantBuffer || w.Binding != 10 {
		t.Fatalf("buffer write = %+v, want constant buffer at 10", w)
	}

	if err := c.Field("roughness").Err(); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("missing field: %v", err)
	}
}

func TestCursorLinearisesArrayIndex(t *testing.T) {
	f := newFixture()
	g := f.g
	g.AddGlobalParam(f.mod, "gGrid", g.Array(g.Array(f.tex, 3), 2))

	pl := mustProgram(t, layout.TargetD3D11, f)
	c := binding.NewExtractor(layout.TargetD3D11).Cursor(mustParam(t, pl, "gGrid")).Element(1).Element(2)
	if got := c.ArrayIndex(); got != 5 {
		t.Fatalf("ArrayIndex = %d, want 5", got)
	}
	w, err := c.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Binding != 0 || w.ArrayElement != 5 {
		t.Fatalf("write = %+v, want t0 element 5", w)
	}
	if got := c.Location().Offset(layout.KindD3DShaderResource); got != 5 {
		t.Fatalf("register = t%d, want t5", got)
	}
	if err := c.Element(0).Err(); err == nil {
		t.Fatalf("indexing a texture must fail")
	}
	if err := binding.NewExtractor(layout.TargetD3D11).Cursor(mustParam(t, pl, "gGrid")).Element(2).Err(); err == nil {
		t.Fatalf("out of range index accepted")
	}
}

// struct Pair { Texture2D a; Texture2D b; }
func (f fixture) pair() entity.ID {
	p := f.g.AddStruct(f.mod, "Pair")
	f.g.AddField(p, "a", f.tex)
	f.g.AddField(p, "b", f.tex)
	return p
}

func descriptorOffsets(in *binding.Info) [][2]uint64 {
	var out [][2]uint64
	for _, set := range in.DescriptorSets {
		for _, r := range set.Ranges {
			out = append(out, [2]uint64{r.IndexOffset, r.DescriptorCount})
		}
	}
	return out
}

func TestArrayOfResourceStructsHasDisjointRanges(t *testing.T) {
	f := newFixture()
	g := f.g
	outer := g.AddStruct(f.mod, "Outer")
	g.AddField(outer, "arr", g.Array(f.pair(), 3))
	g.AddGlobalParam(f.mod, "gOuter", outer)

	x := binding.NewExtractor(layout.TargetD3D11)
	in := mustExtract(t, x, mustLayout(t, layout.TargetD3D11, g, outer, layout.RulesConstantBuffer))
	if len(in.BindingRanges) != 2 || in.BindingRanges[0].Count != 3 || in.BindingRanges[1].Count != 3 {
		t.Fatalf("ranges = %+v, want two ranges of 3", in.BindingRanges)
	}
	if got := descriptorOffsets(in); len(got) != 2 || got[0] != [2]uint64{0, 3} || got[1] != [2]uint64{3, 3} {
		t.Fatalf("descriptor ranges = %v, want t0 x3 and t3 x3", got)
	}

	pl := mustProgram(t, layout.TargetD3D11, f)
	elem := x.Cursor(mustParam(t, pl, "gOuter")).Field("arr").Element(1)
	for _, tc := range []struct {
		field   string
		binding uint64
		slot    uint64
	}{
		{"a", 0, 1},
		{"b", 3, 4},
	} {
		c := elem.Field(tc.field)
		w, err := c.Write()
		if err != nil {
			t.Fatalf("Write(arr[1].%s): %v", tc.field, err)
		}
		if w.Binding != tc.binding || w.ArrayElement != 1 {
			t.Fatalf("arr[1].%s write = %+v, want t%d element 1", tc.field, w, tc.binding)
		}
		if got := c.Location().Offset(layout.KindD3DShaderResource); got != tc.slot {
			t.Fatalf("arr[1].%s register = t%d, want t%d", tc.field, got, tc.slot)
		}
	}
}

func TestArrayOfConstantBuffersHasDisjointRanges(t *testing.T) {
	f := newFixture()
	g := f.g
	holder := g.AddStruct(f.mod, "Holder")
	g.AddField(holder, "cbs", g.Array(g.ParameterGroup(entity.GroupConstantBuffer, f.material()), 4))
	g.AddGlobalParam(f.mod, "gHolder", holder)

	x := binding.NewExtractor(layout.TargetVulkan)
	in := mustExtract(t, x, mustLayout(t, layout.TargetVulkan, g, holder, layout.RulesDefault))
	if len(in.BindingRanges) != 1 || in.BindingRanges[0].Type != binding.TypeConstantBuffer || in.BindingRanges[0].Count != 4 {
		t.Fatalf("ranges = %+v, want one constant buffer range of 4", in.BindingRanges)
	}
	if got := descriptorOffsets(in); len(got) != 2 || got[0] != [2]uint64{0, 4} || got[1] != [2]uint64{4, 4} {
		t.Fatalf("descriptor ranges = %v, want buffers 0 x4 and textures 4 x4", got)
	}

	pl := mustProgram(t, layout.TargetVulkan, f)
	cb := x.Cursor(mustParam(t, pl, "gHolder")).Field("cbs").Element(2)
	w, err := cb.Write()
	if err != nil {
		t.Fatalf("Write(cbs[2]): %v", err)
	}
	if w.Type != binding.TypeConstantBuffer || w.Binding != 0 || w.ArrayElement != 2 {
		t.Fatalf("cbs[2] write = %+v, want binding 0 element 2", w)
	}
	albedo := cb.Field("albedo")
	w, err = albedo.Write()
	if err != nil {
		t.Fatalf("Write(cbs[2].albedo): %v", err)
	}
	if w.Type != binding.TypeTexture || w.Binding != 4 || w.ArrayElement != 2 {
		t.Fatalf("cbs[2].albedo write = %+v, want binding 4 element 2", w)
	}
	if got := albedo.Location().Offset(layout.KindVKBinding); got != 6 {
		t.Fatalf("cbs[2].albedo slot = %d, want 6", got)
	}
}

func TestUnsizedArrayOfResourceStructsIsUnsupported(t *testing.T) {
	f := newFixture()
	f.g.AddGlobalParam(f.mod, "gPairs", f.g.UnsizedArray(f.pair()))
	prog, err := link.Link(context.Background(), f.g, link.Module(f.mod))
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	_, err = layout.NewEngine(layout.TargetD3D12, f.g).LayoutProgram(context.Background(), prog)
	if !errors.Is(err, layout.ErrUnsupportedConstruct) {
		t.Fatalf("LayoutProgram = %v, want ErrUnsupportedConstruct", err)
	}
}
