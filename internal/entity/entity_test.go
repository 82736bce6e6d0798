package entity

import (
	"errors"
	"testing"
)

type fixture struct {
	g       *Graph
	mod     ID
	float   ID
	float3  ID
	integer ID
	tex     ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	g := NewGraph(nil)
	f := fixture{g: g, mod: g.AddModule("lighting")}
	f.float = g.Scalar(ScalarFloat)
	f.float3 = g.Vector(f.float, 3)
	f.integer = g.Scalar(ScalarInt)
	f.tex = g.Resource(ResTexture2D, AccessRead, g.Vector(f.float, 4))
	return f
}

func TestFindChildAndNames(t *testing.T) {
	f := newFixture(t)
	g := f.g
	light := g.AddStruct(f.mod, "Light")
	intensity := g.AddField(light, "intensity", f.float3)
	g.AddField(light, "shadowMap", f.tex)

	got, err := g.FindChild(light, "intensity")
	if err != nil || got != intensity {
		t.Fatalf("FindChild(intensity) = %d, %v", got, err)
	}
	if _, err := g.FindChild(light, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if name := g.FullyQualifiedName(intensity); name != "lighting.Light.intensity" {
		t.Fatalf("FQN = %q", name)
	}
	if name := g.Name(f.tex); name != "Texture2D<float4>" {
		t.Fatalf("resource name = %q", name)
	}
	if g.ModuleOf(intensity) != f.mod {
		t.Fatalf("ModuleOf = %d, want %d", g.ModuleOf(intensity), f.mod)
	}
}

func TestFindChildAmbiguous(t *testing.T) {
	f := newFixture(t)
	s := f.g.AddStruct(f.mod, "S")
	f.g.AddField(s, "x", f.float)
	f.g.AddField(s, "x", f.integer)
	if _, err := f.g.FindChild(s, "x"); !errors.Is(err, ErrAmbiguousName) {
		t.Fatalf("expected ErrAmbiguousName, got %v", err)
	}
}

func TestFindChildNormalizesNames(t *testing.T) {
	f := newFixture(t)
	s := f.g.AddStruct(f.mod, "S")
	field := f.g.AddField(s, "caf\u00e9", f.float)
	got, err := f.g.FindChild(s, "cafe\u0301")
	if err != nil || got != field {
		t.Fatalf("decomposed lookup = %d, %v", got, err)
	}
}

func TestStructuralTypesAreInterned(t *testing.T) {
	f := newFixture(t)
	if f.g.Vector(f.float, 3) != f.float3 {
		t.Fatalf("vector not interned")
	}
	a := f.g.Array(f.float3, 4)
	if f.g.Array(f.float3, 4) != a || f.g.Array(f.float3, 5) == a {
		t.Fatalf("array interning broken")
	}
	if f.g.IntValue(4) != f.g.IntValue(4) {
		t.Fatalf("values not interned")
	}
	if n := f.g.Name(f.g.Matrix(f.float, 4, 4)); n != "float4x4" {
		t.Fatalf("matrix name = %q", n)
	}
	if n := f.g.Name(f.g.UnsizedArray(f.tex)); n != "Texture2D<float4>[]" {
		t.Fatalf("unsized name = %q", n)
	}
}

// Outer<T> { T value; struct Inner { T x; } }
func buildOuter(t *testing.T, f fixture) (gen, inner ID) {
	t.Helper()
	g := f.g
	gen = g.AddGeneric(f.mod, "Outer")
	tp := g.AddTypeParam(gen, "T")
	outer := g.AddStruct(gen, "Outer")
	g.AddField(outer, "value", tp)
	inner = g.AddStruct(outer, "Inner")
	g.AddField(inner, "x", tp)
	return gen, inner
}

func TestSpecializeSubstitutesChildren(t *testing.T) {
	f := newFixture(t)
	g := f.g
	gen, innerDecl := buildOuter(t, f)

	spec, err := g.Specialize(gen, []ID{f.integer})
	if err != nil {
		t.Fatalf("Specialize: %v", err)
	}
	if name := g.Name(spec); name != "Outer<int>" {
		t.Fatalf("Name = %q", name)
	}
	value, err := g.FindChild(spec, "value")
	if err != nil {
		t.Fatal(err)
	}
	if typ, _ := g.TypeOf(value); typ != f.integer {
		t.Fatalf("value type = %s, want int", g.Name(typ))
	}
	inner, err := g.FindChild(spec, "Inner")
	if err != nil {
		t.Fatal(err)
	}
	x, err := g.FindChild(inner, "x")
	if err != nil {
		t.Fatal(err)
	}
	if typ, _ := g.TypeOf(x); typ != f.integer {
		t.Fatalf("Outer<int>.Inner.x type = %s, want int", g.Name(typ))
	}
	if fqn := g.FullyQualifiedName(inner); fqn != "lighting.Outer<int>.Inner" {
		t.Fatalf("FQN = %q", fqn)
	}
	if g.UnspecializedInner(inner) != innerDecl {
		t.Fatalf("UnspecializedInner(inner) = %d, want %d", g.UnspecializedInner(inner), innerDecl)
	}
	if got, _ := g.SpecializedGeneric(spec); got != gen {
		t.Fatalf("SpecializedGeneric = %d", got)
	}
}

func TestSpecializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	gen, _ := buildOuter(t, f)
	a, err := f.g.Specialize(gen, []ID{f.float})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := f.g.Specialize(gen, []ID{f.float})
	c, _ := f.g.Specialize(gen, []ID{f.integer})
	if a != b {
		t.Fatalf("equal arguments gave %d and %d", a, b)
	}
	if a == c {
		t.Fatalf("different arguments gave the same entity")
	}
	if f.g.UnspecializedInner(a) != f.g.UnspecializedInner(c) || f.g.UnspecializedInner(gen) != f.g.UnspecializedInner(a) {
		t.Fatalf("specializations must trace to the same declaration")
	}
}

func TestSpecializeArgumentMismatch(t *testing.T) {
	f := newFixture(t)
	g := f.g
	gen := g.AddGeneric(f.mod, "Buf")
	g.AddTypeParam(gen, "T")
	g.AddValueParam(gen, "N", f.integer)
	g.AddStruct(gen, "Buf")

	cases := []struct {
		name string
		args []ID
	}{
		{"arity", []ID{f.float}},
		{"value for type", []ID{g.IntValue(1), g.IntValue(4)}},
		{"type for value", []ID{f.float, f.float}},
		{"wrong value type", []ID{f.float, g.FloatValue(4)}},
	}
	for _, tc := range cases {
		if _, err := g.Specialize(gen, tc.args); !errors.Is(err, ErrArgumentMismatch) {
			t.Fatalf("%s: expected ErrArgumentMismatch, got %v", tc.name, err)
		}
	}
	if _, err := g.Specialize(gen, []ID{f.float, g.IntValue(4)}); err != nil {
		t.Fatalf("valid arguments: %v", err)
	}
}

func TestSpecializeConstraintViolation(t *testing.T) {
	f := newFixture(t)
	g := f.g
	iLight := g.AddInterface(f.mod, "ILight")
	iShadow := g.AddInterface(f.mod, "IShadow")
	point := g.AddStruct(f.mod, "PointLight")
	g.DeclareConformance(point, iLight)
	spot := g.AddStruct(f.mod, "SpotLight")
	g.DeclareConformance(spot, iLight)
	g.DeclareConformance(spot, iShadow)
	plain := g.AddStruct(f.mod, "Plain")

	gen := g.AddGeneric(f.mod, "Shade")
	tp := g.AddTypeParam(gen, "L")
	g.AddConstraint(gen, tp, g.Conjunction(iLight, iShadow))
	g.AddStruct(gen, "Shade")

	if _, err := g.Specialize(gen, []ID{plain}); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("plain: expected ErrConstraintViolation, got %v", err)
	}
	if _, err := g.Specialize(gen, []ID{point}); !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("point lacks IShadow: expected ErrConstraintViolation, got %v", err)
	}
	if _, err := g.Specialize(gen, []ID{spot}); err != nil {
		t.Fatalf("spot satisfies both: %v", err)
	}
}

func TestValueParameterArrayLength(t *testing.T) {
	f := newFixture(t)
	g := f.g
	gen := g.AddGeneric(f.mod, "Samples")
	n := g.AddValueParam(gen, "N", f.integer)
	s := g.AddStruct(gen, "Samples")
	g.AddField(s, "data", g.ArrayOfParam(f.float, n))

	spec, err := g.Specialize(gen, []ID{g.IntValue(4)})
	if err != nil {
		t.Fatal(err)
	}
	data, err := g.FindChild(spec, "data")
	if err != nil {
		t.Fatal(err)
	}
	typ, _ := g.TypeOf(data)
	if typ != g.Array(f.float, 4) {
		t.Fatalf("data type = %s, want float[4]", g.Name(typ))
	}
	if name := g.Name(spec); name != "Samples<4>" {
		t.Fatalf("Name = %q", name)
	}
}

func TestNestedGenericSeesOuterArguments(t *testing.T) {
	f := newFixture(t)
	g := f.g
	outerGen := g.AddGeneric(f.mod, "Outer")
	tp := g.AddTypeParam(outerGen, "T")
	outer := g.AddStruct(outerGen, "Outer")
	pairGen := g.AddGeneric(outer, "Pair")
	up := g.AddTypeParam(pairGen, "U")
	pair := g.AddStruct(pairGen, "Pair")
	g.AddField(pair, "first", tp)
	g.AddField(pair, "second", up)

	outerInt, err := g.Specialize(outerGen, []ID{f.integer})
	if err != nil {
		t.Fatal(err)
	}
	pairView, err := g.FindChild(outerInt, "Pair")
	if err != nil {
		t.Fatal(err)
	}
	pairSpec, err := g.Specialize(pairView, []ID{f.float})
	if err != nil {
		t.Fatal(err)
	}
	first, _ := g.FindChild(pairSpec, "first")
	second, _ := g.FindChild(pairSpec, "second")
	if typ, _ := g.TypeOf(first); typ != f.integer {
		t.Fatalf("first = %s, want int", g.Name(typ))
	}
	if typ, _ := g.TypeOf(second); typ != f.float {
		t.Fatalf("second = %s, want float", g.Name(typ))
	}
	if g.UnspecializedInner(pairSpec) != pair {
		t.Fatalf("UnspecializedInner through two layers = %d, want %d", g.UnspecializedInner(pairSpec), pair)
	}
	if fqn := g.FullyQualifiedName(pairSpec); fqn != "lighting.Outer<int>.Pair<float>" {
		t.Fatalf("FQN = %q", fqn)
	}
}

func TestCapabilityQueriesFailExplicitly(t *testing.T) {
	f := newFixture(t)
	if _, err := f.g.AsStruct(f.float); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("AsStruct(float) = %v", err)
	}
	if _, err := f.g.AsArray(f.tex); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("AsArray(texture) = %v", err)
	}
	if _, err := f.g.AsGeneric(f.mod); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("AsGeneric(module) = %v", err)
	}
	res, err := f.g.AsResource(f.tex)
	if err != nil || res.Shape != ResTexture2D {
		t.Fatalf("AsResource = %+v, %v", res, err)
	}
}

func TestModifiersAndAttributes(t *testing.T) {
	f := newFixture(t)
	g := f.g
	param := g.AddGlobalParam(f.mod, "gColor", f.float3, Mod(ModUniform), Binding(RegisterT, 3, 1))
	g.AddAttribute(param, "Range", g.FloatValue(0), g.FloatValue(1))

	m, ok := g.FindModifier(param, ModBinding)
	if !ok || m.Binding.Index != 3 || m.Binding.Space != 1 || m.Binding.Class != RegisterT {
		t.Fatalf("binding modifier = %+v, %v", m, ok)
	}
	if g.HasModifier(param, ModStatic) {
		t.Fatalf("unexpected static modifier")
	}
	attrs := g.UserAttributes(param)
	if len(attrs) != 1 || attrs[0].Name != "Range" || len(attrs[0].Args) != 2 {
		t.Fatalf("attributes = %+v", attrs)
	}
	if g.Name(attrs[0].Args[1]) != "1" {
		t.Fatalf("attribute arg = %q", g.Name(attrs[0].Args[1]))
	}
}

func TestArrayHelpers(t *testing.T) {
	f := newFixture(t)
	nested := f.g.Array(f.g.Array(f.tex, 3), 2)
	if n := f.g.TotalArrayElementCount(nested); n != 6 {
		t.Fatalf("TotalArrayElementCount = %d", n)
	}
	if f.g.UnwrapArray(nested) != f.tex {
		t.Fatalf("UnwrapArray did not reach the texture")
	}
	if n := f.g.TotalArrayElementCount(f.g.UnsizedArray(f.tex)); n != 0 {
		t.Fatalf("unsized total = %d", n)
	}
}

func TestEntryPointForStage(t *testing.T) {
	f := newFixture(t)
	g := f.g
	fn := g.AddFunc(f.mod, "main", NoID)
	ep, err := g.FindEntryPointForStage(f.mod, "main", StageCompute)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := g.FindEntryPointForStage(f.mod, "main", StageCompute)
	if ep != again {
		t.Fatalf("entry point declared twice")
	}
	info, _ := g.AsEntryPoint(ep)
	if info.Func != fn || info.Stage != StageCompute {
		t.Fatalf("entry point info = %+v", info)
	}
	if _, err := g.FindEntryPointForStage(f.mod, "missing", StageCompute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
