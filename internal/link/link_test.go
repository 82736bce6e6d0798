package link

import (
	"context"
	"errors"
	"slices"
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
)

func linkOK(t *testing.T, g *entity.Graph, c Component) *Program {
	t.Helper()
	p, err := Link(context.Background(), g, c)
	if err != nil {
		if bag, ok := diag.BagOf(err); ok {
			t.Fatalf("Link: %v\n%s", err, bag.Summary())
		}
		t.Fatalf("Link: %v", err)
	}
	return p
}

func TestComposeIsAssociative(t *testing.T) {
	g := entity.NewGraph(nil)
	float := g.Scalar(entity.ScalarFloat)
	a := g.AddModule("a")
	g.AddStruct(a, "A")
	b := g.AddModule("b", "a")
	g.AddGlobalParam(b, "gB", float)
	c := g.AddModule("c")
	fn := g.AddFunc(c, "main", g.Vector(float, 4))
	ep := g.AddEntryPoint(c, fn, entity.StageFragment)

	ab, err := Compose(g, Module(a), Module(b))
	if err != nil {
		t.Fatal(err)
	}
	left, err := Compose(g, ab, Composite(Module(c), EntryPoint(ep)))
	if err != nil {
		t.Fatal(err)
	}
	bc, err := Compose(g, Module(b), Module(c), EntryPoint(ep))
	if err != nil {
		t.Fatal(err)
	}
	right, err := Compose(g, Module(a), bc)
	if err != nil {
		t.Fatal(err)
	}
	pl := linkOK(t, g, left)
	pr := linkOK(t, g, right)
	if !slices.Equal(pl.LinkedEntities(), pr.LinkedEntities()) {
		t.Fatalf("linked sets differ: %v vs %v", pl.LinkedEntities(), pr.LinkedEntities())
	}
	if !slices.Equal(pl.EntryPoints(), []entity.ID{ep}) {
		t.Fatalf("EntryPoints = %v", pl.EntryPoints())
	}
}

func TestComposeDropsDuplicateLeaves(t *testing.T) {
	g := entity.NewGraph(nil)
	m := g.AddModule("m")
	c, err := Compose(g, Module(m), Composite(Module(m)), Module(m))
	if err != nil {
		t.Fatal(err)
	}
	if leaves := c.Leaves(); len(leaves) != 1 {
		t.Fatalf("leaves = %v", leaves)
	}
}

func TestComposeDuplicateDefinition(t *testing.T) {
	g := entity.NewGraph(nil)
	float := g.Scalar(entity.ScalarFloat)
	integer := g.Scalar(entity.ScalarInt)

	m1 := g.AddModule("common")
	l1 := g.AddStruct(m1, "Light")
	g.AddField(l1, "intensity", float)
	m2 := g.AddModule("common")
	l2 := g.AddStruct(m2, "Light")
	g.AddField(l2, "intensity", integer)
	m3 := g.AddModule("common")
	l3 := g.AddStruct(m3, "Light")
	g.AddField(l3, "intensity", float)

	if _, err := Compose(g, Module(m1), Module(m3)); err != nil {
		t.Fatalf("compatible definitions should compose: %v", err)
	}
	_, err := Compose(g, Module(m1), Module(m2))
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("expected ErrDuplicateDefinition, got %v", err)
	}
	bag, ok := diag.BagOf(err)
	if !ok || !bag.HasCode(diag.LnkDuplicateDefinition) {
		t.Fatalf("expected %s in bag", diag.LnkDuplicateDefinition.ID())
	}
	var le *Error
	if !errors.As(err, &le) || le.Op != "compose" {
		t.Fatalf("expected *link.Error from compose, got %T", err)
	}
}

func TestFindEntryPoint(t *testing.T) {
	g := entity.NewGraph(nil)
	float4 := g.Vector(g.Scalar(entity.ScalarFloat), 4)
	m := g.AddModule("shading")
	vs := g.AddFunc(m, "vsMain", float4)
	fs := g.AddFunc(m, "fsMain", float4)
	vsEP := g.AddEntryPoint(m, vs, entity.StageVertex)
	g.AddEntryPoint(m, fs, entity.StageFragment)

	p := linkOK(t, g, Composite(Module(m), EntryPoint(vsEP)))
	if got := p.EntryPoints(); !slices.Equal(got, []entity.ID{vsEP}) {
		t.Fatalf("EntryPoints = %v, want only vsMain", got)
	}
	got, err := p.FindEntryPoint("vsMain")
	if err != nil || got != vsEP {
		t.Fatalf("FindEntryPoint = %d, %v", got, err)
	}
	if _, err := p.FindEntryPoint("fsMain"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("unlinked entry point must not be found, got %v", err)
	}
	if _, err := p.FindEntryPointForStage("vsMain", entity.StageFragment); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong stage, got %v", err)
	}
}

func TestMultipleEntryPointConflict(t *testing.T) {
	g := entity.NewGraph(nil)
	a := g.AddModule("a")
	b := g.AddModule("b")
	epA := g.AddEntryPoint(a, g.AddFunc(a, "main", entity.NoID), entity.StageCompute)
	epB := g.AddEntryPoint(b, g.AddFunc(b, "main", entity.NoID), entity.StageCompute)

	_, err := Link(context.Background(), g, Composite(Module(a), Module(b), EntryPoint(epA), EntryPoint(epB)))
	if !errors.Is(err, ErrMultipleEntryPointConflict) {
		t.Fatalf("expected ErrMultipleEntryPointConflict, got %v", err)
	}
}

func TestLinkUnresolvedReferences(t *testing.T) {
	g := entity.NewGraph(nil)
	float := g.Scalar(entity.ScalarFloat)
	shared := g.AddModule("shared")
	light := g.AddStruct(shared, "Light")
	g.AddField(light, "intensity", float)
	iface := g.AddInterface(shared, "ILight")

	user := g.AddModule("user", "shared")
	g.AddGlobalParam(user, "gLight", g.ParameterGroup(entity.GroupConstantBuffer, light))
	fn := g.AddFunc(user, "main", entity.NoID)
	ep := g.AddEntryPoint(user, fn, entity.StageCompute)

	_, err := Link(context.Background(), g, Composite(Module(user), EntryPoint(ep)))
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference, got %v", err)
	}
	bag, _ := diag.BagOf(err)
	if bag.Len() < 2 {
		t.Fatalf("expected import and type reference problems, got:\n%s", bag.Summary())
	}

	// entry point whose module is not linked
	_, err = Link(context.Background(), g, Composite(Module(shared), EntryPoint(ep)))
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference for foreign entry point, got %v", err)
	}

	// conformance of a type that does not conform
	cf := g.AddConformance(shared, light, iface)
	_, err = Link(context.Background(), g, Composite(Module(shared), Conformance(cf)))
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference for bad conformance, got %v", err)
	}
	g.DeclareConformance(light, iface)
	p := linkOK(t, g, Composite(Module(shared), Conformance(cf)))
	if !slices.Equal(p.Conformances(), []entity.ID{cf}) {
		t.Fatalf("Conformances = %v", p.Conformances())
	}
}

func TestLinkValidatesEntryPoints(t *testing.T) {
	g := entity.NewGraph(nil)
	float := g.Scalar(entity.ScalarFloat)
	m := g.AddModule("rt")
	payload := g.AddStruct(m, "Payload")
	g.AddField(payload, "color", g.Vector(float, 3))

	cs := g.AddEntryPoint(m, g.AddFunc(m, "cs", float), entity.StageCompute)
	_, err := Link(context.Background(), g, Composite(Module(m), EntryPoint(cs)))
	if !errors.Is(err, ErrInvalidEntryPoint) {
		t.Fatalf("compute returning a value: expected ErrInvalidEntryPoint, got %v", err)
	}

	missFn := g.AddFunc(m, "miss", entity.NoID)
	g.AddParam(missFn, "p", payload, entity.Mod(entity.ModIn))
	miss := g.AddEntryPoint(m, missFn, entity.StageMiss)
	_, err = Link(context.Background(), g, Composite(Module(m), EntryPoint(miss)))
	if !errors.Is(err, ErrInvalidEntryPoint) {
		t.Fatalf("miss with in payload: expected ErrInvalidEntryPoint, got %v", err)
	}

	hitFn := g.AddFunc(m, "hit", entity.NoID)
	g.AddParam(hitFn, "p", payload, entity.Mod(entity.ModInOut))
	g.AddParam(hitFn, "attrs", g.Vector(float, 2), entity.Mod(entity.ModIn))
	hit := g.AddEntryPoint(m, hitFn, entity.StageClosestHit)
	linkOK(t, g, Composite(Module(m), EntryPoint(hit)))
}

func TestProgramFindEntity(t *testing.T) {
	g := entity.NewGraph(nil)
	float := g.Scalar(entity.ScalarFloat)
	m := g.AddModule("lighting")
	gen := g.AddGeneric(m, "Outer")
	tp := g.AddTypeParam(gen, "T")
	outer := g.AddStruct(gen, "Outer")
	inner := g.AddStruct(outer, "Inner")
	g.AddField(inner, "x", tp)
	g.AddGlobalParam(m, "gScale", float)
	g.AddGlobalParam(m, "gScratch", float, entity.Mod(entity.ModStatic))

	other := g.AddModule("other")
	g.AddStruct(other, "Outer")

	p := linkOK(t, g, Composite(Module(m), Module(other)))
	id, err := p.FindEntity("lighting.Outer<float>.Inner")
	if err != nil {
		t.Fatal(err)
	}
	if fqn := g.FullyQualifiedName(id); fqn != "lighting.Outer<float>.Inner" {
		t.Fatalf("FQN = %q", fqn)
	}
	x, _ := g.FindChild(id, "x")
	if typ, _ := g.TypeOf(x); typ != float {
		t.Fatalf("x type = %s", g.Name(typ))
	}
	if _, err := p.FindEntity("Outer"); !errors.Is(err, entity.ErrAmbiguousName) {
		t.Fatalf("expected ErrAmbiguousName, got %v", err)
	}
	if _, err := p.FindEntity("Nope"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	globals := p.Globals()
	if len(globals) != 1 || g.Name(globals[0]) != "gScale" {
		t.Fatalf("Globals = %v", globals)
	}
}
