package dag

import (
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/project"
	"shaderrefl/internal/source"
)

func idsToNames(idx ModuleIndex, ids []ModuleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}

func batchesToNames(idx ModuleIndex, batches [][]ModuleID) [][]string {
	out := make([][]string, len(batches))
	for i, batch := range batches {
		out[i] = idsToNames(idx, batch)
	}
	return out
}

func TestBuildIndexIncludesImports(t *testing.T) {
	metas := []project.ModuleMeta{
		{
			Name: "shaders/main",
			Imports: []project.ImportMeta{
				{Name: "common/math"},
				{Name: "common/util"},
			},
		},
		{Name: "common/util"},
	}

	idx := BuildIndex(metas)

	if len(idx.IDToName) != 3 {
		t.Fatalf("unexpected module count: %d", len(idx.IDToName))
	}

	wantNames := []string{"shaders/main", "common/math", "common/util"}
	for i, want := range wantNames {
		if got := idx.IDToName[i]; got != want {
			t.Fatalf("idx.IDToName[%d] = %q, want %q", i, got, want)
		}
		if id, ok := idx.NameToID[want]; !ok || int(id) != i {
			t.Fatalf("idx.NameToID[%q] = %v, want %d", want, id, i)
		}
	}
}

func TestBuildGraphReportsMissingModules(t *testing.T) {
	appSpan := source.Span{File: 1, Start: 0, End: 10}
	coreSpan := source.Span{File: 2, Start: 0, End: 8}
	utilImportSpan := source.Span{File: 1, Start: 5, End: 8}

	appMeta := project.ModuleMeta{
		Name: "app",
		Span: appSpan,
		Imports: []project.ImportMeta{
			{Name: "core", Span: source.Span{File: 1, Start: 1, End: 4}},
			{Name: "util", Span: utilImportSpan},
		},
	}
	coreMeta := project.ModuleMeta{
		Name: "core",
		Span: coreSpan,
		Imports: []project.ImportMeta{
			{Name: "util", Span: source.Span{File: 2, Start: 2, End: 5}},
		},
	}

	bagApp := diag.NewBag(10)
	bagCore := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: appMeta, Reporter: &diag.BagReporter{Bag: bagApp}},
		{Meta: coreMeta, Reporter: &diag.BagReporter{Bag: bagCore}},
	}
	idx := BuildIndex([]project.ModuleMeta{appMeta, coreMeta})
	graph, _ := BuildGraph(idx, nodes)

	appID := idx.NameToID["app"]
	coreID := idx.NameToID["core"]
	utilID := idx.NameToID["util"]

	appDeps := graph.Edges[int(appID)]
	if len(appDeps) != 2 || appDeps[0] != coreID || appDeps[1] != utilID {
		t.Fatalf("app deps = %v, want [%v %v]", appDeps, coreID, utilID)
	}

	coreDeps := graph.Edges[int(coreID)]
	if len(coreDeps) != 1 || coreDeps[0] != utilID {
		t.Fatalf("core deps = %v, want [%v]", coreDeps, utilID)
	}

	if !graph.Present[int(appID)] || !graph.Present[int(coreID)] || graph.Present[int(utilID)] {
		t.Fatalf("unexpected Present flags: %v", graph.Present)
	}

	if bagApp.Len() != 1 {
		t.Fatalf("app diagnostics = %d, want 1", bagApp.Len())
	}
	if bagApp.Items()[0].Code != diag.DscMissingModule {
		t.Fatalf("app diag code = %v, want %v", bagApp.Items()[0].Code, diag.DscMissingModule)
	}

	if bagCore.Len() != 1 {
		t.Fatalf("core diagnostics = %d, want 1", bagCore.Len())
	}
	if bagCore.Items()[0].Code != diag.DscMissingModule {
		t.Fatalf("core diag code = %v, want %v", bagCore.Items()[0].Code, diag.DscMissingModule)
	}
}

func TestBuildGraphDuplicateModules(t *testing.T) {
	spanA := source.Span{File: 1, Start: 0, End: 5}
	spanB := source.Span{File: 2, Start: 0, End: 5}

	metaA := project.ModuleMeta{Name: "post/bloom", Span: spanA}
	metaB := project.ModuleMeta{Name: "post/bloom", Span: spanB}

	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: metaA, Reporter: &diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: &diag.BagReporter{Bag: bagB}},
	}

	idx := BuildIndex([]project.ModuleMeta{metaA, metaB})
	graph, slots := BuildGraph(idx, nodes)

	if !graph.Present[idx.NameToID["post/bloom"]] {
		t.Fatalf("expected module to be present")
	}

	if bagA.Len() != 0 {
		t.Fatalf("unexpected diagnostics for first module: %v", bagA.Items())
	}
	if bagB.Len() != 1 {
		t.Fatalf("expected one diagnostic for duplicate, got %d", bagB.Len())
	}
	if bagB.Items()[0].Code != diag.DscDuplicateDecl {
		t.Fatalf("duplicate code = %v, want %v", bagB.Items()[0].Code, diag.DscDuplicateDecl)
	}

	// ensure slots keep original metadata
	slot := slots[int(idx.NameToID["post/bloom"])]
	if !slot.Present || slot.Meta.Span != spanA {
		t.Fatalf("expected slot to hold first module metadata")
	}
}

func TestToposortKahnBatches(t *testing.T) {
	metas := []project.ModuleMeta{
		{Name: "b", Imports: []project.ImportMeta{{Name: "c"}}},
		{Name: "a"},
		{Name: "c"},
	}

	nodes := []ModuleNode{
		{Meta: metas[0]},
		{Meta: metas[1]},
		{Meta: metas[2]},
	}

	idx := BuildIndex(metas)
	graph, _ := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}

	orderNames := idsToNames(idx, topo.Order)
	if len(orderNames) != 3 {
		t.Fatalf("order len = %d, want 3", len(orderNames))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if orderNames[i] != want {
			t.Fatalf("order[%d] = %q, want %q", i, orderNames[i], want)
		}
	}

	batches := batchesToNames(idx, topo.Batches)
	wantBatches := [][]string{{"a", "b"}, {"c"}}
	if len(batches) != len(wantBatches) {
		t.Fatalf("batches len = %d, want %d", len(batches), len(wantBatches))
	}
	for i := range wantBatches {
		if len(batches[i]) != len(wantBatches[i]) {
			t.Fatalf("batch[%d] len = %d, want %d", i, len(batches[i]), len(wantBatches[i]))
		}
		for j, want := range wantBatches[i] {
			if batches[i][j] != want {
				t.Fatalf("batch[%d][%d] = %q, want %q", i, j, batches[i][j], want)
			}
		}
	}
}

func TestReportCycles(t *testing.T) {
	spanA := source.Span{File: 1, Start: 0, End: 4}
	spanB := source.Span{File: 2, Start: 0, End: 4}

	metaA := project.ModuleMeta{
		Name: "a",
		Span: spanA,
		Imports: []project.ImportMeta{
			{Name: "b", Span: spanA},
		},
	}
	metaB := project.ModuleMeta{
		Name: "b",
		Span: spanB,
		Imports: []project.ImportMeta{
			{Name: "a", Span: spanB},
		},
	}

	bagA := diag.NewBag(10)
	bagB := diag.NewBag(10)

	nodes := []ModuleNode{
		{Meta: metaA, Reporter: &diag.BagReporter{Bag: bagA}},
		{Meta: metaB, Reporter: &diag.BagReporter{Bag: bagB}},
	}

	idx := BuildIndex([]project.ModuleMeta{metaA, metaB})
	graph, slots := BuildGraph(idx, nodes)

	topo := ToposortKahn(graph)
	if !topo.Cyclic || len(topo.Cycles) != 2 {
		t.Fatalf("expected cycle with two modules, got %+v", topo)
	}

	ReportCycles(idx, slots, topo)

	if bagA.Len() != 1 || bagA.Items()[0].Code != diag.DscImportCycle {
		t.Fatalf("module a diagnostics = %v", bagA.Items())
	}
	if bagB.Len() != 1 || bagB.Items()[0].Code != diag.DscImportCycle {
		t.Fatalf("module b diagnostics = %v", bagB.Items())
	}
}

func TestBuildOrderPutsImportsFirst(t *testing.T) {
	metas := []project.ModuleMeta{
		{Name: "scene", Imports: []project.ImportMeta{{Name: "lighting"}, {Name: "common"}}},
		{Name: "lighting", Imports: []project.ImportMeta{{Name: "common"}}},
		{Name: "common"},
	}
	nodes := make([]ModuleNode, len(metas))
	for i, m := range metas {
		nodes[i] = ModuleNode{Meta: m}
	}
	idx := BuildIndex(metas)
	graph, _ := BuildGraph(idx, nodes)
	got := idsToNames(idx, ToposortKahn(graph).BuildOrder())
	want := []string{"common", "lighting", "scene"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("build order = %v, want %v", got, want)
		}
	}
}

func TestReportBrokenDeps(t *testing.T) {
	first := diag.NewError(diag.DscBadTypeExpr, source.Span{File: 2, Start: 3, End: 7}, "bad type")
	bag := diag.NewBag(10)
	metas := []project.ModuleMeta{
		{Name: "scene", Imports: []project.ImportMeta{{Name: "common"}, {Name: "common"}}},
		{Name: "common"},
	}
	nodes := []ModuleNode{
		{Meta: metas[0], Reporter: diag.BagReporter{Bag: bag}},
		{Meta: metas[1], Broken: true, FirstErr: &first},
	}
	idx := BuildIndex(metas)
	_, slots := BuildGraph(idx, nodes)
	ReportBrokenDeps(idx, slots)
	if bag.Len() != 1 || bag.Items()[0].Code != diag.DscDependency {
		t.Fatalf("diagnostics = %v, want one DSC2012", bag.Items())
	}
	if notes := bag.Items()[0].Notes; len(notes) != 1 || notes[0].Span != first.Primary {
		t.Fatalf("notes = %v", notes)
	}
}
