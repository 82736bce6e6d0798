package dag

import (
	"fmt"
	"slices"
	"strings"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/project"
	"shaderrefl/internal/source"
)

// Graph is the import graph of module descriptions: Edges[from] lists the
// modules from imports.
type Graph struct {
	Edges   [][]ModuleID // Edges[from] = []to
	Indeg   []int        // входящие степени для Kahn (учитывает только присутствующие модули)
	Present []bool       // признак, что описание модуля найдено (а не только импортируется)
}

type ModuleNode struct {
	Meta     project.ModuleMeta
	Reporter diag.Reporter
	Broken   bool
	FirstErr *diag.Diagnostic
}

type ModuleSlot struct {
	Meta     project.ModuleMeta
	Reporter diag.Reporter
	Present  bool
	Broken   bool
	FirstErr *diag.Diagnostic
}

func BuildGraph(idx ModuleIndex, nodes []ModuleNode) (Graph, []ModuleSlot) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]ModuleID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	slots := make([]ModuleSlot, nodeCount)
	for i, name := range idx.IDToName {
		slots[i].Meta.Name = name
	}

	for _, node := range nodes {
		meta := node.Meta
		if meta.Name == "" {
			continue
		}
		id, ok := idx.NameToID[meta.Name]
		if !ok {
			// не должно происходить, индекс строится на тех же метаданных
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			if node.Reporter != nil {
				b := diag.ReportError(node.Reporter, diag.DscDuplicateDecl, meta.Span,
					fmt.Sprintf("module %q is described twice", meta.Name)).WithSubject(meta.Path)
				if slot.Meta.Span != (source.Span{}) {
					b = b.WithNote(slot.Meta.Span, fmt.Sprintf("previous description of %q", meta.Name))
				}
				b.Emit()
			}
			continue
		}
		slot.Meta = meta
		slot.Reporter = node.Reporter
		slot.Present = true
		slot.Broken = node.Broken
		slot.FirstErr = node.FirstErr
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Imports) == 0 {
			continue
		}
		seen := make(map[ModuleID]struct{}, len(slot.Meta.Imports))
		for _, dep := range slot.Meta.Imports {
			if dep.Name == "" {
				continue
			}
			toID, ok := idx.NameToID[dep.Name]
			if !ok {
				slot.report(diag.DscMissingModule, dep.Span,
					fmt.Sprintf("module %q imports unknown module %q", slot.Meta.Name, dep.Name))
				continue
			}
			if ModuleID(from) == toID {
				slot.report(diag.DscImportCycle, dep.Span,
					fmt.Sprintf("module %q imports itself", slot.Meta.Name))
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}

			g.Edges[from] = append(g.Edges[from], toID)
			if g.Present[int(toID)] {
				g.Indeg[int(toID)]++
			} else {
				slot.report(diag.DscMissingModule, dep.Span,
					fmt.Sprintf("module %q imports missing module %q", slot.Meta.Name, idx.IDToName[int(toID)]))
			}
		}
		if len(g.Edges[from]) > 1 {
			slices.Sort(g.Edges[from])
		}
	}

	return g, slots
}

func (s *ModuleSlot) report(code diag.Code, span source.Span, msg string) {
	if s.Reporter == nil {
		return
	}
	diag.ReportError(s.Reporter, code, span, msg).WithSubject(s.Meta.Name).Emit()
}

func ReportCycles(idx ModuleIndex, slots []ModuleSlot, topo *Topo) {
	if !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	summary := strings.Join(names, " -> ")

	for _, id := range topo.Cycles {
		slot := &slots[int(id)]
		if !slot.Present {
			continue
		}
		slot.report(diag.DscImportCycle, slot.Meta.Span,
			fmt.Sprintf("module %q participates in an import cycle: %s", slot.Meta.Name, summary))
	}
}

// ReportBrokenDeps reports every import of a broken module once.
func ReportBrokenDeps(idx ModuleIndex, slots []ModuleSlot) {
	for i := range slots {
		slotFrom := &slots[i]
		if !slotFrom.Present || slotFrom.Reporter == nil || len(slotFrom.Meta.Imports) == 0 {
			continue
		}
		emitted := make(map[string]struct{}, len(slotFrom.Meta.Imports))
		for _, imp := range slotFrom.Meta.Imports {
			toID, ok := idx.NameToID[imp.Name]
			if !ok {
				continue
			}
			depSlot := slots[int(toID)]
			if !depSlot.Broken {
				continue
			}
			if _, seen := emitted[imp.Name]; seen {
				continue
			}
			emitted[imp.Name] = struct{}{}

			b := diag.ReportError(slotFrom.Reporter, diag.DscDependency, imp.Span,
				fmt.Sprintf("dependency module %q has errors", imp.Name)).WithSubject(slotFrom.Meta.Name)
			if depSlot.FirstErr != nil {
				b = b.WithNote(depSlot.FirstErr.Primary, "first error in dependency: "+depSlot.FirstErr.Message)
			}
			b.Emit()
		}
	}
}
