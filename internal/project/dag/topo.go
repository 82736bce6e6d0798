package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo is a Kahn ordering of the import graph. Order lists importers before
// the modules they import.
type Topo struct {
	Order   []ModuleID   // линейный порядок (только найденные модули)
	Batches [][]ModuleID // волны независимых модулей
	Cyclic  bool
	Cycles  []ModuleID // узлы, оставшиеся в цикле
}

func moduleID(i int) ModuleID {
	id, err := safecast.Conv[ModuleID](i)
	if err != nil {
		panic(fmt.Errorf("module id overflow: %w", err))
	}
	return id
}

func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := slices.Clone(g.Indeg)

	topo := &Topo{
		Order:   make([]ModuleID, 0, nodeCount),
		Batches: make([][]ModuleID, 0),
	}

	active := 0
	current := make([]ModuleID, 0, nodeCount)
	for i := range nodeCount {
		if !g.Present[i] {
			continue
		}
		active++
		if indeg[i] == 0 {
			current = append(current, moduleID(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		var next []ModuleID
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[int(id)] {
				if !g.Present[int(to)] {
					continue
				}
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if g.Present[i] && indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, moduleID(i))
			}
		}
	}
	return topo
}

// BuildOrder lists modules so that every module follows its imports.
func (t *Topo) BuildOrder() []ModuleID {
	out := slices.Clone(t.Order)
	slices.Reverse(out)
	return out
}
