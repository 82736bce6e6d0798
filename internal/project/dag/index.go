package dag

import (
	"sort"

	"shaderrefl/internal/project"
)

type ModuleID uint32

type ModuleIndex struct {
	NameToID map[string]ModuleID
	IDToName []string
}

// собрать уникальные имена, sort.Strings, раздать ID по порядку
func BuildIndex(metas []project.ModuleMeta) ModuleIndex {
	uniq := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if meta.Name != "" {
			uniq[meta.Name] = struct{}{}
		}
		for _, dep := range meta.Imports {
			if dep.Name == "" {
				continue
			}
			uniq[dep.Name] = struct{}{}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]ModuleID, len(names))
	for i, name := range names {
		nameToID[name] = ModuleID(i)
	}

	return ModuleIndex{
		NameToID: nameToID,
		IDToName: names,
	}
}
