package link

import (
	"fmt"
	"slices"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/typeexpr"
)

// Program is the immutable result of Link. It is not an entity: it holds
// the explicitly linked entry points in link order and resolves names with
// every linked module visible at once.
type Program struct {
	graph        *entity.Graph
	modules      []entity.ID
	entryPoints  []entity.ID
	conformances []entity.ID
	linked       []entity.ID
}

func (p *Program) Graph() *entity.Graph { return p.graph }

// Modules returns the linked modules in link order.
func (p *Program) Modules() []entity.ID { return slices.Clone(p.modules) }

// EntryPoints returns exactly the explicitly linked entry points.
func (p *Program) EntryPoints() []entity.ID { return slices.Clone(p.entryPoints) }

// Conformances returns the linked conformance witness requests.
func (p *Program) Conformances() []entity.ID { return slices.Clone(p.conformances) }

// LinkedEntities returns the sorted link-visible surface: modules, their
// declarations, entry points and conformances.
func (p *Program) LinkedEntities() []entity.ID { return slices.Clone(p.linked) }

func (p *Program) collectLinked() []entity.ID {
	var out []entity.ID
	for _, m := range p.modules {
		out = append(out, m)
		out = append(out, declarations(p.graph, m)...)
	}
	out = append(out, p.entryPoints...)
	out = append(out, p.conformances...)
	slices.Sort(out)
	return slices.Compact(out)
}

// FindEntryPoint returns the linked entry point called name.
func (p *Program) FindEntryPoint(name string) (entity.ID, error) {
	return p.findEntryPoint(name, func(entity.Stage) bool { return true })
}

// FindEntryPointForStage returns the linked entry point with name and stage.
func (p *Program) FindEntryPointForStage(name string, stage entity.Stage) (entity.ID, error) {
	return p.findEntryPoint(name, func(s entity.Stage) bool { return s == stage })
}

func (p *Program) findEntryPoint(name string, match func(entity.Stage) bool) (entity.ID, error) {
	found := entity.NoID
	for _, ep := range p.entryPoints {
		info, err := p.graph.AsEntryPoint(ep)
		if err != nil || p.graph.Name(ep) != name || !match(info.Stage) {
			continue
		}
		if found != entity.NoID {
			return entity.NoID, &entity.Error{
				Kind:   entity.ErrKindAmbiguousName,
				Name:   name,
				Arg:    -1,
				Detail: fmt.Sprintf("linked for stages %s and %s", p.stageOf(found), info.Stage),
			}
		}
		found = ep
	}
	if found == entity.NoID {
		return entity.NoID, &entity.Error{Kind: entity.ErrKindNotFound, Name: name, Arg: -1}
	}
	return found, nil
}

func (p *Program) stageOf(ep entity.ID) entity.Stage {
	info, _ := p.graph.AsEntryPoint(ep)
	return info.Stage
}

// FindEntity resolves a dotted name such as "lighting.Outer<float>.Inner".
// The first segment may name a linked module or any top-level declaration
// of one; same-named declarations that share a fully-qualified name are
// one entity for lookup purposes.
func (p *Program) FindEntity(name string) (entity.ID, error) {
	r := &typeexpr.Resolver{Graph: p.graph, Scope: typeexpr.ScopeFunc(p.lookupFirst)}
	return r.ResolveString(name)
}

func (p *Program) lookupFirst(name string) []entity.ID {
	g := p.graph
	var out []entity.ID
	seen := make(map[string]bool)
	add := func(id entity.ID) {
		fqn := g.FullyQualifiedName(id)
		if seen[fqn] {
			return
		}
		seen[fqn] = true
		out = append(out, id)
	}
	for _, m := range p.modules {
		if g.Name(m) == name {
			add(m)
		}
	}
	for _, m := range p.modules {
		for _, c := range g.ChildrenNamed(m, name) {
			add(c)
		}
	}
	return out
}

// Globals returns the global shader parameters of the linked modules in
// declaration order. Static and groupshared variables are not parameters.
func (p *Program) Globals() []entity.ID {
	var out []entity.ID
	for _, m := range p.modules {
		info, err := p.graph.AsModule(m)
		if err != nil {
			continue
		}
		for _, v := range info.Globals {
			if p.graph.HasModifier(v, entity.ModStatic) || p.graph.HasModifier(v, entity.ModGroupShared) {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}
