package link

import (
	"fmt"

	"shaderrefl/internal/entity"
)

// ComponentKind enumerates linkable flavours.
type ComponentKind uint8

const (
	ComponentModule ComponentKind = iota + 1
	ComponentEntryPoint
	ComponentConformance
	ComponentComposite
)

func (k ComponentKind) String() string {
	switch k {
	case ComponentModule:
		return "module"
	case ComponentEntryPoint:
		return "entry point"
	case ComponentConformance:
		return "conformance"
	case ComponentComposite:
		return "composite"
	default:
		return fmt.Sprintf("ComponentKind(%d)", k)
	}
}

// Component is a linkable: a module, an entry point, an explicit
// conformance witness request, or a composite of other components.
type Component struct {
	Kind   ComponentKind
	Entity entity.ID   // leaf components
	Parts  []Component // composites
}

// Module wraps a module entity.
func Module(id entity.ID) Component { return Component{Kind: ComponentModule, Entity: id} }

// EntryPoint wraps an entry-point record.
func EntryPoint(id entity.ID) Component { return Component{Kind: ComponentEntryPoint, Entity: id} }

// Conformance wraps a conformance record.
func Conformance(id entity.ID) Component { return Component{Kind: ComponentConformance, Entity: id} }

// Composite groups parts without validating them; use Compose for that.
func Composite(parts ...Component) Component {
	return Component{Kind: ComponentComposite, Parts: parts}
}

// Leaves flattens nested composites into an ordered leaf list with exact
// duplicates removed. Flattening makes composition associative.
func (c Component) Leaves() []Component {
	var out []Component
	type leafKey struct {
		kind ComponentKind
		id   entity.ID
	}
	seen := make(map[leafKey]bool)
	var walk func(Component)
	walk = func(c Component) {
		if c.Kind == ComponentComposite {
			for _, p := range c.Parts {
				walk(p)
			}
			return
		}
		key := leafKey{kind: c.Kind, id: c.Entity}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Component{Kind: c.Kind, Entity: c.Entity})
	}
	walk(c)
	return out
}
