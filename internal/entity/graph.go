package entity

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"shaderrefl/internal/source"
)

// Graph is the arena that owns every entity of a session.
type Graph struct {
	mu       sync.RWMutex
	strings  *source.Interner
	entities []*Entity
	modules  []ID

	structural map[structKey]ID
	values     map[Value]ID
	specs      map[specKey]ID
	// specialized children keyed by (declaration, owning specialization)
	specChildren map[childKey]ID
	childLists   map[ID][]ID
}

type structKey struct {
	Shape      Shape
	Elem       ID
	Count      uint32
	Cols       uint32
	Unsized    bool
	CountParam ID
	Scalar     ScalarKind
	Resource   ResourceShape
	Access     ResourceAccess
	Group      GroupKind
	Members    string
}

type specKey struct {
	Generic ID
	Args    string
}

type childKey struct {
	Orig  ID
	Owner ID
}

// NewGraph creates an empty graph. strings may be shared with other
// session components; nil allocates a private interner.
func NewGraph(strings *source.Interner) *Graph {
	if strings == nil {
		strings = source.NewInterner()
	}
	return &Graph{
		strings:      strings,
		entities:     []*Entity{nil}, // reserve 0 as NoID
		structural:   make(map[structKey]ID, 64),
		values:       make(map[Value]ID, 16),
		specs:        make(map[specKey]ID, 16),
		specChildren: make(map[childKey]ID, 64),
		childLists:   make(map[ID][]ID, 16),
	}
}

// Strings returns the name interner.
func (g *Graph) Strings() *source.Interner { return g.strings }

func (g *Graph) allocLocked(e *Entity) ID {
	n, err := safecast.Conv[uint32](len(g.entities))
	if err != nil {
		panic(fmt.Errorf("entity arena overflow: %w", err))
	}
	e.ID = ID(n)
	g.entities = append(g.entities, e)
	return e.ID
}

func (g *Graph) get(id ID) *Entity {
	if id == NoID || int(id) >= len(g.entities) {
		return nil
	}
	return g.entities[id]
}

// Len returns the number of entities including the reserved sentinel.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// Lookup returns a copy of the record.
func (g *Graph) Lookup(id ID) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e := g.get(id)
	if e == nil {
		return Entity{}, false
	}
	return *e, true
}

// Valid reports whether id names an entity of this graph.
func (g *Graph) Valid(id ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.get(id) != nil
}

// Kind returns the variant of id, KindInvalid for unknown IDs.
func (g *Graph) Kind(id ID) Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil {
		return e.Kind
	}
	return KindInvalid
}

// ShapeOf returns the type shape of id, ShapeNone for non-types.
func (g *Graph) ShapeOf(id ID) Shape {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil && e.Kind == KindType {
		return e.Shape
	}
	return ShapeNone
}

// Parent returns the syntactic parent, NoID for roots.
func (g *Graph) Parent(id ID) ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil {
		return e.Parent
	}
	return NoID
}

// ModuleOf returns the module that declares id.
func (g *Graph) ModuleOf(id ID) ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil {
		if e.Kind == KindModule {
			return e.ID
		}
		return e.Module
	}
	return NoID
}

// Span returns the declaration location, empty for synthesized entities.
func (g *Graph) Span(id ID) source.Span {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e := g.get(id); e != nil {
		return e.Span
	}
	return source.Span{}
}

// SetSpan records the declaration location of a builder-created entity.
func (g *Graph) SetSpan(id ID, span source.Span) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e := g.get(id); e != nil {
		e.Span = span
	}
}

// Modules lists modules in creation order.
func (g *Graph) Modules() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]ID(nil), g.modules...)
}

// FindModule resolves a module by name.
func (g *Graph) FindModule(name string) (ID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sid, ok := g.strings.Find(name)
	if !ok {
		return NoID, &Error{Kind: ErrKindNotFound, Name: name, Arg: -1}
	}
	found := NoID
	for _, m := range g.modules {
		if g.entities[m].Name != sid {
			continue
		}
		if found != NoID {
			return NoID, &Error{Kind: ErrKindAmbiguousName, Name: name, Arg: -1, Detail: "several modules share the name"}
		}
		found = m
	}
	if found == NoID {
		return NoID, &Error{Kind: ErrKindNotFound, Name: name, Arg: -1}
	}
	return found, nil
}
