package entity

import (
	"fmt"
	"slices"
)

// Builders are called by the front-end while a module is being described.
// Misuse (declaring a field inside a function, a second inner declaration
// for a generic) is a programming error and panics.

// AddModule creates a module root.
func (g *Graph) AddModule(name string, imports ...string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.allocLocked(&Entity{
		Kind:    KindModule,
		Name:    g.strings.Intern(name),
		Imports: slices.Clone(imports),
	})
	g.modules = append(g.modules, id)
	return id
}

// AddImport records a module import by name.
func (g *Graph) AddImport(module ID, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m := g.mustKind(module, KindModule)
	m.Imports = append(m.Imports, name)
}

func (g *Graph) mustKind(id ID, kinds ...Kind) *Entity {
	e := g.get(id)
	if e == nil {
		panic(fmt.Sprintf("entity: invalid parent entity#%d", id))
	}
	if !slices.Contains(kinds, e.Kind) {
		panic(fmt.Sprintf("entity: entity#%d is a %s, want one of %v", id, e.Kind, kinds))
	}
	if e.subst != nil {
		panic(fmt.Sprintf("entity: cannot add declarations to specialized entity#%d", id))
	}
	return e
}

func (g *Graph) declareLocked(parent *Entity, e *Entity, name string) ID {
	e.Name = g.strings.Intern(name)
	e.Parent = parent.ID
	e.Module = parent.Module
	if parent.Kind == KindModule {
		e.Module = parent.ID
	}
	id := g.allocLocked(e)
	parent.children = append(parent.children, id)
	if parent.Kind == KindGeneric && (e.Kind == KindType || e.Kind == KindFunc) {
		if parent.Inner != NoID {
			panic(fmt.Sprintf("entity: generic entity#%d already wraps entity#%d", parent.ID, parent.Inner))
		}
		parent.Inner = id
	}
	return id
}

func (g *Graph) addNominal(parent ID, shape Shape, name string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(parent, KindModule, KindType, KindGeneric)
	if p.Kind == KindType && !p.Shape.Nominal() {
		panic(fmt.Sprintf("entity: cannot nest %s inside %s", shape, p.Shape))
	}
	e := &Entity{Kind: KindType, Shape: shape}
	if shape == ShapeEnum {
		e.Elem = g.scalarLocked(ScalarInt)
	}
	return g.declareLocked(p, e, name)
}

// AddStruct declares a struct inside a module, type or generic.
func (g *Graph) AddStruct(parent ID, name string) ID { return g.addNominal(parent, ShapeStruct, name) }

// AddClass declares a class.
func (g *Graph) AddClass(parent ID, name string) ID { return g.addNominal(parent, ShapeClass, name) }

// AddInterface declares an interface.
func (g *Graph) AddInterface(parent ID, name string) ID {
	return g.addNominal(parent, ShapeInterface, name)
}

// AddEnum declares an enum with an int underlying type.
func (g *Graph) AddEnum(parent ID, name string) ID { return g.addNominal(parent, ShapeEnum, name) }

// AddEnumCase adds a static constant case to an enum.
func (g *Graph) AddEnumCase(enum ID, name string, value int64) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(enum, KindType)
	if p.Shape != ShapeEnum {
		panic(fmt.Sprintf("entity: entity#%d is not an enum", enum))
	}
	return g.declareLocked(p, &Entity{
		Kind:      KindVar,
		Type:      enum,
		Modifiers: []Modifier{Mod(ModStatic), Mod(ModConst)},
		Value:     Value{Kind: ValueInt, Int: value},
	}, name)
}

// DeclareConformance records that a struct, class or interface declares
// conformance to iface.
func (g *Graph) DeclareConformance(typ, iface ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.mustKind(typ, KindType)
	if !t.Shape.Nominal() {
		panic(fmt.Sprintf("entity: %s cannot declare conformances", t.Shape))
	}
	if !slices.Contains(t.Conforms, iface) {
		t.Conforms = append(t.Conforms, iface)
	}
}

// AddField adds a field to a struct or class.
func (g *Graph) AddField(owner ID, name string, typ ID, mods ...Modifier) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(owner, KindType)
	if p.Shape != ShapeStruct && p.Shape != ShapeClass {
		panic(fmt.Sprintf("entity: fields are not allowed in %s", p.Shape))
	}
	return g.declareLocked(p, &Entity{Kind: KindVar, Type: typ, Modifiers: slices.Clone(mods)}, name)
}

// AddFunc declares a function. result NoID means void.
func (g *Graph) AddFunc(parent ID, name string, result ID, mods ...Modifier) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(parent, KindModule, KindType, KindGeneric)
	return g.declareLocked(p, &Entity{Kind: KindFunc, Type: result, Modifiers: slices.Clone(mods)}, name)
}

// AddParam appends a parameter to a function.
func (g *Graph) AddParam(fn ID, name string, typ ID, mods ...Modifier) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(fn, KindFunc)
	return g.declareLocked(p, &Entity{Kind: KindVar, Type: typ, Modifiers: slices.Clone(mods)}, name)
}

// AddGlobalParam declares a module-level shader parameter.
func (g *Graph) AddGlobalParam(module ID, name string, typ ID, mods ...Modifier) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(module, KindModule)
	return g.declareLocked(p, &Entity{Kind: KindVar, Type: typ, Modifiers: slices.Clone(mods)}, name)
}

// AddGeneric declares a generic wrapper. The wrapped declaration is the
// next struct/class/interface/func added with the generic as parent.
func (g *Graph) AddGeneric(parent ID, name string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(parent, KindModule, KindType)
	return g.declareLocked(p, &Entity{Kind: KindGeneric}, name)
}

func (g *Graph) paramCountLocked(gen *Entity) uint32 {
	var n uint32
	for _, c := range gen.children {
		if isGenericParam(g.entities[c]) {
			n++
		}
	}
	return n
}

func isGenericParam(e *Entity) bool {
	return e.Kind == KindTypeVar || (e.Kind == KindVar && e.hasModifier(ModConst) && e.Index > 0)
}

// AddTypeParam appends a type parameter.
func (g *Graph) AddTypeParam(generic ID, name string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(generic, KindGeneric)
	return g.declareLocked(p, &Entity{Kind: KindTypeVar, Index: g.paramCountLocked(p) + 1}, name)
}

// AddValueParam appends a value parameter of the given type.
func (g *Graph) AddValueParam(generic ID, name string, typ ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(generic, KindGeneric)
	return g.declareLocked(p, &Entity{
		Kind:      KindVar,
		Type:      typ,
		Index:     g.paramCountLocked(p) + 1,
		Modifiers: []Modifier{Mod(ModConst)},
	}, name)
}

// AddConstraint requires sub (usually a type parameter) to conform to
// super, which may be a conjunction.
func (g *Graph) AddConstraint(generic, sub, super ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(generic, KindGeneric)
	name := g.nameLocked(sub) + ":" + g.nameLocked(super)
	return g.declareLocked(p, &Entity{Kind: KindConstraint, Type: sub, Super: super}, name)
}

// AddEntryPoint marks fn as an entry point for stage. The entry point is a
// separate record that refers to its function.
func (g *Graph) AddEntryPoint(module, fn ID, stage Stage) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEntryPointLocked(module, fn, stage)
}

func (g *Graph) addEntryPointLocked(module, fn ID, stage Stage) ID {
	p := g.mustKind(module, KindModule)
	f := g.get(fn)
	if f == nil || f.Kind != KindFunc {
		panic(fmt.Sprintf("entity: entry point target entity#%d is not a function", fn))
	}
	return g.declareLocked(p, &Entity{Kind: KindEntryPoint, Type: fn, Stage: stage}, g.strings.MustLookup(f.Name))
}

// AddConformance records an explicit conformance witness request.
func (g *Graph) AddConformance(module, typ, iface ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.mustKind(module, KindModule)
	name := g.nameLocked(typ) + ":" + g.nameLocked(iface)
	return g.declareLocked(p, &Entity{Kind: KindConformance, Type: typ, Super: iface}, name)
}

// AddAttribute attaches a user attribute with value arguments to target.
// Attributes are not children of their target.
func (g *Graph) AddAttribute(target ID, name string, args ...ID) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.get(target)
	if t == nil {
		panic(fmt.Sprintf("entity: invalid attribute target entity#%d", target))
	}
	id := g.allocLocked(&Entity{
		Kind:    KindAttribute,
		Name:    g.strings.Intern(name),
		Parent:  target,
		Module:  t.Module,
		Members: slices.Clone(args),
	})
	t.Attrs = append(t.Attrs, id)
	return id
}
