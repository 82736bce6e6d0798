package link

import (
	"fmt"
	"strings"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
)

// Compose validates and flattens parts into one composite. Two distinct
// modules that define the same fully-qualified name with incompatible
// signatures are reported as DuplicateDefinition; every conflict is
// collected before failing.
func Compose(g *entity.Graph, parts ...Component) (Component, error) {
	leaves := Composite(parts...).Leaves()
	bag := diag.NewBag(100)
	r := diag.BagReporter{Bag: bag}

	type definition struct {
		id     entity.ID
		module entity.ID
		sig    string
	}
	defs := make(map[string]definition)
	for _, leaf := range leaves {
		if leaf.Kind != ComponentModule {
			continue
		}
		for _, decl := range declarations(g, leaf.Entity) {
			fqn := g.FullyQualifiedName(decl)
			sig := signature(g, decl)
			prev, ok := defs[fqn]
			if !ok {
				defs[fqn] = definition{id: decl, module: leaf.Entity, sig: sig}
				continue
			}
			if prev.module == leaf.Entity || prev.sig == sig {
				continue
			}
			diag.ReportError(r, diag.LnkDuplicateDefinition, g.Span(decl),
				fmt.Sprintf("%s is defined as %s and as %s", fqn, prev.sig, sig)).
				WithSubject(fqn).
				WithNote(g.Span(prev.id), "previous definition").
				WithCause(ErrDuplicateDefinition).
				Emit()
		}
	}
	if err := failure("compose", bag); err != nil {
		return Component{}, err
	}
	return Composite(leaves...), nil
}

// declarations lists the named declarations of a module that take part in
// the link-visible surface: types, functions, generics and globals, with
// nested types and functions included.
func declarations(g *entity.Graph, module entity.ID) []entity.ID {
	var out []entity.ID
	var walk func(id entity.ID)
	walk = func(id entity.ID) {
		for _, c := range g.Children(id) {
			switch g.Kind(c) {
			case entity.KindType, entity.KindFunc:
				out = append(out, c)
				if g.Kind(c) == entity.KindType {
					walk(c)
				}
			case entity.KindGeneric:
				out = append(out, c)
				if info, err := g.AsGeneric(c); err == nil && g.Kind(info.Inner) == entity.KindType {
					walk(info.Inner)
				}
			case entity.KindVar:
				if g.Kind(id) == entity.KindModule {
					out = append(out, c)
				}
			}
		}
	}
	walk(module)
	return out
}

// signature renders what must agree for two same-named definitions to be
// the same definition: kind, shape and the member types.
func signature(g *entity.Graph, id entity.ID) string {
	e, ok := g.Lookup(id)
	if !ok {
		return "?"
	}
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	switch e.Kind {
	case entity.KindType:
		sb.WriteString(" " + e.Shape.String())
		if !e.Shape.Nominal() {
			break
		}
		sb.WriteString("{")
		i := 0
		for _, c := range g.Children(id) {
			if g.Kind(c) != entity.KindVar {
				continue
			}
			if i > 0 {
				sb.WriteString("; ")
			}
			i++
			typ, _ := g.TypeOf(c)
			sb.WriteString(g.SimpleName(c) + " " + typeName(g, typ))
		}
		sb.WriteString("}")
	case entity.KindFunc:
		fn, _ := g.AsFunc(id)
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			typ, _ := g.TypeOf(p)
			params[i] = typeName(g, typ)
		}
		sb.WriteString("(" + strings.Join(params, ", ") + ") " + typeName(g, fn.Result))
	case entity.KindVar:
		sb.WriteString(" " + typeName(g, e.Type))
	case entity.KindGeneric:
		info, _ := g.AsGeneric(id)
		params := make([]string, len(info.Params))
		for i, p := range info.Params {
			params[i] = g.SimpleName(p)
		}
		sb.WriteString("<" + strings.Join(params, ", ") + "> " + signature(g, info.Inner))
	}
	return sb.String()
}

func typeName(g *entity.Graph, id entity.ID) string {
	if id == entity.NoID {
		return "void"
	}
	return g.FullyQualifiedName(id)
}
