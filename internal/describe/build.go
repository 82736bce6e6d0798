package describe

import (
	"errors"
	"fmt"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/source"
	"shaderrefl/internal/typeexpr"
)

// Build adds m to g. Imports must already be in g. Problems are reported
// to r and the offending declaration is skipped; the module is returned
// even when some declarations failed.
func Build(g *entity.Graph, m *Module, r diag.Reporter) entity.ID {
	b := &builder{g: g, m: m, r: r, decls: make(map[string]entity.ID, len(m.Decls))}
	b.mod = g.AddModule(m.Name, m.Imports...)
	if sp := b.span(m.Name); sp != (source.Span{}) {
		g.SetSpan(b.mod, sp)
	}

	// Nominal types first, so declarations can refer to each other in any
	// order.
	pending := make([]pendingDecl, 0, len(m.Decls))
	for i := range m.Decls {
		if id, ok := b.declare(&m.Decls[i]); ok {
			pending = append(pending, pendingDecl{decl: &m.Decls[i], id: id})
		}
	}
	for _, p := range pending {
		b.define(p.decl, p.id)
	}
	for _, c := range m.Conformances {
		b.conformance(c)
	}
	for _, ep := range m.EntryPoints {
		b.entryPoint(ep)
	}
	return b.mod
}

type pendingDecl struct {
	decl *Decl
	id   entity.ID
}

type builder struct {
	g     *entity.Graph
	m     *Module
	r     diag.Reporter
	mod   entity.ID
	decls map[string]entity.ID
	pos   uint32
}

// span finds name in the description, scanning forward so that repeated
// names land on successive declarations.
func (b *builder) span(name string) source.Span {
	if b.m.File == nil {
		return source.Span{}
	}
	sp := b.m.File.SpanOf(name, b.pos)
	if sp.Empty() {
		return b.m.File.SpanOf(name, 0)
	}
	b.pos = sp.End
	return sp
}

func (b *builder) report(code diag.Code, sp source.Span, subject, msg string) {
	diag.ReportError(b.r, code, sp, msg).WithSubject(b.m.Name + "." + subject).Emit()
}

func (b *builder) declare(d *Decl) (entity.ID, bool) {
	g := b.g
	if d.Name == "" {
		b.report(diag.DscMissingField, source.Span{}, d.Kind, "declaration without a name")
		return entity.NoID, false
	}
	sp := b.span(d.Name)
	if _, dup := b.decls[d.Name]; dup {
		b.report(diag.DscDuplicateDecl, sp, d.Name, fmt.Sprintf("%s is declared twice", d.Name))
		return entity.NoID, false
	}

	var id entity.ID
	switch d.Kind {
	case KindStruct:
		id = g.AddStruct(b.mod, d.Name)
	case KindClass:
		id = g.AddClass(b.mod, d.Name)
	case KindInterface:
		id = g.AddInterface(b.mod, d.Name)
	case KindEnum:
		id = g.AddEnum(b.mod, d.Name)
	case KindGeneric:
		id = g.AddGeneric(b.mod, d.Name)
		for _, tp := range d.TypeParams {
			if tp.Type == "" {
				g.AddTypeParam(id, tp.Name)
				continue
			}
			typ, ok := b.resolve(tp.Type, d.Name+"."+tp.Name, sp, id)
			if !ok {
				continue
			}
			g.AddValueParam(id, tp.Name, typ)
		}
		g.AddStruct(id, d.Name)
	case KindFunc, KindParam:
		// Declared in define: they only refer to types.
	default:
		b.report(diag.DscUnknownKind, sp, d.Name, fmt.Sprintf("unknown declaration kind %q", d.Kind))
		return entity.NoID, false
	}
	if id != entity.NoID {
		g.SetSpan(id, sp)
	}
	b.decls[d.Name] = id
	return id, true
}

func (b *builder) define(d *Decl, id entity.ID) {
	g := b.g
	sp := b.span(d.Name)
	switch d.Kind {
	case KindStruct, KindClass:
		b.fields(id, d, sp)
		b.conforms(id, d.Conforms, d.Name, sp)
	case KindInterface:
		b.conforms(id, d.Conforms, d.Name, sp)
	case KindEnum:
		for _, c := range d.Cases {
			g.AddEnumCase(id, c.Name, c.Value)
		}
	case KindGeneric:
		inner := g.UnspecializedInner(id)
		b.fields(inner, d, sp, id)
		b.conforms(inner, d.Conforms, d.Name, sp, id)
		for _, tp := range d.TypeParams {
			if len(tp.Conforms) == 0 {
				continue
			}
			param, err := g.FindChild(id, tp.Name)
			if err != nil {
				continue
			}
			for _, c := range tp.Conforms {
				iface, ok := b.resolve(c, d.Name+"."+tp.Name, sp, id)
				if ok && b.isInterface(iface, c, d.Name, sp) {
					g.AddConstraint(id, param, iface)
				}
			}
		}
	case KindFunc:
		b.function(d, sp)
	case KindParam:
		b.global(d, sp)
	}
	b.attributes(id, d, sp)
}

func (b *builder) fields(owner entity.ID, d *Decl, sp source.Span, scope ...entity.ID) {
	for _, f := range d.Fields {
		subject := d.Name + "." + f.Name
		if f.Name == "" || f.Type == "" {
			b.report(diag.DscMissingField, sp, subject, "field needs a name and a type")
			continue
		}
		typ, ok := b.resolve(f.Type, subject, sp, scope...)
		if !ok {
			continue
		}
		mods, ok := b.modifiers(f.Modifiers, f.Semantic, f.Binding, subject, sp)
		if !ok {
			continue
		}
		b.g.AddField(owner, f.Name, typ, mods...)
	}
}

func (b *builder) function(d *Decl, sp source.Span) {
	result := entity.NoID
	if d.Result != "" {
		typ, ok := b.resolve(d.Result, d.Name, sp)
		if !ok {
			return
		}
		result = typ
	}
	mods, ok := b.modifiers(d.Modifiers, d.Semantic, d.Binding, d.Name, sp)
	if !ok {
		return
	}
	fn := b.g.AddFunc(b.mod, d.Name, result, mods...)
	b.g.SetSpan(fn, sp)
	b.decls[d.Name] = fn
	for _, p := range d.Params {
		subject := d.Name + "." + p.Name
		if p.Name == "" || p.Type == "" {
			b.report(diag.DscMissingField, sp, subject, "parameter needs a name and a type")
			continue
		}
		typ, ok := b.resolve(p.Type, subject, sp)
		if !ok {
			continue
		}
		mods, ok := b.modifiers(p.Modifiers, p.Semantic, p.Binding, subject, sp)
		if !ok {
			continue
		}
		b.g.AddParam(fn, p.Name, typ, mods...)
	}
}

func (b *builder) global(d *Decl, sp source.Span) {
	if d.Type == "" {
		b.report(diag.DscMissingField, sp, d.Name, "param needs a type")
		return
	}
	typ, ok := b.resolve(d.Type, d.Name, sp)
	if !ok {
		return
	}
	mods, ok := b.modifiers(d.Modifiers, d.Semantic, d.Binding, d.Name, sp)
	if !ok {
		return
	}
	v := b.g.AddGlobalParam(b.mod, d.Name, typ, mods...)
	b.g.SetSpan(v, sp)
	b.decls[d.Name] = v
}

func (b *builder) attributes(target entity.ID, d *Decl, sp source.Span) {
	if target == entity.NoID {
		target = b.decls[d.Name]
	}
	if target == entity.NoID {
		return
	}
	for _, a := range d.Attributes {
		args := make([]entity.ID, 0, len(a.Args))
		for _, arg := range a.Args {
			id, ok := b.resolve(arg, d.Name+"."+a.Name, sp)
			if !ok {
				return
			}
			args = append(args, id)
		}
		b.g.AddAttribute(target, a.Name, args...)
	}
}

func (b *builder) conforms(typ entity.ID, names []string, subject string, sp source.Span, scope ...entity.ID) {
	for _, name := range names {
		iface, ok := b.resolve(name, subject, sp, scope...)
		if ok && b.isInterface(iface, name, subject, sp) {
			b.g.DeclareConformance(typ, iface)
		}
	}
}

func (b *builder) isInterface(id entity.ID, name, subject string, sp source.Span) bool {
	if b.g.ShapeOf(id) == entity.ShapeInterface {
		return true
	}
	b.report(diag.DscBadTypeExpr, sp, subject, fmt.Sprintf("%s is not an interface", name))
	return false
}

func (b *builder) conformance(c Conformance) {
	sp := b.span(c.Type)
	typ, ok := b.resolve(c.Type, c.Type, sp)
	if !ok {
		return
	}
	iface, ok := b.resolve(c.Interface, c.Type, sp)
	if !ok || !b.isInterface(iface, c.Interface, c.Type, sp) {
		return
	}
	b.g.AddConformance(b.mod, typ, iface)
}

func (b *builder) entryPoint(ep EntryPoint) {
	sp := b.span(ep.Name)
	stage, ok := entity.ParseStage(ep.Stage)
	if !ok {
		b.report(diag.DscBadStage, sp, ep.Name, fmt.Sprintf("unknown stage %q", ep.Stage))
		return
	}
	fn, ok := b.decls[ep.Name]
	if !ok || b.g.Kind(fn) != entity.KindFunc {
		b.report(diag.DscUnresolvedName, sp, ep.Name, fmt.Sprintf("entry point %s names no function of the module", ep.Name))
		return
	}
	b.g.AddEntryPoint(b.mod, fn, stage)
}

func (b *builder) modifiers(names []string, semantic string, bind *Binding, subject string, sp source.Span) ([]entity.Modifier, bool) {
	mods := make([]entity.Modifier, 0, len(names)+2)
	for _, n := range names {
		tag, ok := entity.ParseModifier(n)
		if !ok {
			b.report(diag.DscBadModifier, sp, subject, fmt.Sprintf("unknown modifier %q", n))
			return nil, false
		}
		mods = append(mods, entity.Mod(tag))
	}
	if semantic != "" {
		mods = append(mods, entity.Semantic(semantic))
	}
	if bind != nil {
		class, ok := parseClass(bind.Class)
		if !ok {
			b.report(diag.DscBadModifier, sp, subject, fmt.Sprintf("unknown register class %q", bind.Class))
			return nil, false
		}
		mods = append(mods, entity.Binding(class, bind.Index, bind.Space))
	}
	return mods, true
}

func parseClass(s string) (entity.RegisterClass, bool) {
	switch s {
	case "":
		return entity.RegisterAny, true
	case "b":
		return entity.RegisterB, true
	case "t":
		return entity.RegisterT, true
	case "u":
		return entity.RegisterU, true
	case "s":
		return entity.RegisterS, true
	}
	return 0, false
}

// resolve resolves a type expression; inner entities (a generic) are
// searched before the module and its imports.
func (b *builder) resolve(expr, subject string, sp source.Span, inner ...entity.ID) (entity.ID, bool) {
	res := typeexpr.Resolver{Graph: b.g, Scope: b.scope(inner)}
	id, err := res.ResolveString(expr)
	if err == nil {
		return id, true
	}
	code := diag.DscBadTypeExpr
	if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrAmbiguousName) {
		code = diag.DscUnresolvedName
	}
	diag.ReportError(b.r, code, sp, err.Error()).
		WithSubject(b.m.Name + "." + subject).
		WithCause(err).
		Emit()
	return entity.NoID, false
}

func (b *builder) scope(inner []entity.ID) typeexpr.Scope {
	g := b.g
	return typeexpr.ScopeFunc(func(name string) []entity.ID {
		for _, id := range inner {
			if c := g.ChildrenNamed(id, name); len(c) > 0 {
				return c
			}
		}
		if c := b.typesNamed(b.mod, name); len(c) > 0 {
			return c
		}
		var out []entity.ID
		for _, imp := range b.m.Imports {
			if mod, err := g.FindModule(imp); err == nil {
				out = append(out, b.typesNamed(mod, name)...)
			}
		}
		if len(out) > 0 {
			return out
		}
		if mod, err := g.FindModule(name); err == nil {
			return []entity.ID{mod}
		}
		return nil
	})
}

// typesNamed skips entry points, which share their function's name.
func (b *builder) typesNamed(mod entity.ID, name string) []entity.ID {
	var out []entity.ID
	for _, c := range b.g.ChildrenNamed(mod, name) {
		if b.g.Kind(c) != entity.KindEntryPoint {
			out = append(out, c)
		}
	}
	return out
}
