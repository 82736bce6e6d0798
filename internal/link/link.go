package link

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/trace"
)

type linker struct {
	g       *entity.Graph
	r       diag.Reporter
	modules map[entity.ID]bool
	names   map[string]bool
	checked map[entity.ID]bool
}

// Link resolves c against itself and returns the linked Program. Every
// problem is collected into the returned *Error before failing.
func Link(ctx context.Context, g *entity.Graph, c Component) (*Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopePass, "link", trace.CurrentSpan(ctx))
	defer span.End("")

	leaves := c.Leaves()
	bag := diag.NewBag(100)
	l := &linker{
		g:       g,
		r:       diag.BagReporter{Bag: bag},
		modules: make(map[entity.ID]bool),
		names:   make(map[string]bool),
		checked: make(map[entity.ID]bool),
	}
	p := &Program{graph: g}
	for _, leaf := range leaves {
		switch leaf.Kind {
		case ComponentModule:
			if g.Kind(leaf.Entity) != entity.KindModule {
				l.unresolved(leaf.Entity, fmt.Sprintf("entity#%d is not a module", leaf.Entity))
				continue
			}
			p.modules = append(p.modules, leaf.Entity)
			l.modules[leaf.Entity] = true
			l.names[g.Name(leaf.Entity)] = true
		case ComponentEntryPoint:
			p.entryPoints = append(p.entryPoints, leaf.Entity)
		case ComponentConformance:
			p.conformances = append(p.conformances, leaf.Entity)
		}
	}

	for _, m := range p.modules {
		l.checkModule(m)
	}
	type epKey struct {
		name  string
		stage entity.Stage
	}
	seen := make(map[epKey]entity.ID)
	for _, ep := range p.entryPoints {
		info, err := g.AsEntryPoint(ep)
		if err != nil {
			l.unresolved(ep, err.Error())
			continue
		}
		if !l.modules[info.Module] {
			l.unresolved(ep, fmt.Sprintf("entry point %s belongs to unlinked module %s",
				g.Name(ep), g.Name(info.Module)))
		}
		key := epKey{name: g.Name(ep), stage: info.Stage}
		if prev, ok := seen[key]; ok {
			diag.ReportError(l.r, diag.LnkMultipleEntryPointConflict, g.Span(ep),
				fmt.Sprintf("entry point %s for stage %s is linked twice", key.name, key.stage)).
				WithSubject(g.FullyQualifiedName(ep)).
				WithNote(g.Span(prev), "first linked here").
				WithCause(ErrMultipleEntryPointConflict).
				Emit()
		} else {
			seen[key] = ep
		}
		l.checkEntryPoint(ep, info)
	}
	for _, cf := range p.conformances {
		l.checkConformance(cf)
	}

	if err := failure("link", bag); err != nil {
		span.WithExtra("errors", fmt.Sprint(bag.Len()))
		return nil, err
	}
	p.linked = p.collectLinked()
	return p, nil
}

func (l *linker) unresolved(id entity.ID, msg string) {
	diag.ReportError(l.r, diag.LnkUnresolvedReference, l.g.Span(id), msg).
		WithSubject(l.g.FullyQualifiedName(id)).
		WithCause(ErrUnresolvedReference).
		Emit()
}

func (l *linker) invalidEntryPoint(id entity.ID, msg string) {
	diag.ReportError(l.r, diag.LnkInvalidEntryPoint, l.g.Span(id), msg).
		WithSubject(l.g.FullyQualifiedName(id)).
		WithCause(ErrInvalidEntryPoint).
		Emit()
}

func (l *linker) checkModule(m entity.ID) {
	info, err := l.g.AsModule(m)
	if err != nil {
		return
	}
	for _, imp := range info.Imports {
		if !l.names[imp] {
			l.unresolved(m, fmt.Sprintf("module %s imports %s, which is not linked", l.g.Name(m), imp))
		}
	}
	for _, decl := range declarations(l.g, m) {
		for _, ref := range references(l.g, decl) {
			l.checkType(decl, ref)
		}
	}
}

// references lists the types a declaration mentions directly.
func references(g *entity.Graph, decl entity.ID) []entity.ID {
	var out []entity.ID
	switch g.Kind(decl) {
	case entity.KindVar:
		t, _ := g.TypeOf(decl)
		out = append(out, t)
	case entity.KindFunc:
		fn, _ := g.AsFunc(decl)
		out = append(out, fn.Result)
		for _, p := range fn.Params {
			t, _ := g.TypeOf(p)
			out = append(out, t)
		}
	case entity.KindType:
		if s, err := g.AsStruct(decl); err == nil {
			for _, f := range s.Fields {
				t, _ := g.TypeOf(f)
				out = append(out, t)
			}
			out = append(out, s.Conforms...)
		}
	case entity.KindGeneric:
		info, _ := g.AsGeneric(decl)
		for _, c := range info.Constraints {
			if ci, err := g.AsConstraint(c); err == nil {
				out = append(out, ci.Super)
			}
		}
		out = append(out, references(g, info.Inner)...)
	}
	return slices.DeleteFunc(out, func(id entity.ID) bool { return id == entity.NoID })
}

// checkType reports t when it, or any type it is built from, belongs to a
// module outside the linked set.
func (l *linker) checkType(from, t entity.ID) {
	if t == entity.NoID || l.checked[t] {
		return
	}
	l.checked[t] = true
	e, ok := l.g.Lookup(t)
	if !ok {
		l.unresolved(from, fmt.Sprintf("%s references an invalid entity#%d", l.g.Name(from), t))
		return
	}
	if e.Module != entity.NoID && !l.modules[e.Module] {
		l.unresolved(from, fmt.Sprintf("%s references %s from unlinked module %s",
			l.g.Name(from), l.g.FullyQualifiedName(t), l.g.Name(e.Module)))
		return
	}
	subs := []entity.ID{e.Elem, e.CountParam, e.Generic}
	subs = append(subs, e.Members...)
	subs = append(subs, e.Args...)
	for _, sub := range subs {
		if sub != entity.NoID && l.g.Kind(sub) != entity.KindValue {
			l.checkType(from, sub)
		}
	}
}

func (l *linker) checkEntryPoint(ep entity.ID, info entity.EntryPointInfo) {
	g := l.g
	fn, err := g.AsFunc(info.Func)
	if err != nil {
		l.invalidEntryPoint(ep, err.Error())
		return
	}
	l.checkType(ep, fn.Result)
	for _, p := range fn.Params {
		t, _ := g.TypeOf(p)
		l.checkType(ep, t)
	}
	if info.Stage == entity.StageCompute && fn.Result != entity.NoID {
		l.invalidEntryPoint(ep, fmt.Sprintf("compute entry point %s returns %s", g.Name(ep), g.Name(fn.Result)))
	}
	switch info.Stage {
	case entity.StageMiss, entity.StageCallable, entity.StageClosestHit, entity.StageAnyHit:
	default:
		return
	}
	// closest/any hit may take one `in` hit-attribute parameter.
	attrs := 0
	for _, p := range fn.Params {
		if g.HasModifier(p, entity.ModUniform) || g.HasModifier(p, entity.ModInOut) {
			continue
		}
		hit := info.Stage == entity.StageClosestHit || info.Stage == entity.StageAnyHit
		if hit && attrs == 0 && !g.HasModifier(p, entity.ModOut) {
			attrs++
			continue
		}
		l.invalidEntryPoint(ep, fmt.Sprintf("%s payload parameter %s must be inout", info.Stage, g.SimpleName(p)))
	}
}

func (l *linker) checkConformance(cf entity.ID) {
	g := l.g
	info, err := g.AsConformance(cf)
	if err != nil {
		l.unresolved(cf, err.Error())
		return
	}
	var missing []string
	for _, t := range []entity.ID{info.Type, info.Interface} {
		if m := g.ModuleOf(t); m != entity.NoID && !l.modules[m] {
			missing = append(missing, g.FullyQualifiedName(t))
		}
	}
	if len(missing) > 0 {
		l.unresolved(cf, fmt.Sprintf("conformance %s names unlinked %s", g.Name(cf), strings.Join(missing, ", ")))
		return
	}
	if !g.Conforms(info.Type, info.Interface) {
		l.unresolved(cf, fmt.Sprintf("%s does not conform to %s", g.Name(info.Type), g.Name(info.Interface)))
	}
}
