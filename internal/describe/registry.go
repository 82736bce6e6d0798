package describe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/project"
	"shaderrefl/internal/project/dag"
	"shaderrefl/internal/source"
)

var extensions = []string{".toml", ".yaml", ".yml"}

// Registry finds module descriptions in a list of directories. A module
// "post/bloom" is read from post/bloom.toml (or .yaml, .yml) under the first
// directory that has it. Registry implements session.ModuleSource.
type Registry struct {
	Files *source.FileSet
	Dirs  []string
	// MaxDiagnostics caps the per-module bags; 0 means no limit.
	MaxDiagnostics int

	mu     sync.Mutex
	hashes map[string]project.Digest
}

// NewRegistry creates a registry reading from dirs.
func NewRegistry(files *source.FileSet, dirs ...string) *Registry {
	if files == nil {
		files = source.NewFileSet()
	}
	return &Registry{
		Files:  files,
		Dirs:   dirs,
		hashes: make(map[string]project.Digest),
	}
}

// Find returns the description file for a module.
func (r *Registry) Find(name string) (string, error) {
	for _, dir := range r.Dirs {
		base := filepath.Join(dir, filepath.FromSlash(name))
		for _, ext := range extensions {
			p := base + ext
			st, err := os.Stat(p)
			if err == nil && !st.IsDir() {
				return p, nil
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("module %q: %w", name, fs.ErrNotExist)
}

type pending struct {
	module *Module
	meta   project.ModuleMeta
	bag    *diag.Bag
	broken bool
	first  *diag.Diagnostic
}

// LoadModule adds the module called name and every module it imports to g,
// imports first. Modules already in g are reused. Each problem is reported
// to rep; the error is non-nil when name itself could not be built.
func (r *Registry) LoadModule(ctx context.Context, g *entity.Graph, name string, rep diag.Reporter) (entity.ID, error) {
	root, err := project.NormalizeModuleName(name)
	if err != nil {
		diag.ReportError(rep, diag.DscMissingModule, source.Span{}, err.Error()).WithSubject(name).Emit()
		return entity.NoID, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, err := g.FindModule(root); err == nil {
		return id, nil
	}

	found, err := r.discover(ctx, g, root, rep)
	if err != nil {
		return entity.NoID, err
	}

	metas := make([]project.ModuleMeta, 0, len(found))
	nodes := make([]dag.ModuleNode, 0, len(found))
	for _, p := range found {
		metas = append(metas, p.meta)
		nodes = append(nodes, dag.ModuleNode{
			Meta:     p.meta,
			Reporter: diag.BagReporter{Bag: p.bag},
			Broken:   p.broken,
			FirstErr: p.first,
		})
	}
	idx := dag.BuildIndex(metas)
	graph, slots := dag.BuildGraph(idx, nodes)
	topo := dag.ToposortKahn(graph)
	dag.ReportCycles(idx, slots, topo)

	if !topo.Cyclic {
		for _, id := range topo.BuildOrder() {
			if err := ctx.Err(); err != nil {
				return entity.NoID, err
			}
			slot := &slots[int(id)]
			p := found[slot.Meta.Name]
			if p == nil || p.module == nil {
				continue
			}
			if r.brokenImport(idx, slots, slot) || p.broken || p.bag.HasErrors() {
				slot.Broken = true
				if slot.FirstErr == nil {
					slot.FirstErr = firstError(p.bag)
				}
				continue
			}
			Build(g, p.module, diag.BagReporter{Bag: p.bag})
			if p.bag.HasErrors() {
				slot.Broken = true
				slot.FirstErr = firstError(p.bag)
			}
			r.hashes[slot.Meta.Name] = r.moduleHash(slot.Meta)
		}
		dag.ReportBrokenDeps(idx, slots)
	}

	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		for _, d := range found[n].bag.Items() {
			rep.Report(d)
		}
	}

	id, err := g.FindModule(root)
	if err != nil || found[root].bag.HasErrors() {
		return entity.NoID, fmt.Errorf("module %q: %w", root, diag.AsError(found[root].bag))
	}
	return id, nil
}

// discover reads the import closure of root that is not yet in g.
func (r *Registry) discover(ctx context.Context, g *entity.Graph, root string, rep diag.Reporter) (map[string]*pending, error) {
	found := make(map[string]*pending)
	queue := []string{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := queue[0]
		queue = queue[1:]
		if _, ok := found[name]; ok {
			continue
		}
		if _, err := g.FindModule(name); err == nil {
			continue
		}
		p := r.read(name)
		if p == nil {
			if name == root {
				diag.ReportError(rep, diag.DscMissingModule, source.Span{},
					fmt.Sprintf("no description for module %q", name)).WithSubject(name).Emit()
				return nil, fmt.Errorf("module %q: %w", name, fs.ErrNotExist)
			}
			// The importer reports it.
			continue
		}
		found[name] = p
		for _, imp := range p.meta.Imports {
			queue = append(queue, imp.Name)
		}
	}
	return found, nil
}

// read loads one description; nil when the module has no file.
func (r *Registry) read(name string) *pending {
	p := &pending{bag: diag.NewBag(r.MaxDiagnostics)}
	p.meta.Name = name
	rep := diag.BagReporter{Bag: p.bag}

	path, err := r.Find(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	p.meta.Path = path
	if err != nil {
		p.fail(rep, diag.DscIOError, source.Span{}, err)
		return p
	}
	m, err := LoadFile(r.Files, path)
	if err != nil {
		code := diag.DscParseError
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			code = diag.DscIOError
		}
		p.fail(rep, code, source.Span{}, err)
		return p
	}
	if m.Name != name {
		sp := m.File.SpanOf(m.Name, 0)
		p.fail(rep, diag.DscParseError, sp, fmt.Errorf("%s describes module %q, expected %q", path, m.Name, name))
		return p
	}
	p.module = m
	p.meta.Span = m.File.SpanOf(m.Name, 0)
	p.meta.ContentHash = project.Digest(m.File.Hash)
	for i, imp := range m.Imports {
		norm, err := project.NormalizeModuleName(imp)
		sp := m.File.SpanOf(imp, 0)
		if err != nil {
			diag.ReportError(rep, diag.DscMissingModule, sp, err.Error()).WithSubject(name).Emit()
			continue
		}
		m.Imports[i] = norm
		p.meta.Imports = append(p.meta.Imports, project.ImportMeta{Name: norm, Span: sp})
	}
	return p
}

func (p *pending) fail(rep diag.Reporter, code diag.Code, sp source.Span, err error) {
	diag.ReportError(rep, code, sp, err.Error()).WithSubject(p.meta.Name).WithCause(err).Emit()
	p.broken = true
	p.first = firstError(p.bag)
}

func (r *Registry) brokenImport(idx dag.ModuleIndex, slots []dag.ModuleSlot, slot *dag.ModuleSlot) bool {
	for _, imp := range slot.Meta.Imports {
		id, ok := idx.NameToID[imp.Name]
		if ok && slots[int(id)].Broken {
			return true
		}
	}
	return false
}

func (r *Registry) moduleHash(meta project.ModuleMeta) project.Digest {
	deps := make([]string, 0, len(meta.Imports))
	for _, imp := range meta.Imports {
		deps = append(deps, imp.Name)
	}
	slices.Sort(deps)
	digests := make([]project.Digest, 0, len(deps)+1)
	digests = append(digests, project.HashString(meta.Name))
	for _, d := range deps {
		digests = append(digests, r.hashes[d])
	}
	return project.Combine(meta.ContentHash, digests...)
}

// Digest combines the hashes of the named modules and everything they
// import. It changes whenever one of those descriptions changes, so it
// serves as a cache key. Modules that were never loaded contribute a zero
// digest.
func (r *Registry) Digest(names ...string) project.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	digests := make([]project.Digest, 0, len(sorted))
	for _, n := range sorted {
		digests = append(digests, r.hashes[n])
	}
	return project.Combine(project.HashString("shaderrefl/modules"), digests...)
}

func firstError(b *diag.Bag) *diag.Diagnostic {
	for _, d := range b.Items() {
		if d.Severity == diag.SevError {
			return &d
		}
	}
	return nil
}
