// Package session owns the state shared by every query of one reflection
// run: the entity graph, loaded modules, per-target layout engines and the
// code generator.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/link"
	"shaderrefl/internal/observ"
	"shaderrefl/internal/trace"
)

var (
	// ErrClosed is returned by every query on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrNoCodeGenerator marks targets the code generator cannot emit.
	ErrNoCodeGenerator = errors.New("no code generator for target")
	// ErrNoModuleSource is returned by LoadModule without a ModuleSource.
	ErrNoModuleSource = errors.New("no module source configured")
)

// ModuleSource is the front end: it reads a module by name and adds its
// declarations, and those of its imports, to g.
type ModuleSource interface {
	LoadModule(ctx context.Context, g *entity.Graph, name string, r diag.Reporter) (entity.ID, error)
}

// CodeGenerator emits target code for a laid out program. An empty
// entryPoint asks for the whole program.
type CodeGenerator interface {
	Generate(ctx context.Context, pl *layout.ProgramLayout, entryPoint string) ([]byte, error)
}

// Options configures a Session.
type Options struct {
	Source    ModuleSource
	Generator CodeGenerator
	Tracer    trace.Tracer
	Metrics   *observ.LayoutMetrics
	// MaxDiagnostics caps every bag the session creates; 0 means no limit.
	MaxDiagnostics int
	// Jobs bounds ReflectAll; 0 means GOMAXPROCS.
	Jobs int
}

// Session is safe for concurrent use.
type Session struct {
	opts   Options
	graph  *entity.Graph
	closed atomic.Bool

	mu      sync.Mutex
	modules map[string]entity.ID
	targets map[string]*Target
	loads   singleflight.Group
}

// New creates a session with an empty graph.
func New(opts Options) *Session {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	return &Session{
		opts:    opts,
		graph:   entity.NewGraph(nil),
		modules: make(map[string]entity.ID),
		targets: make(map[string]*Target),
	}
}

// Graph returns the session's entity graph.
func (s *Session) Graph() *entity.Graph { return s.graph }

// Tracer returns the session tracer, never nil.
func (s *Session) Tracer() trace.Tracer { return s.opts.Tracer }

// NewBag returns a diagnostic bag with the session's limit.
func (s *Session) NewBag() *diag.Bag { return diag.NewBag(s.opts.MaxDiagnostics) }

func (s *Session) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close invalidates the session. Later queries fail with ErrClosed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	s.mu.Lock()
	clear(s.targets)
	s.mu.Unlock()
	return nil
}

// LoadModule loads name through the module source once; later calls return
// the same module. Description errors come back as a diag.Failure.
func (s *Session) LoadModule(ctx context.Context, name string) (entity.ID, error) {
	if err := s.check(); err != nil {
		return entity.NoID, err
	}
	s.mu.Lock()
	id, ok := s.modules[name]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	if s.opts.Source == nil {
		return entity.NoID, ErrNoModuleSource
	}

	v, err, _ := s.loads.Do(name, func() (any, error) {
		span := trace.Begin(s.opts.Tracer, trace.ScopePass, "load module", trace.CurrentSpan(ctx))
		span.WithExtra("module", name)
		bag := s.NewBag()
		id, err := s.opts.Source.LoadModule(ctx, s.graph, name, diag.BagReporter{Bag: bag})
		if err == nil && bag.HasErrors() {
			err = diag.AsError(bag)
		}
		if err != nil {
			span.End("failed")
			return entity.NoID, err
		}
		span.End("")
		s.mu.Lock()
		s.modules[name] = id
		s.mu.Unlock()
		return id, nil
	})
	id, _ = v.(entity.ID)
	return id, err
}

// Modules returns the loaded modules by name.
func (s *Session) Modules() map[string]entity.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]entity.ID, len(s.modules))
	for k, v := range s.modules {
		out[k] = v
	}
	return out
}

// Target returns the target called name (aliases accepted), creating its
// layout engine on first use.
func (s *Session) Target(name string) (*Target, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	lt, err := layout.LookupTarget(name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[lt.Name]; ok {
		return t, nil
	}
	t := newTarget(s, lt)
	s.targets[lt.Name] = t
	return t, nil
}

// ReflectAll specializes prog for every target concurrently. The result
// is in the order of targets; on failure the slots of targets that did not
// finish are nil.
func (s *Session) ReflectAll(ctx context.Context, prog *link.Program, targets []string) ([]*TargetProgram, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	jobs := s.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	out := make([]*TargetProgram, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(targets))))
	for i, name := range targets {
		g.Go(func() error {
			t, err := s.Target(name)
			if err != nil {
				return err
			}
			tp, err := t.SpecializeProgram(gctx, prog)
			out[i] = tp
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}
	return out, g.Wait()
}
