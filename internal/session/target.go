package session

import (
	"context"
	"errors"
	"sync"

	"shaderrefl/internal/binding"
	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/link"
	"shaderrefl/internal/source"
	"shaderrefl/internal/trace"
)

// Link composes components and links them against the session graph.
func (s *Session) Link(ctx context.Context, components ...link.Component) (*link.Program, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	c, err := link.Compose(s.graph, components...)
	if err != nil {
		return nil, err
	}
	return link.Link(trace.WithTracer(ctx, s.opts.Tracer), s.graph, c)
}

// Target is one compilation target of a session: its layout engine and
// binding extractor.
type Target struct {
	session  *Session
	layout   *layout.Target
	engine   *layout.Engine
	bindings *binding.Extractor
}

func newTarget(s *Session, lt *layout.Target) *Target {
	e := layout.NewEngine(lt, s.graph)
	e.Tracer = s.opts.Tracer
	e.Metrics = s.opts.Metrics
	x := binding.NewExtractor(lt)
	x.Metrics = s.opts.Metrics
	return &Target{session: s, layout: lt, engine: e, bindings: x}
}

// Name is the canonical target name.
func (t *Target) Name() string { return t.layout.Name }

// Layout returns the target description.
func (t *Target) Layout() *layout.Target { return t.layout }

// Bindings returns the target's binding extractor.
func (t *Target) Bindings() *binding.Extractor { return t.bindings }

// GetEntityLayout lays out a single type.
func (t *Target) GetEntityLayout(id entity.ID, rules layout.Rules) (*layout.TypeLayout, error) {
	if err := t.session.check(); err != nil {
		return nil, err
	}
	return t.engine.TypeLayout(id, rules)
}

// SpecializeProgram lays out prog for the target. A partial program is
// returned together with the diagnostics of parameters that failed.
func (t *Target) SpecializeProgram(ctx context.Context, prog *link.Program) (*TargetProgram, error) {
	if err := t.session.check(); err != nil {
		return nil, err
	}
	pl, err := t.engine.LayoutProgram(ctx, prog)
	if pl == nil {
		return nil, err
	}
	tp := &TargetProgram{target: t, Layout: pl}
	for _, ep := range pl.EntryPoints {
		tp.entryPoints = append(tp.entryPoints, &TargetEntryPoint{program: tp, Layout: ep})
	}
	return tp, err
}

// TargetProgram is a program laid out for one target.
type TargetProgram struct {
	target      *Target
	Layout      *layout.ProgramLayout
	entryPoints []*TargetEntryPoint
	code        codeMemo
}

// Target returns the target the program was specialized for.
func (tp *TargetProgram) Target() *Target { return tp.target }

// Program returns the linked program.
func (tp *TargetProgram) Program() *link.Program { return tp.Layout.Program }

// EntryPoints returns the specialized entry points in link order.
func (tp *TargetProgram) EntryPoints() []*TargetEntryPoint { return tp.entryPoints }

// EntryPoint returns the entry point called name.
func (tp *TargetProgram) EntryPoint(name string) (*TargetEntryPoint, error) {
	for _, ep := range tp.entryPoints {
		if ep.Layout.Name == name {
			return ep, nil
		}
	}
	return nil, &entity.Error{Kind: entity.ErrKindNotFound, Name: name, Arg: -1}
}

// Bindings extracts the binding view of every global parameter, in
// declaration order.
func (tp *TargetProgram) Bindings() ([]*binding.Info, error) {
	params := tp.Layout.Parameters()
	out := make([]*binding.Info, 0, len(params))
	for _, v := range params {
		in, err := tp.target.bindings.Extract(v.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// GetCode generates code for the whole program. The generator runs once.
func (tp *TargetProgram) GetCode(ctx context.Context) ([]byte, error) {
	return tp.code.get(ctx, tp, "")
}

// TargetEntryPoint is one entry point of a TargetProgram.
type TargetEntryPoint struct {
	program *TargetProgram
	Layout  *layout.EntryPointLayout
	code    codeMemo
}

// Program returns the program the entry point belongs to.
func (ep *TargetEntryPoint) Program() *TargetProgram { return ep.program }

// GetCode generates code for this entry point alone.
func (ep *TargetEntryPoint) GetCode(ctx context.Context) ([]byte, error) {
	return ep.code.get(ctx, ep.program, ep.Layout.Name)
}

// codeMemo runs the generator on first request. Cancellation is not
// memoized, so a later caller can retry.
type codeMemo struct {
	mu   sync.Mutex
	done bool
	code []byte
	err  error
}

func (m *codeMemo) get(ctx context.Context, tp *TargetProgram, entryPoint string) ([]byte, error) {
	s := tp.target.session
	if err := s.check(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return m.code, m.err
	}

	span := trace.Begin(s.opts.Tracer, trace.ScopePass, "codegen", trace.CurrentSpan(ctx))
	span.WithExtra("target", tp.target.Name())
	if entryPoint != "" {
		span.WithExtra("entry", entryPoint)
	}

	var code []byte
	err := ErrNoCodeGenerator
	if s.opts.Generator != nil {
		code, err = s.opts.Generator.Generate(ctx, tp.Layout, entryPoint)
	}
	if err != nil {
		span.End("failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		err = codegenFailure(s, tp.target.Name(), entryPoint, err)
	} else {
		span.End("")
	}
	m.done, m.code, m.err = true, code, err
	return code, err
}

func codegenFailure(s *Session, target, entryPoint string, cause error) error {
	bag := s.NewBag()
	code := diag.GenFailed
	if errors.Is(cause, ErrNoCodeGenerator) {
		code = diag.GenUnsupportedTarget
	}
	subject := target
	if entryPoint != "" {
		subject += ":" + entryPoint
	}
	diag.ReportError(diag.BagReporter{Bag: bag}, code, source.Span{}, cause.Error()).
		WithSubject(subject).
		WithCause(cause).
		Emit()
	return diag.AsError(bag)
}
