// Package pipeline orchestrates a reflection run: load the descriptions,
// link them, then lay out, extract bindings, generate code and snapshot
// for every requested target.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shaderrefl/internal/binding"
	"shaderrefl/internal/codegen"
	"shaderrefl/internal/describe"
	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/link"
	"shaderrefl/internal/observ"
	"shaderrefl/internal/project"
	"shaderrefl/internal/session"
	"shaderrefl/internal/snapshot"
	"shaderrefl/internal/source"
	"shaderrefl/internal/trace"
)

// Request configures a reflection run.
type Request struct {
	// Modules are module names or description paths relative to Dirs.
	Modules []string
	// Dirs are searched for descriptions, in order.
	Dirs []string
	// EntryPoints restricts the linked entry points; empty links all of
	// them.
	EntryPoints []string
	Targets     []string

	Codegen bool
	// Cache, when set, serves and stores snapshots.
	Cache *snapshot.DiskCache

	Files          *source.FileSet
	MaxDiagnostics int
	// Jobs bounds the targets processed at once; 0 means GOMAXPROCS.
	Jobs     int
	Tracer   trace.Tracer
	Metrics  *observ.LayoutMetrics
	Progress ProgressSink
}

// Result is the outcome of a run. Targets is in request order.
type Result struct {
	Session     *session.Session
	Files       *source.FileSet
	Program     *link.Program
	Targets     []*TargetResult
	Diagnostics *diag.Bag
	Timings     Timings
}

// TargetResult is the outcome for one target. A cached result carries
// only the snapshot.
type TargetResult struct {
	Target   string
	Program  *session.TargetProgram
	Bindings []*binding.Info
	Code     []byte
	Snapshot *snapshot.Snapshot
	Cached   bool
	Err      error
	Timings  Timings
}

// Reflect runs the pipeline. Per-target failures are recorded in their
// TargetResult and joined into the returned error; the other targets
// still complete.
func Reflect(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("missing reflect request")
	}
	if len(req.Modules) == 0 {
		return nil, fmt.Errorf("no modules to reflect")
	}
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("no targets requested")
	}
	tracer := req.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	ctx = trace.WithTracer(ctx, tracer)

	files := req.Files
	if files == nil {
		files = source.NewFileSet()
	}
	reg := describe.NewRegistry(files, req.Dirs...)
	reg.MaxDiagnostics = req.MaxDiagnostics
	opts := session.Options{
		Source:         reg,
		Tracer:         tracer,
		Metrics:        req.Metrics,
		MaxDiagnostics: req.MaxDiagnostics,
		Jobs:           req.Jobs,
	}
	if req.Codegen {
		opts.Generator = codegen.New()
	}
	sess := session.New(opts)
	res := &Result{Session: sess, Files: files, Diagnostics: sess.NewBag()}
	for _, t := range req.Targets {
		emit(req.Progress, t, StageLoad, StatusQueued, nil, 0)
	}

	span := trace.Begin(tracer, trace.ScopeSession, "reflect", trace.CurrentSpan(ctx))
	defer span.End("")

	// Load.
	start := time.Now()
	emit(req.Progress, "", StageLoad, StatusWorking, nil, 0)
	var mods []entity.ID
	for _, name := range req.Modules {
		id, err := sess.LoadModule(ctx, name)
		if err != nil {
			res.absorb(err)
			emit(req.Progress, "", StageLoad, StatusError, err, time.Since(start))
			return res, fmt.Errorf("load %s: %w", name, err)
		}
		mods = append(mods, id)
	}
	res.Timings.Set(StageLoad, time.Since(start))
	emit(req.Progress, "", StageLoad, StatusDone, nil, res.Timings.Duration(StageLoad))

	// Link.
	start = time.Now()
	emit(req.Progress, "", StageLink, StatusWorking, nil, 0)
	parts, err := components(sess.Graph(), mods, req.EntryPoints)
	if err == nil {
		res.Program, err = sess.Link(ctx, parts...)
	}
	if err != nil {
		res.absorb(err)
		emit(req.Progress, "", StageLink, StatusError, err, time.Since(start))
		return res, fmt.Errorf("link: %w", err)
	}
	res.Timings.Set(StageLink, time.Since(start))
	emit(req.Progress, "", StageLink, StatusDone, nil, res.Timings.Duration(StageLink))

	contents := cacheContents(reg, sess.Graph(), mods, req)
	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	res.Targets = make([]*TargetResult, len(req.Targets))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(req.Targets))))
	for i, name := range req.Targets {
		tr := &TargetResult{Target: name}
		res.Targets[i] = tr
		g.Go(func() error {
			r := targetRun{req: req, sess: sess, prog: res.Program, tr: tr, key: snapshot.Key(contents, name)}
			bag := r.run(gctx)
			mu.Lock()
			res.Diagnostics.Merge(bag)
			mu.Unlock()
			// Cancellation stops every target; other failures stay local.
			if errors.Is(tr.Err, context.Canceled) || errors.Is(tr.Err, context.DeadlineExceeded) {
				return tr.Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	var errs []error
	for _, tr := range res.Targets {
		if tr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tr.Target, tr.Err))
		}
	}
	return res, errors.Join(errs...)
}

func (r *Result) absorb(err error) {
	if bag, ok := diag.BagOf(err); ok {
		r.Diagnostics.Merge(bag)
	}
}

// components links every module and the requested entry points of all of
// them; unknown entry point names are an error.
func components(g *entity.Graph, mods []entity.ID, names []string) ([]link.Component, error) {
	out := make([]link.Component, 0, len(mods))
	for _, m := range mods {
		out = append(out, link.Module(m))
	}
	if len(names) == 0 {
		for _, m := range mods {
			for _, c := range g.Children(m) {
				if g.Kind(c) == entity.KindEntryPoint {
					out = append(out, link.EntryPoint(c))
				}
			}
		}
		return out, nil
	}
	for _, name := range names {
		found := false
		for _, m := range mods {
			if ep, err := g.FindEntryPoint(m, name); err == nil {
				out = append(out, link.EntryPoint(ep))
				found = true
				break
			}
		}
		if !found {
			return nil, &entity.Error{Kind: entity.ErrKindNotFound, Name: name, Arg: -1, Detail: "entry point"}
		}
	}
	return out, nil
}

// cacheContents digests the loaded descriptions together with everything
// else in the request that changes a snapshot.
func cacheContents(reg *describe.Registry, g *entity.Graph, mods []entity.ID, req *Request) project.Digest {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, g.Name(m))
	}
	extra := "eps=" + strings.Join(req.EntryPoints, ",")
	if req.Codegen {
		extra += ";codegen"
	}
	return project.Combine(reg.Digest(names...), project.HashString(extra))
}

func emit(sink ProgressSink, target string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Target: target, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

// TimingsDiagnostic summarizes the run as an info diagnostic with one note
// per recorded stage.
func (r *Result) TimingsDiagnostic() diag.Diagnostic {
	d := diag.New(diag.SevInfo, diag.ObsTimings, source.Span{}, "reflect timings")
	d.Subject = "pipeline"
	for _, st := range []Stage{StageLoad, StageLink} {
		if r.Timings.Has(st) {
			d = d.WithNote(source.Span{}, fmt.Sprintf("%s %.3f ms", st, millis(r.Timings.Duration(st))))
		}
	}
	for _, tr := range r.Targets {
		if tr.Cached {
			d = d.WithNote(source.Span{}, tr.Target+" cached")
			continue
		}
		for _, st := range TargetStages {
			if tr.Timings.Has(st) {
				d = d.WithNote(source.Span{}, fmt.Sprintf("%s/%s %.3f ms", tr.Target, st, millis(tr.Timings.Duration(st))))
			}
		}
	}
	return d
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
