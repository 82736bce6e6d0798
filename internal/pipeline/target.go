package pipeline

import (
	"context"
	"fmt"
	"time"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/link"
	"shaderrefl/internal/project"
	"shaderrefl/internal/session"
	"shaderrefl/internal/snapshot"
	"shaderrefl/internal/source"
	"shaderrefl/internal/trace"
)

type targetRun struct {
	req  *Request
	sess *session.Session
	prog *link.Program
	tr   *TargetResult
	key  project.Digest
	bag  *diag.Bag
}

// run fills r.tr and returns the diagnostics it collected.
func (r *targetRun) run(ctx context.Context) *diag.Bag {
	r.bag = r.sess.NewBag()
	name := r.tr.Target
	span := trace.Begin(r.sess.Tracer(), trace.ScopeTarget, name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	if r.req.Cache != nil {
		snap, ok, err := r.req.Cache.Get(r.key)
		if err == nil && ok {
			r.tr.Snapshot, r.tr.Code, r.tr.Cached = snap, snap.Code, true
			emit(r.req.Progress, name, StageSnapshot, StatusCached, nil, 0)
			span.End("cached")
			return r.bag
		}
	}

	if err := r.stages(ctx); err != nil {
		r.tr.Err = err
		span.End("failed")
		return r.bag
	}
	span.End("")
	return r.bag
}

func (r *targetRun) stages(ctx context.Context) error {
	t, err := r.sess.Target(r.tr.Target)
	if err != nil {
		return r.fail(StageLayout, err, time.Now())
	}

	start := r.begin(StageLayout)
	tp, err := t.SpecializeProgram(ctx, r.prog)
	switch {
	case tp != nil:
		// The returned failure wraps this same bag.
		r.bag.Merge(tp.Layout.Diagnostics)
	case err != nil:
		r.absorb(err)
	}
	if err != nil {
		return r.fail(StageLayout, err, start)
	}
	r.tr.Program = tp
	r.done(StageLayout, start)

	start = r.begin(StageBindings)
	infos, err := tp.Bindings()
	if err != nil {
		return r.fail(StageBindings, err, start)
	}
	r.tr.Bindings = infos
	r.done(StageBindings, start)

	if r.req.Codegen {
		start = r.begin(StageCodegen)
		code, err := tp.GetCode(ctx)
		if err != nil {
			r.absorb(err)
			return r.fail(StageCodegen, err, start)
		}
		r.tr.Code = code
		r.done(StageCodegen, start)
	}

	start = r.begin(StageSnapshot)
	snap, err := snapshot.FromProgram(tp, infos)
	if err != nil {
		return r.fail(StageSnapshot, err, start)
	}
	snap.Code = r.tr.Code
	r.tr.Snapshot = snap
	if err := r.req.Cache.Put(r.key, snap); err != nil {
		diag.ReportWarning(diag.BagReporter{Bag: r.bag}, diag.ObsCache, source.Span{}, fmt.Sprintf("snapshot cache: %v", err)).
			WithSubject(r.tr.Target).
			WithCause(err).
			Emit()
	}
	r.done(StageSnapshot, start)
	return nil
}

func (r *targetRun) begin(stage Stage) time.Time {
	emit(r.req.Progress, r.tr.Target, stage, StatusWorking, nil, 0)
	return time.Now()
}

func (r *targetRun) done(stage Stage, start time.Time) {
	d := time.Since(start)
	r.tr.Timings.Set(stage, d)
	emit(r.req.Progress, r.tr.Target, stage, StatusDone, nil, d)
}

func (r *targetRun) absorb(err error) {
	if bag, ok := diag.BagOf(err); ok {
		r.bag.Merge(bag)
	}
}

func (r *targetRun) fail(stage Stage, err error, start time.Time) error {
	emit(r.req.Progress, r.tr.Target, stage, StatusError, err, time.Since(start))
	return fmt.Errorf("%s: %w", stage, err)
}
