package layout

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"shaderrefl/internal/entity"
	"shaderrefl/internal/observ"
	"shaderrefl/internal/trace"
)

// Engine computes type layouts for one target. Completed layouts (and
// failures) are memoized and shared read-only; concurrent requests for the
// same key are coalesced into one computation.
type Engine struct {
	Target  *Target
	Graph   *entity.Graph
	Metrics *observ.LayoutMetrics
	Tracer  trace.Tracer

	mu     sync.RWMutex
	memo   map[layoutKey]*memoEntry
	flight singleflight.Group
}

type layoutKey struct {
	typ   entity.ID
	rules Rules
	mode  MatrixMode
}

func (k layoutKey) String() string { return fmt.Sprintf("%d/%d/%d", k.typ, k.rules, k.mode) }

type memoEntry struct {
	layout *TypeLayout
	err    error
}

// layoutState is the per-call stack of keys being laid out. A key found on
// the stack is InProgress; memoized keys are LaidOut.
type layoutState struct {
	stack []layoutKey
	index map[layoutKey]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[layoutKey]int, 16)}
}

// NewEngine creates an engine for target over graph.
func NewEngine(target *Target, graph *entity.Graph) *Engine {
	return &Engine{
		Target: target,
		Graph:  graph,
		Tracer: trace.Nop,
		memo:   make(map[layoutKey]*memoEntry, 256),
	}
}

// TypeLayout lays out id under rules with the target's matrix mode.
func (e *Engine) TypeLayout(id entity.ID, rules Rules) (*TypeLayout, error) {
	return e.TypeLayoutWithMode(id, rules, MatrixDefault)
}

// TypeLayoutWithMode lays out id with an explicit matrix storage order.
func (e *Engine) TypeLayoutWithMode(id entity.ID, rules Rules, mode MatrixMode) (*TypeLayout, error) {
	key := e.key(id, rules, mode)
	if m, ok := e.cached(key); ok {
		e.Metrics.CacheHit(e.Target.Name)
		return m.layout, m.err
	}
	v, err, _ := e.flight.Do(key.String(), func() (any, error) {
		if m, ok := e.cached(key); ok {
			return m.layout, m.err
		}
		span := trace.Begin(e.Tracer, trace.ScopeEntity, "layout "+e.Graph.Name(id), 0)
		span.WithExtra("target", e.Target.Name).WithExtra("rules", key.rules.String())
		start := time.Now()
		l, err := e.layoutOf(key, newLayoutState())
		e.Metrics.LayoutComputed(e.Target.Name)
		if err != nil {
			kind := "unknown"
			if k, ok := KindOf(err); ok {
				kind = k.String()
			}
			e.Metrics.LayoutFailed(e.Target.Name, kind)
		}
		span.End(time.Since(start).String())
		return l, err
	})
	l, _ := v.(*TypeLayout)
	return l, err
}

func (e *Engine) key(id entity.ID, rules Rules, mode MatrixMode) layoutKey {
	k := layoutKey{typ: id, rules: e.Target.Resolve(rules)}
	switch e.Graph.ShapeOf(e.Graph.UnwrapArray(id)) {
	case entity.ShapeMatrix:
		k.mode = mode
		if k.mode == MatrixDefault {
			k.mode = e.Target.MatrixMode
		}
	}
	return k
}

func (e *Engine) cached(key layoutKey) (*memoEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.memo[key]
	return m, ok
}

func (e *Engine) store(key layoutKey, l *TypeLayout, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.memo[key]; !ok {
		e.memo[key] = &memoEntry{layout: l, err: err}
	}
}

func (e *Engine) layoutOf(key layoutKey, state *layoutState) (*TypeLayout, error) {
	if m, ok := e.cached(key); ok {
		return m.layout, m.err
	}
	if idx, ok := state.index[key]; ok {
		cycle := make([]string, 0, len(state.stack)-idx+1)
		for _, k := range state.stack[idx:] {
			cycle = append(cycle, e.Graph.Name(k.typ))
		}
		cycle = append(cycle, e.Graph.Name(key.typ))
		err := &Error{Kind: ErrKindCyclic, Type: key.typ, Name: e.Graph.Name(key.typ), Target: e.Target.Name, Cycle: cycle}
		return nil, err
	}

	state.index[key] = len(state.stack)
	state.stack = append(state.stack, key)
	l, err := e.compute(key, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, key)

	e.store(key, l, err)
	return l, err
}

// Len returns the number of memoized layouts.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.memo)
}

func (e *Engine) unsupported(id entity.ID, format string, args ...any) *Error {
	return &Error{
		Kind:   ErrKindUnsupported,
		Type:   id,
		Name:   e.Graph.Name(id),
		Target: e.Target.Name,
		Detail: fmt.Sprintf(format, args...),
	}
}
