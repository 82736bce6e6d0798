package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/entity"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/link"
	"shaderrefl/internal/session"
	"shaderrefl/internal/source"
)

// fakeSource builds a "lighting" module with one constant buffer and a
// fragment entry point; any other name is a description error.
type fakeSource struct {
	loads atomic.Int32
}

func (f *fakeSource) LoadModule(_ context.Context, g *entity.Graph, name string, r diag.Reporter) (entity.ID, error) {
	f.loads.Add(1)
	if name != "lighting" {
		diag.ReportError(r, diag.DscIOError, source.Span{}, "no such module").WithSubject(name).Emit()
		return entity.NoID, nil
	}
	mod := g.AddModule(name)
	float := g.Scalar(entity.ScalarFloat)
	float4 := g.Vector(float, 4)
	light := g.AddStruct(mod, "Light")
	g.AddField(light, "color", float4)
	g.AddField(light, "shadowMap", g.Resource(entity.ResTexture2D, entity.AccessRead, float4))
	g.AddGlobalParam(mod, "gLight", g.ParameterGroup(entity.GroupConstantBuffer, light))
	fn := g.AddFunc(mod, "main", float4, entity.Semantic("SV_Target"))
	g.AddEntryPoint(mod, fn, entity.StageFragment)
	return mod, nil
}

type fakeGenerator struct {
	calls atomic.Int32
}

func (f *fakeGenerator) Generate(_ context.Context, pl *layout.ProgramLayout, entryPoint string) ([]byte, error) {
	f.calls.Add(1)
	if pl.Target == layout.TargetCPU {
		return nil, session.ErrNoCodeGenerator
	}
	return []byte(pl.Target.Name + ":" + entryPoint), nil
}

func newSession(t *testing.T) (*session.Session, *fakeSource, *fakeGenerator) {
	t.Helper()
	src, gen := &fakeSource{}, &fakeGenerator{}
	return session.New(session.Options{Source: src, Generator: gen, MaxDiagnostics: 16}), src, gen
}

func mustLink(t *testing.T, s *session.Session) *link.Program {
	t.Helper()
	mod, err := s.LoadModule(context.Background(), "lighting")
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	ep, err := s.Graph().FindEntryPoint(mod, "main")
	if err != nil {
		t.Fatalf("FindEntryPoint: %v", err)
	}
	prog, err := s.Link(context.Background(), link.Module(mod), link.EntryPoint(ep))
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	return prog
}

func TestLoadModuleOnce(t *testing.T) {
	s, src, _ := newSession(t)
	var wg sync.WaitGroup
	ids := make([]entity.ID, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.LoadModule(context.Background(), "lighting")
			if err != nil {
				t.Errorf("LoadModule: %v", err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("loads returned different modules: %v", ids)
		}
	}
	if got := src.loads.Load(); got != 1 {
		t.Fatalf("source consulted %d times, want 1", got)
	}
}

func TestLoadModuleReportsDescriptionErrors(t *testing.T) {
	s, _, _ := newSession(t)
	_, err := s.LoadModule(context.Background(), "missing")
	bag, ok := diag.BagOf(err)
	if !ok || !bag.HasCode(diag.DscIOError) {
		t.Fatalf("LoadModule(missing) = %v, want DSC2009", err)
	}
}

func TestSpecializeProgramAndCode(t *testing.T) {
	s, _, gen := newSession(t)
	prog := mustLink(t, s)
	target, err := s.Target("vk")
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if again, _ := s.Target("vulkan"); again != target {
		t.Fatalf("aliases must share one target")
	}

	tp, err := target.SpecializeProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("SpecializeProgram: %v", err)
	}
	if _, err := tp.Layout.FindParam("gLight"); err != nil {
		t.Fatalf("gLight: %v", err)
	}
	infos, err := tp.Bindings()
	if err != nil || len(infos) != 1 || !infos[0].ImplicitBuffer {
		t.Fatalf("Bindings = %+v, %v", infos, err)
	}

	ep, err := tp.EntryPoint("main")
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	for range 3 {
		code, err := ep.GetCode(context.Background())
		if err != nil || string(code) != "vulkan:main" {
			t.Fatalf("GetCode = %q, %v", code, err)
		}
	}
	if _, err := tp.GetCode(context.Background()); err != nil {
		t.Fatalf("program GetCode: %v", err)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("generator ran %d times, want 2", got)
	}
	if _, err := tp.EntryPoint("vsMain"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("EntryPoint(vsMain) = %v", err)
	}
}

func TestGetCodeWithoutGenerator(t *testing.T) {
	s, _, _ := newSession(t)
	prog := mustLink(t, s)
	target, _ := s.Target("cpu")
	tp, err := target.SpecializeProgram(context.Background(), prog)
	if err != nil {
		t.Fatalf("SpecializeProgram: %v", err)
	}
	_, err = tp.GetCode(context.Background())
	if !errors.Is(err, session.ErrNoCodeGenerator) {
		t.Fatalf("GetCode(cpu) = %v, want ErrNoCodeGenerator", err)
	}
	if bag, ok := diag.BagOf(err); !ok || !bag.HasCode(diag.GenUnsupportedTarget) {
		t.Fatalf("cpu failure must carry GEN6001")
	}
}

func TestReflectAll(t *testing.T) {
	s, _, _ := newSession(t)
	prog := mustLink(t, s)
	names := []string{"d3d11", "d3d12", "vulkan", "metal", "webgpu", "cpu"}
	tps, err := s.ReflectAll(context.Background(), prog, names)
	if err != nil {
		t.Fatalf("ReflectAll: %v", err)
	}
	for i, tp := range tps {
		if tp == nil || tp.Target().Name() != names[i] {
			t.Fatalf("slot %d = %v, want %s", i, tp, names[i])
		}
	}

	if _, err := s.ReflectAll(context.Background(), prog, []string{"vulkan", "ps2"}); err == nil {
		t.Fatalf("unknown target accepted")
	}
}

func TestClosedSession(t *testing.T) {
	s, _, _ := newSession(t)
	prog := mustLink(t, s)
	target, _ := s.Target("d3d11")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := s.LoadModule(context.Background(), "lighting"); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("LoadModule after Close = %v", err)
	}
	if _, err := target.SpecializeProgram(context.Background(), prog); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("SpecializeProgram after Close = %v", err)
	}
	if _, err := s.Target("vulkan"); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("Target after Close = %v", err)
	}
	if err := s.Close(); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("second Close = %v", err)
	}
}
