package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/pipeline"
	"shaderrefl/internal/snapshot"
)

const sceneTOML = `
name = "scene"

[[decl]]
kind = "struct"
name = "Light"

  [[decl.field]]
  name = "color"
  type = "float4"

  [[decl.field]]
  name = "shadowMap"
  type = "Texture2D<float4>"

[[decl]]
kind = "param"
name = "gLight"
type = "ConstantBuffer<Light>"

[[decl]]
kind = "param"
name = "gScale"
type = "float"

[[decl]]
kind = "func"
name = "main"
result = "float4"
semantic = "SV_Target"

  [[decl.param]]
  name = "uv"
  type = "float2"
  semantic = "TEXCOORD0"

[[entry_point]]
name = "main"
stage = "fragment"
`

type recorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (r *recorder) OnEvent(ev pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) saw(target string, stage pipeline.Stage, status pipeline.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Target == target && ev.Stage == stage && ev.Status == status {
			return true
		}
	}
	return false
}

func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scene.toml"), []byte(sceneTOML), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestReflectTargets(t *testing.T) {
	rec := &recorder{}
	res, err := pipeline.Reflect(context.Background(), &pipeline.Request{
		Modules:  []string{"scene"},
		Dirs:     []string{writeScene(t)},
		Targets:  []string{"vulkan", "d3d11", "cpu"},
		Jobs:     2,
		Progress: rec,
	})
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if len(res.Targets) != 3 {
		t.Fatalf("targets = %d", len(res.Targets))
	}
	for i, want := range []string{"vulkan", "d3d11", "cpu"} {
		tr := res.Targets[i]
		if tr.Target != want || tr.Err != nil || tr.Snapshot == nil || tr.Program == nil {
			t.Fatalf("target %d = %+v", i, tr)
		}
		if tr.Snapshot.Target != want {
			t.Fatalf("snapshot target = %s, want %s", tr.Snapshot.Target, want)
		}
		if len(tr.Bindings) != 2 {
			t.Fatalf("%s: %d binding infos, want 2", want, len(tr.Bindings))
		}
		if !tr.Timings.Has(pipeline.StageLayout) || tr.Timings.Has(pipeline.StageCodegen) {
			t.Fatalf("%s: unexpected timings", want)
		}
		if !rec.saw(want, pipeline.StageSnapshot, pipeline.StatusDone) {
			t.Fatalf("%s: no snapshot event", want)
		}
	}
	if !res.Timings.Has(pipeline.StageLoad) || !res.Timings.Has(pipeline.StageLink) {
		t.Fatalf("missing load/link timings")
	}
	if !rec.saw("", pipeline.StageLink, pipeline.StatusDone) {
		t.Fatalf("no link event")
	}

	td := res.TimingsDiagnostic()
	if td.Code != diag.ObsTimings || len(td.Notes) < 2+3*3 {
		t.Fatalf("timings diagnostic = %+v", td)
	}
	if !strings.HasPrefix(td.Notes[2].Msg, "vulkan/layout ") {
		t.Fatalf("first target note = %q", td.Notes[2].Msg)
	}

	d3d := res.Targets[1].Snapshot
	light, ok := d3d.FindParam("gLight")
	if !ok || light.Binding == nil || light.Binding.Kind != "d3d_constant_buffer" {
		t.Fatalf("d3d11 gLight = %+v", light)
	}
}

func TestReflectCodegenAndCache(t *testing.T) {
	dir := writeScene(t)
	cache, err := snapshot.OpenDiskCacheAt(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	req := &pipeline.Request{
		Modules:     []string{"scene"},
		Dirs:        []string{dir},
		EntryPoints: []string{"main"},
		Targets:     []string{"webgpu"},
		Codegen:     true,
		Cache:       cache,
	}
	res, err := pipeline.Reflect(context.Background(), req)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	tr := res.Targets[0]
	if tr.Cached || !strings.Contains(string(tr.Code), "@fragment") {
		t.Fatalf("first run: cached=%v code=%q", tr.Cached, tr.Code)
	}

	rec := &recorder{}
	req.Progress = rec
	res, err = pipeline.Reflect(context.Background(), req)
	if err != nil {
		t.Fatalf("second Reflect: %v", err)
	}
	tr = res.Targets[0]
	if !tr.Cached || tr.Program != nil || string(tr.Code) != string(tr.Snapshot.Code) || len(tr.Code) == 0 {
		t.Fatalf("second run not served from cache: %+v", tr)
	}
	if !rec.saw("webgpu", pipeline.StageSnapshot, pipeline.StatusCached) {
		t.Fatalf("no cached event")
	}

	if err := os.WriteFile(filepath.Join(dir, "scene.toml"), []byte(strings.Replace(sceneTOML, "float4\"\n\n  [[decl.field]]", "float3\"\n\n  [[decl.field]]", 1)), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err = pipeline.Reflect(context.Background(), req)
	if err != nil {
		t.Fatalf("third Reflect: %v", err)
	}
	if res.Targets[0].Cached {
		t.Fatalf("edited description served from cache")
	}
}

func TestReflectFailures(t *testing.T) {
	dir := writeScene(t)
	res, err := pipeline.Reflect(context.Background(), &pipeline.Request{
		Modules: []string{"scene"},
		Dirs:    []string{dir},
		Targets: []string{"vulkan", "gamecube"},
	})
	if err == nil || !strings.Contains(err.Error(), "gamecube") {
		t.Fatalf("unknown target: %v", err)
	}
	if res.Targets[0].Err != nil || res.Targets[0].Snapshot == nil {
		t.Fatalf("vulkan should still succeed: %+v", res.Targets[0])
	}

	if _, err := pipeline.Reflect(context.Background(), &pipeline.Request{
		Modules: []string{"ghost"},
		Dirs:    []string{dir},
		Targets: []string{"vulkan"},
	}); err == nil {
		t.Fatalf("missing module accepted")
	}

	if _, err := pipeline.Reflect(context.Background(), &pipeline.Request{
		Modules:     []string{"scene"},
		Dirs:        []string{dir},
		EntryPoints: []string{"nope"},
		Targets:     []string{"vulkan"},
	}); err == nil {
		t.Fatalf("missing entry point accepted")
	}

	if _, err := pipeline.Reflect(context.Background(), &pipeline.Request{Modules: []string{"scene"}}); err == nil {
		t.Fatalf("request without targets accepted")
	}
}
