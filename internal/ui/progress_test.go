package ui

import (
	"errors"
	"strings"
	"testing"

	"shaderrefl/internal/pipeline"
)

func TestProgressModelTracksTargets(t *testing.T) {
	events := make(chan pipeline.Event)
	m := NewProgressModel("reflect scene", []string{"vulkan", "d3d11"}, events).(*progressModel)

	m.applyEvent(pipeline.Event{Stage: pipeline.StageLink, Status: pipeline.StatusWorking})
	if m.stageLabel != "linking" {
		t.Fatalf("stage label = %q", m.stageLabel)
	}

	m.applyEvent(pipeline.Event{Target: "vulkan", Stage: pipeline.StageLayout, Status: pipeline.StatusWorking})
	m.applyEvent(pipeline.Event{Target: "vulkan", Stage: pipeline.StageLayout, Status: pipeline.StatusDone})
	if got := m.items[0].status; got != "layout" {
		t.Fatalf("vulkan after layout = %q", got)
	}
	m.applyEvent(pipeline.Event{Target: "vulkan", Stage: pipeline.StageSnapshot, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{Target: "d3d11", Stage: pipeline.StageLayout, Status: pipeline.StatusError, Err: errors.New("binding overlap")})
	m.applyEvent(pipeline.Event{Target: "metal", Stage: pipeline.StageLayout, Status: pipeline.StatusWorking})

	if m.items[0].status != "done" || m.items[1].status != "error" {
		t.Fatalf("items = %+v", m.items)
	}
	view := m.View()
	for _, want := range []string{"reflect scene (linking)", "vulkan", "binding overlap"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "metal") {
		t.Fatalf("unknown target rendered:\n%s", view)
	}

	if _, cmd := m.Update(doneMsg{}); cmd == nil || !m.done {
		t.Fatalf("done message should quit")
	}
	if !strings.Contains(m.View(), "done: reflect scene") {
		t.Fatalf("final view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("vulkan", 20); got != "vulkan" {
		t.Fatalf("short value changed: %q", got)
	}
	if got := truncate("a very long target description", 10); got != "a very ..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("shader", 3); got != "sha" {
		t.Fatalf("tiny width = %q", got)
	}
}
