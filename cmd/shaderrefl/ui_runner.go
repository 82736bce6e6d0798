package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shaderrefl/internal/pipeline"
	"shaderrefl/internal/ui"
)

type reflectOutcome struct {
	result *pipeline.Result
	err    error
}

func runReflectWithUI(ctx context.Context, title string, req *pipeline.Request) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan reflectOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Reflect(ctx, &reqCopy)
		outcomeCh <- reflectOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Targets, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The program returns early on ctrl-c; stop the run and drain it.
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
