package main

import (
	"fmt"
	"io"
	"time"

	"shaderrefl/internal/pipeline"
)

func printTimings(out io.Writer, res *pipeline.Result) {
	if out == nil || res == nil {
		return
	}
	for _, stage := range []pipeline.Stage{pipeline.StageLoad, pipeline.StageLink} {
		if res.Timings.Has(stage) {
			fmt.Fprintf(out, "%-10s %8.1f ms\n", stage, toMillis(res.Timings.Duration(stage)))
		}
	}
	for _, tr := range res.Targets {
		if tr.Cached {
			fmt.Fprintf(out, "%-10s   cached\n", tr.Target)
			continue
		}
		total := tr.Timings.Sum(pipeline.TargetStages...)
		fmt.Fprintf(out, "%-10s %8.1f ms", tr.Target, toMillis(total))
		for _, stage := range pipeline.TargetStages {
			if tr.Timings.Has(stage) {
				fmt.Fprintf(out, "  %s %.1f", stage, toMillis(tr.Timings.Duration(stage)))
			}
		}
		fmt.Fprintln(out)
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
