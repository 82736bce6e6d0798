// Package trace records what the reflection pipeline is doing: which pass
// runs, which target is being laid out, which entity is being computed.
//
// Enable it from the command line:
//
//	shaderrefl layout --trace=- --trace-level=detail lighting.toml
//
// Tracers:
//
//   - Nop: zero overhead when tracing is off
//   - StreamTracer: writes every event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events for dumping after a failure
//   - MultiTracer: fans out to several tracers
//
// Levels gate scopes: LevelPhase shows session and pass spans, LevelDetail
// adds per-target spans, LevelDebug adds per-entity layout spans.
//
// Tracers travel through context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "link", 0)
//	defer span.End("")
package trace
