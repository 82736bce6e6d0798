// Package diag defines the diagnostic model shared by the description
// loader, the linker, the layout engine and code generation.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error (severity.go).
//   - Code: compact numeric identifier with a stable string form (codes.go).
//   - Message: short, actionable text.
//   - Primary: source.Span into a module description, when one is known.
//   - Subject: the entity the diagnostic is about ("lighting.Light"), used when
//     the entity was built programmatically and has no span.
//   - Notes: secondary spans/messages; each note must add context rather than
//     repeat the message.
//   - Cause: optional sentinel error so callers can match with errors.Is.
//
// # Emitting diagnostics
//
// Producers report through a Reporter. ReportError / ReportWarning /
// ReportInfo return a ReportBuilder that collects notes and a cause before
// Emit. BagReporter stores diagnostics in a bounded Bag, which supports
// sorting, deduplication and merging. A Bag with errors is turned into a
// regular Go error with AsError; the resulting *Failure unwraps to every
// attached Cause.
//
// Link and layout failures are collected, not fail-fast: a single compose or
// link call reports every conflict it finds.
package diag
