package diag

import "shaderrefl/internal/source"

type dedupKey struct {
	code    Code
	sev     Severity
	file    source.FileID
	start   uint32
	end     uint32
	subject string
	msg     string
}

// DedupReporter wraps another Reporter and suppresses duplicates with the
// same code, severity, primary span, subject and message. Compose reports
// each conflicting pair from both sides; this keeps one copy.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	key := dedupKey{
		code:    d.Code,
		sev:     d.Severity,
		file:    d.Primary.File,
		start:   d.Primary.Start,
		end:     d.Primary.End,
		subject: d.Subject,
		msg:     d.Message,
	}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(d)
	}
}
