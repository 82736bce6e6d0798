package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Bag is a bounded collection of diagnostics. Not safe for concurrent use;
// each producer owns its bag and results are merged afterwards.
type Bag struct {
	items []Diagnostic
	max   uint16
}

// NewBag returns a bag holding at most max diagnostics; max <= 0 means
// as many as a bag can hold.
func NewBag(max int) *Bag {
	if max <= 0 || max > 0xFFFF {
		max = 0xFFFF
	}
	return &Bag{
		items: make([]Diagnostic, 0, min(max, 16)),
		max:   uint16(max), // #nosec G115 -- clamped above
	}
}

// Add appends d unless the limit is reached.
// Возвращает false, если диагностика не добавлена.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() uint16 {
	return b.max
}

// HasErrors reports whether at least one diagnostic is SevError.
func (b *Bag) HasErrors() bool {
	if b == nil {
		return false
	}
	for i := range b.items {
		if b.items[i].Severity.AtLeast(SevError) {
			return true
		}
	}
	return false
}

// HasWarnings reports whether at least one diagnostic is SevWarning or worse.
func (b *Bag) HasWarnings() bool {
	if b == nil {
		return false
	}
	for i := range b.items {
		if b.items[i].Severity.AtLeast(SevWarning) {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items returns the backing slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	if b == nil {
		return nil
	}
	return b.items
}

// HasCode reports whether any diagnostic carries code.
func (b *Bag) HasCode(code Code) bool {
	for _, d := range b.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Merge appends all diagnostics of other, growing the limit when needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	newTotal := len(b.items) + len(other.items)
	if newTotal > int(b.max) {
		b.max = uint16(min(newTotal, 0xFFFF)) // #nosec G115
	}
	for _, d := range other.items {
		b.Add(d)
	}
}

// Sort orders by file, start, end, severity (desc), code, subject.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Subject < dj.Subject
	})
}

// Dedup drops repeated (code, span, subject, message) entries.
func (b *Bag) Dedup() {
	seen := make(map[string]bool, len(b.items))
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		key := fmt.Sprintf("%d:%s:%s:%s", d.Code, d.Primary.String(), d.Subject, d.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	b.items = out
}

// Failure is the error form of a Bag that holds errors.
type Failure struct {
	Bag *Bag
}

// AsError returns nil when b has no errors, otherwise a *Failure.
func AsError(b *Bag) error {
	if !b.HasErrors() {
		return nil
	}
	return &Failure{Bag: b}
}

func (f *Failure) Error() string {
	var errs []string
	for _, d := range f.Bag.Items() {
		if d.Severity < SevError {
			continue
		}
		msg := d.Message
		if d.Subject != "" {
			msg = d.Subject + ": " + msg
		}
		errs = append(errs, fmt.Sprintf("%s %s", d.Code.ID(), msg))
	}
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0]
	}
	return fmt.Sprintf("%s (and %d more)", errs[0], len(errs)-1)
}

// Unwrap exposes every attached cause, so errors.Is matches any of them.
func (f *Failure) Unwrap() []error {
	var out []error
	for _, d := range f.Bag.Items() {
		if d.Cause != nil {
			out = append(out, d.Cause)
		}
	}
	return out
}

// BagOf extracts the diagnostics carried by err, if any.
func BagOf(err error) (*Bag, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Bag, true
	}
	return nil, false
}

// Summary renders every message on its own line; used in test failures.
func (b *Bag) Summary() string {
	var sb strings.Builder
	for i, d := range b.Items() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %s %s", d.Severity, d.Code.ID(), d.Message)
	}
	return sb.String()
}
