package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"shaderrefl/internal/source"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Where    string
	Line     uint32
	Column   uint32
	Message  string
}

// FormatShort renders diagnostics one per line in a stable order:
//
//	error LNK3001 lighting.toml:3:9 conflicting definitions of Light
//
// Diagnostics without a usable span fall back to their Subject.
func FormatShort(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	rendered := make([]shortDiagnostic, 0, len(diags))
	for _, d := range diags {
		rendered = append(rendered, renderOne(d.Severity.String(), d.Code, d.Primary, d.Subject, d.Message, fs))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			rendered = append(rendered, renderOne("note", d.Code, n.Span, d.Subject, n.Msg, fs))
		}
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Where != dj.Where {
			return di.Where < dj.Where
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		return di.Code < dj.Code
	})

	var b strings.Builder
	for i, d := range rendered {
		if d.Line > 0 {
			fmt.Fprintf(&b, "%s %s %s:%d:%d %s", d.Severity, d.Code, d.Where, d.Line, d.Column, d.Message)
		} else {
			fmt.Fprintf(&b, "%s %s %s %s", d.Severity, d.Code, d.Where, d.Message)
		}
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderOne(sev string, code Code, sp source.Span, subject, msg string, fs *source.FileSet) shortDiagnostic {
	out := shortDiagnostic{
		Severity: sev,
		Code:     code.ID(),
		Message:  sanitizeMessage(msg),
	}
	if fs != nil && !sp.Empty() {
		if f := fs.Get(sp.File); f != nil {
			start, _ := fs.Resolve(sp)
			out.Where = filepath.ToSlash(f.Path)
			out.Line = start.Line
			out.Column = start.Col
			return out
		}
	}
	out.Where = subject
	if out.Where == "" {
		out.Where = "-"
	}
	return out
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
