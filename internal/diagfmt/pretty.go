package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/source"
)

type palette struct {
	err, warn, info, note, path, gutter, caret *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		note:   color.New(color.FgGreen),
		path:   color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		caret:  color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.path, p.gutter, p.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders the bag in order (call bag.Sort first for a stable
// order). Each diagnostic is printed as
//
//	<path>:<line>:<col>: <severity> <code>: <message>
//
// followed by the quoted source line with the span underlined. Diagnostics
// without a position use their subject in place of the path.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	if bag == nil {
		return nil
	}
	p := newPalette(opts.Color)
	var b strings.Builder
	for _, d := range bag.Items() {
		fmt.Fprintf(&b, "%s: %s %s: %s\n",
			p.path.Sprint(where(fs, d.Primary, d.Subject, opts)),
			p.severity(d.Severity).Sprint(d.Severity),
			d.Code.ID(),
			d.Message)
		quote(&b, fs, d.Primary, opts, p)
		if d.Cause != nil && !strings.Contains(d.Message, d.Cause.Error()) {
			fmt.Fprintf(&b, "  %s %v\n", p.note.Sprint("caused by:"), d.Cause)
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "  %s %s: %s\n", p.note.Sprint("note:"), where(fs, n.Span, d.Subject, opts), n.Msg)
			quote(&b, fs, n.Span, opts, p)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func where(fs *source.FileSet, sp source.Span, subject string, opts PrettyOpts) string {
	if f := fileOf(fs, sp); f != nil {
		start, _ := fs.Resolve(sp)
		return fmt.Sprintf("%s:%d:%d", formatPath(f, opts.PathMode, opts.BaseDir), start.Line, start.Col)
	}
	if subject != "" {
		return subject
	}
	return "-"
}

func quote(b *strings.Builder, fs *source.FileSet, sp source.Span, opts PrettyOpts, p palette) {
	f := fileOf(fs, sp)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	ctx := uint32(max(opts.Context, 0))
	first := start.Line - min(ctx, start.Line-1)
	last := start.Line + ctx
	gutterWidth := len(fmt.Sprint(last))
	blank := strings.Repeat(" ", gutterWidth)

	for n := first; n <= last; n++ {
		line := f.GetLine(n)
		if n > start.Line && line == "" {
			break
		}
		line = strings.TrimRight(line, "\r")
		shown := line
		if opts.Width > 0 {
			shown = runewidth.Truncate(shown, int(opts.Width), "...")
		}
		fmt.Fprintf(b, "%s %s\n", p.gutter.Sprintf("%*d |", gutterWidth, n), shown)
		if n != start.Line {
			continue
		}
		from := int(start.Col) - 1
		to := len(line)
		if end.Line == start.Line {
			to = int(end.Col) - 1
		}
		from = min(from, len(line))
		to = max(min(to, len(line)), from+1)
		pad := runewidth.StringWidth(line[:from])
		mark := "^" + strings.Repeat("~", max(runewidth.StringWidth(line[from:min(to, len(line))])-1, 0))
		fmt.Fprintf(b, "%s %s%s\n", p.gutter.Sprint(blank+" |"), strings.Repeat(" ", pad), p.caret.Sprint(mark))
	}
}
