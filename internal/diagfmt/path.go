package diagfmt

import (
	"path/filepath"
	"strings"

	"shaderrefl/internal/source"
)

func formatPath(f *source.File, mode PathMode, base string) string {
	if f == nil {
		return ""
	}
	p := filepath.FromSlash(f.Path)
	switch mode {
	case PathModeBasename:
		return filepath.Base(p)
	case PathModeAbsolute:
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		return filepath.ToSlash(p)
	case PathModeRelative, PathModeAuto:
		if base == "" {
			return filepath.ToSlash(p)
		}
		rel, err := filepath.Rel(base, p)
		if err != nil || (mode == PathModeAuto && strings.HasPrefix(rel, "..")) {
			return filepath.ToSlash(p)
		}
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}

// fileOf returns the file sp points into, or nil when sp carries no
// position.
func fileOf(fs *source.FileSet, sp source.Span) *source.File {
	if fs == nil || sp.Empty() {
		return nil
	}
	return fs.Get(sp.File)
}
