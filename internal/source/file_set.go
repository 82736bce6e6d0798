package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
)

// FileSet keeps module description files and resolves spans into them.
type FileSet struct {
	mu    sync.RWMutex
	files []File
	index map[string]FileID // path -> latest id
}

// NewFileSet creates a new empty FileSet. FileID 0 is a valid file.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0, 8),
		index: make(map[string]FileID),
	}
}

// Add stores already normalized content and returns a fresh FileID, even
// when a file with the same path was added before.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	lineIdx := buildLineIndex(content)
	normalizedPath := normalizePath(path)

	fileSet.mu.Lock()
	defer fileSet.mu.Unlock()
	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: lineIdx,
		Hash:    hash,
		Flags:   flags,
	})
	fileSet.index[normalizedPath] = id
	return id
}

// Load reads a file from disk, strips a BOM, normalizes CRLF and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds in-memory content with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file for id or nil.
func (fileSet *FileSet) Get(id FileID) *File {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return &fileSet.files[id]
}

// GetLatest returns the latest file ID for path.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// Resolve converts a span into line and column positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fileSet.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}
	}
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// SpanOf returns the span of the first occurrence of needle at or after
// from, or an empty span at from when needle is absent.
func (f *File) SpanOf(needle string, from uint32) Span {
	if f == nil || needle == "" || int(from) > len(f.Content) {
		return Span{}
	}
	idx := bytes.Index(f.Content[from:], []byte(needle))
	if idx < 0 {
		return Span{File: f.ID, Start: from, End: from}
	}
	start, err := safecast.Conv[uint32](idx)
	if err != nil {
		return Span{File: f.ID, Start: from, End: from}
	}
	start += from
	n, err := safecast.Conv[uint32](len(needle))
	if err != nil {
		return Span{File: f.ID, Start: start, End: start}
	}
	return Span{File: f.ID, Start: start, End: start + n}
}

// GetLine returns the 1-based line lineNum, or "" past the end.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}
	lines := bytes.Split(f.Content, []byte{'\n'})
	if int(lineNum) > len(lines) {
		return ""
	}
	return string(lines[lineNum-1])
}
