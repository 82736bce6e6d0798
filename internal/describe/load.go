package describe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"sigs.k8s.io/yaml"

	"shaderrefl/internal/source"
)

// Format is the syntax of a description file.
type Format uint8

const (
	FormatTOML Format = iota + 1
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("Format(%d)", f)
}

var (
	// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
	ErrUnknownFormat = errors.New("unknown description format")
	// ErrMissingField marks a description without a required key.
	ErrMissingField = errors.New("missing required field")
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// Decode parses a description. Unknown keys are errors in both formats.
func Decode(data []byte, format Format) (*Module, error) {
	var m Module
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, err
		}
		if !meta.IsDefined("name") {
			return nil, fmt.Errorf("module name: %w", ErrMissingField)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %s", undecoded[0])
		}
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownFormat
	}
	if strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("module name: %w", ErrMissingField)
	}
	return &m, nil
}

// LoadFile reads path into fs and decodes it. The module keeps the file
// so that diagnostics can point into it.
func LoadFile(fs *source.FileSet, path string) (*Module, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	return decodeFile(fs.Get(id), format)
}

func decodeFile(f *source.File, format Format) (*Module, error) {
	m, err := Decode(f.Content, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	m.File = f
	return m, nil
}
