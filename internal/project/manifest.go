package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest is a loaded shaderrefl.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest sections.
type Config struct {
	Project ProjectConfig `toml:"project"`
	Cache   CacheConfig   `toml:"cache"`
}

// ProjectConfig is the [project] section.
type ProjectConfig struct {
	Name string `toml:"name"`
	// Modules are the root modules to link; their imports follow.
	Modules []string `toml:"modules"`
	// ModuleDirs are searched for descriptions, relative to the root.
	ModuleDirs  []string `toml:"module_dirs"`
	EntryPoints []string `toml:"entry_points"`
	Targets     []string `toml:"targets"`
}

// CacheConfig is the [cache] section. The cache is on unless disabled.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// LoadManifest finds and loads the manifest above startDir.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig parses and validates one manifest file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return Config{}, fmt.Errorf("%s: missing [project]", path)
	}
	if !meta.IsDefined("project", "name") || strings.TrimSpace(cfg.Project.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [project].name", path)
	}
	if len(cfg.Project.Modules) == 0 {
		return Config{}, fmt.Errorf("%s: [project].modules is empty", path)
	}
	for i, m := range cfg.Project.Modules {
		name, err := NormalizeModuleName(m)
		if err != nil {
			return Config{}, fmt.Errorf("%s: [project].modules: %w", path, err)
		}
		cfg.Project.Modules[i] = name
	}
	if !meta.IsDefined("cache", "enabled") {
		cfg.Cache.Enabled = true
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

// ModuleDirs returns the absolute description directories; the project
// root when none are configured.
func (m *Manifest) ModuleDirs() []string {
	if len(m.Config.Project.ModuleDirs) == 0 {
		return []string{m.Root}
	}
	out := make([]string, 0, len(m.Config.Project.ModuleDirs))
	for _, d := range m.Config.Project.ModuleDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(m.Root, filepath.FromSlash(d))
		}
		out = append(out, d)
	}
	return out
}

// CacheDir returns the configured cache directory, absolute, or "" for the
// default location.
func (m *Manifest) CacheDir() string {
	d := m.Config.Cache.Dir
	if d == "" || filepath.IsAbs(d) {
		return d
	}
	return filepath.Join(m.Root, filepath.FromSlash(d))
}
