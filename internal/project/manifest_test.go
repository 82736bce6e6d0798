package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoadManifestSearchesUpwards(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "demo"
modules = ["lighting.toml", "post/bloom"]
module_dirs = ["shaders"]
targets = ["d3d12", "vulkan"]

[cache]
dir = ".cache"
`)
	nested := filepath.Join(root, "shaders", "post")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, ok, err := LoadManifest(nested)
	if err != nil || !ok {
		t.Fatalf("LoadManifest = %v, %v", ok, err)
	}
	if m.Config.Project.Name != "demo" {
		t.Fatalf("name = %q", m.Config.Project.Name)
	}
	if got := strings.Join(m.Config.Project.Modules, ","); got != "lighting,post/bloom" {
		t.Fatalf("modules = %s", got)
	}
	if dirs := m.ModuleDirs(); len(dirs) != 1 || dirs[0] != filepath.Join(root, "shaders") {
		t.Fatalf("module dirs = %v", dirs)
	}
	if !m.Config.Cache.Enabled {
		t.Fatalf("cache must default to enabled")
	}
	if m.CacheDir() != filepath.Join(root, ".cache") {
		t.Fatalf("cache dir = %s", m.CacheDir())
	}
}

func TestLoadConfigRejectsBadManifests(t *testing.T) {
	cases := map[string]string{
		"no project":  `[cache]` + "\nenabled = false\n",
		"no name":     "[project]\nmodules = [\"a\"]\n",
		"no modules":  "[project]\nname = \"x\"\n",
		"bad module":  "[project]\nname = \"x\"\nmodules = [\"a//b\"]\n",
		"unknown key": "[project]\nname = \"x\"\nmodules = [\"a\"]\nmain = \"a\"\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		writeManifest(t, dir, body)
		if _, err := LoadConfig(filepath.Join(dir, ManifestName)); err == nil {
			t.Fatalf("%s: manifest accepted", name)
		}
	}
}

func TestFindManifestMissing(t *testing.T) {
	_, ok, err := FindManifest(t.TempDir())
	if err != nil {
		t.Fatalf("FindManifest: %v", err)
	}
	if ok {
		t.Skip("a shaderrefl.toml exists above the temp dir")
	}
}
