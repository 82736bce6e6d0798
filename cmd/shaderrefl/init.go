package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"shaderrefl/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a shaderrefl project",
	Long: `Create a project manifest (shaderrefl.toml) and a sample module
description. If [path|name] is omitted the current directory is used; a
missing directory is created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var projectNameRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	target := wd
	if len(args) > 0 && args[0] != "." {
		target = args[0]
		if !filepath.IsAbs(target) {
			target = filepath.Join(wd, target)
		}
	}

	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	name := strings.Trim(projectNameRe.ReplaceAllString(filepath.Base(target), "-"), "-")
	if name == "" {
		name = "shaders"
	}

	manifestPath := filepath.Join(target, project.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}
	if err := os.WriteFile(manifestPath, []byte(defaultManifest(name)), 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	scenePath := filepath.Join(target, "shaders", "scene.toml")
	createdScene := false
	if _, err := os.Stat(scenePath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(scenePath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(scenePath, []byte(defaultScene), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", scenePath, err)
		}
		createdScene = true
	}

	rel := target
	if r, err := filepath.Rel(wd, target); err == nil {
		rel = r
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized shaderrefl project in %s\n", rel)
	fmt.Fprintf(out, "  - %s\n", project.ManifestName)
	if createdScene {
		fmt.Fprintln(out, "  - shaders/scene.toml")
	} else {
		fmt.Fprintln(out, "  - shaders/scene.toml (existing)")
	}
	return nil
}

func defaultManifest(name string) string {
	return fmt.Sprintf(`# shaderrefl project manifest
[project]
name = %q
modules = ["scene"]
module_dirs = ["shaders"]
targets = ["vulkan", "d3d12"]

[cache]
enabled = true
`, name)
}

const defaultScene = `name = "scene"

[[decl]]
kind = "struct"
name = "Material"

  [[decl.field]]
  name = "albedo"
  type = "float4"

  [[decl.field]]
  name = "albedoMap"
  type = "Texture2D<float4>"

[[decl]]
kind = "param"
name = "gMaterial"
type = "ConstantBuffer<Material>"

[[decl]]
kind = "param"
name = "gSampler"
type = "SamplerState"

[[decl]]
kind = "func"
name = "fsMain"
result = "float4"
semantic = "SV_Target"

  [[decl.param]]
  name = "uv"
  type = "float2"
  semantic = "TEXCOORD0"

[[entry_point]]
name = "fsMain"
stage = "fragment"
`
