package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"shaderrefl/internal/diag"
	"shaderrefl/internal/diagfmt"
	"shaderrefl/internal/layout"
	"shaderrefl/internal/observ"
	"shaderrefl/internal/pipeline"
	"shaderrefl/internal/project"
	"shaderrefl/internal/snapshot"
	"shaderrefl/internal/version"
)

var reflectCmd = &cobra.Command{
	Use:   "reflect [module...]",
	Short: "Link modules and write reflection snapshots per target",
	Long: `Link the named module descriptions (or the modules listed in
shaderrefl.toml), compute parameter layouts and descriptor bindings for each
target and write one snapshot per target. Without --out the JSON snapshots
are written to stdout.`,
	RunE: runReflect,
}

func init() {
	f := reflectCmd.Flags()
	f.StringSliceP("dir", "I", nil, "directories searched for module descriptions")
	f.StringSliceP("target", "t", nil, "targets to reflect for ("+strings.Join(layout.TargetNames(), "|")+")")
	f.StringSliceP("entry", "e", nil, "entry points to link (default: all)")
	f.Bool("codegen", false, "generate target code next to each snapshot")
	f.String("format", "json", "snapshot format (json|msgpack)")
	f.StringP("out", "o", "", "output directory for snapshots and code")
	f.Bool("no-cache", false, "bypass the snapshot cache")
	f.String("cache-dir", "", "snapshot cache directory")
	f.Int("jobs", 0, "targets processed in parallel (0=auto)")
	f.String("diag-format", "pretty", "diagnostics format (pretty|short|json|sarif)")
	f.Bool("with-notes", false, "include diagnostic notes")
	f.String("metrics", "", "write Prometheus metrics to file after the run")
}

type reflectOptions struct {
	modules     []string
	dirs        []string
	targets     []string
	entryPoints []string
	codegen     bool
	format      snapshot.Format
	out         string
	noCache     bool
	cacheDir    string
	jobs        int
	diagFormat  string
	withNotes   bool
	metrics     string
}

func readReflectOptions(cmd *cobra.Command, args []string) (reflectOptions, error) {
	f := cmd.Flags()
	opts := reflectOptions{modules: args}
	var err error
	if opts.dirs, err = f.GetStringSlice("dir"); err != nil {
		return opts, err
	}
	if opts.targets, err = f.GetStringSlice("target"); err != nil {
		return opts, err
	}
	if opts.entryPoints, err = f.GetStringSlice("entry"); err != nil {
		return opts, err
	}
	if opts.codegen, err = f.GetBool("codegen"); err != nil {
		return opts, err
	}
	formatStr, err := f.GetString("format")
	if err != nil {
		return opts, err
	}
	if opts.format, err = snapshot.ParseFormat(formatStr); err != nil {
		return opts, err
	}
	if opts.out, err = f.GetString("out"); err != nil {
		return opts, err
	}
	if opts.noCache, err = f.GetBool("no-cache"); err != nil {
		return opts, err
	}
	if opts.cacheDir, err = f.GetString("cache-dir"); err != nil {
		return opts, err
	}
	if opts.jobs, err = f.GetInt("jobs"); err != nil {
		return opts, err
	}
	if opts.diagFormat, err = f.GetString("diag-format"); err != nil {
		return opts, err
	}
	switch opts.diagFormat {
	case "pretty", "short", "json", "sarif":
	default:
		return opts, fmt.Errorf("unknown diagnostics format %q (expected pretty|short|json|sarif)", opts.diagFormat)
	}
	if opts.withNotes, err = f.GetBool("with-notes"); err != nil {
		return opts, err
	}
	if opts.metrics, err = f.GetString("metrics"); err != nil {
		return opts, err
	}
	if opts.format == snapshot.FormatMsgpack && opts.out == "" {
		return opts, fmt.Errorf("msgpack snapshots need --out")
	}
	return opts, nil
}

// applyManifest fills whatever the command line left open from the
// project manifest. Command line values win.
func (o *reflectOptions) applyManifest(m *project.Manifest) {
	if m == nil {
		return
	}
	cfg := m.Config
	if len(o.modules) == 0 {
		o.modules = cfg.Project.Modules
	}
	if len(o.dirs) == 0 {
		o.dirs = m.ModuleDirs()
	}
	if len(o.targets) == 0 {
		o.targets = cfg.Project.Targets
	}
	if len(o.entryPoints) == 0 {
		o.entryPoints = cfg.Project.EntryPoints
	}
	if !cfg.Cache.Enabled {
		o.noCache = true
	}
	if o.cacheDir == "" {
		o.cacheDir = m.CacheDir()
	}
}

func (o *reflectOptions) validate() error {
	if len(o.modules) == 0 {
		return fmt.Errorf("no modules given and no %s found", project.ManifestName)
	}
	if len(o.targets) == 0 {
		return fmt.Errorf("no targets given (use --target)")
	}
	for _, t := range o.targets {
		if _, err := layout.LookupTarget(t); err != nil {
			return err
		}
	}
	if len(o.dirs) == 0 {
		o.dirs = []string{"."}
	}
	return nil
}

func (o *reflectOptions) openCache() (*snapshot.DiskCache, error) {
	if o.noCache {
		return nil, nil
	}
	if o.cacheDir != "" {
		return snapshot.OpenDiskCacheAt(o.cacheDir)
	}
	return snapshot.OpenDiskCache("shaderrefl")
}

func runReflect(cmd *cobra.Command, args []string) (err error) {
	opts, err := readReflectOptions(cmd, args)
	if err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	manifest, _, err := project.LoadManifest(wd)
	if err != nil {
		return err
	}
	opts.applyManifest(manifest)
	if err := opts.validate(); err != nil {
		return err
	}

	pf := cmd.Root().PersistentFlags()
	quiet, _ := pf.GetBool("quiet")
	showTimings, _ := pf.GetBool("timings")
	maxDiagnostics, _ := pf.GetInt("max-diagnostics")
	uiFlag, _ := pf.GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	colorFlag, _ := pf.GetString("color")
	useColor, err := readColor(colorFlag, os.Stderr)
	if err != nil {
		return err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()
	tracer, stopTracing, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer stopTracing()

	cache, err := opts.openCache()
	if err != nil {
		// The run still works without a cache.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: snapshot cache disabled: %v\n", err)
		cache = nil
	}

	var metrics *observ.LayoutMetrics
	var registry *prometheus.Registry
	if opts.metrics != "" {
		registry = prometheus.NewRegistry()
		metrics = observ.NewLayoutMetrics()
		metrics.MustRegister(registry)
	}

	req := &pipeline.Request{
		Modules:        opts.modules,
		Dirs:           opts.dirs,
		EntryPoints:    opts.entryPoints,
		Targets:        opts.targets,
		Codegen:        opts.codegen,
		Cache:          cache,
		MaxDiagnostics: maxDiagnostics,
		Jobs:           opts.jobs,
		Tracer:         tracer,
		Metrics:        metrics,
	}

	var res *pipeline.Result
	var runErr error
	if !quiet && opts.out != "" && shouldUseTUI(mode) {
		res, runErr = runReflectWithUI(cmd.Context(), "reflect "+strings.Join(opts.modules, ", "), req)
	} else {
		res, runErr = pipeline.Reflect(cmd.Context(), req)
	}
	if runErr != nil {
		dumpTraceRing(cmd.ErrOrStderr(), tracer)
	}
	if res == nil {
		return runErr
	}

	// Machine-readable formats carry the timings with the diagnostics.
	structured := opts.diagFormat == "json" || opts.diagFormat == "sarif"
	if showTimings && structured {
		res.Diagnostics.Add(res.TimingsDiagnostic())
	}
	if err := printDiagnostics(cmd.ErrOrStderr(), res, opts, useColor, args); err != nil {
		return err
	}
	if err := writeOutputs(cmd.OutOrStdout(), res, opts); err != nil {
		return err
	}
	if registry != nil {
		if err := writeMetrics(opts.metrics, registry); err != nil {
			return err
		}
	}
	if !quiet {
		printSummary(cmd.ErrOrStderr(), res)
	}
	if showTimings && !structured {
		printTimings(cmd.ErrOrStderr(), res)
	}
	if runErr != nil {
		return runErr
	}
	if res.Diagnostics.HasErrors() {
		return errors.New("reflection reported errors")
	}
	return nil
}

func printDiagnostics(w io.Writer, res *pipeline.Result, opts reflectOptions, useColor bool, args []string) error {
	bag := res.Diagnostics
	if bag == nil || (bag.Len() == 0 && opts.diagFormat != "sarif") {
		return nil
	}
	bag.Sort()
	fs := res.Files
	base, _ := os.Getwd()
	switch opts.diagFormat {
	case "short":
		_, err := fmt.Fprintln(w, diag.FormatShort(bag.Items(), fs, opts.withNotes))
		return err
	case "json":
		return diagfmt.JSON(w, bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeAuto,
			BaseDir:          base,
			IncludeNotes:     opts.withNotes,
		})
	case "sarif":
		return diagfmt.Sarif(w, bag, fs, diagfmt.SarifRunMeta{
			ToolName:       "shaderrefl",
			ToolVersion:    version.Version,
			InvocationArgs: append([]string{"reflect"}, args...),
			BaseDir:        base,
		})
	default:
		return diagfmt.Pretty(w, bag, fs, diagfmt.PrettyOpts{
			Color:     useColor,
			PathMode:  diagfmt.PathModeAuto,
			BaseDir:   base,
			ShowNotes: opts.withNotes,
		})
	}
}

// writeOutputs writes <target>.<format> snapshots and generated code into
// --out, or the JSON snapshots to stdout when --out is empty.
func writeOutputs(stdout io.Writer, res *pipeline.Result, opts reflectOptions) error {
	if opts.out == "" {
		for _, tr := range res.Targets {
			if tr.Snapshot == nil {
				continue
			}
			if err := tr.Snapshot.Encode(stdout, snapshot.FormatJSON); err != nil {
				return err
			}
		}
		return nil
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.out, err)
	}
	for _, tr := range res.Targets {
		if tr.Snapshot == nil {
			continue
		}
		data, err := tr.Snapshot.Marshal(opts.format)
		if err != nil {
			return fmt.Errorf("%s: %w", tr.Target, err)
		}
		path := filepath.Join(opts.out, tr.Target+"."+opts.format.String())
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if len(tr.Code) == 0 {
			continue
		}
		path = filepath.Join(opts.out, tr.Target+codeExt(tr.Target))
		if err := os.WriteFile(path, tr.Code, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func codeExt(target string) string {
	t, err := layout.LookupTarget(target)
	if err != nil {
		return ".bin"
	}
	switch t {
	case layout.TargetWebGPU:
		return ".wgsl"
	case layout.TargetVulkan:
		return ".spv"
	case layout.TargetD3D11, layout.TargetD3D12:
		return ".hlsl"
	case layout.TargetMetal:
		return ".metal"
	}
	return ".bin"
}

func printSummary(w io.Writer, res *pipeline.Result) {
	for _, tr := range res.Targets {
		switch {
		case tr.Err != nil:
			fmt.Fprintf(w, "%-8s failed: %v\n", tr.Target, tr.Err)
		case tr.Snapshot != nil:
			ranges := 0
			for _, p := range tr.Snapshot.Parameters {
				if p.Bindings != nil {
					ranges += len(p.Bindings.Ranges)
				}
			}
			note := ""
			if tr.Cached {
				note = " (cached)"
			}
			fmt.Fprintf(w, "%-8s %d parameters, %d binding ranges, %d entry points%s\n",
				tr.Target, len(tr.Snapshot.Parameters), ranges, len(tr.Snapshot.EntryPoints), note)
		}
	}
}

func writeMetrics(path string, g prometheus.Gatherer) (err error) {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return err
		}
	}
	return nil
}
