package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shaderrefl/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "shaderrefl",
	Short: "Shader parameter reflection and layout tool",
	Long: `shaderrefl links shader module descriptions, computes parameter layouts
for each target API, extracts descriptor bindings and writes reflection
snapshots.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to collect")
	pf.String("ui", "auto", "progress display (auto|on|off)")

	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	pf.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "ring buffer capacity for ring mode")

	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
