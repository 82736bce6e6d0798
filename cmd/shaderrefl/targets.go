package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shaderrefl/internal/layout"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the targets layouts can be computed for",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

func init() {
	targetsCmd.Flags().String("format", "table", "output format (table|json)")
}

type targetInfo struct {
	Name         string `json:"name"`
	Spaces       bool   `json:"spaces"`
	UniformRules string `json:"uniform_rules"`
	DefaultRules string `json:"default_rules"`
	BufferKind   string `json:"buffer_kind"`
	MatrixMode   string `json:"matrix_mode"`
}

func runTargets(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	infos := make([]targetInfo, 0, len(layout.Targets()))
	for _, t := range layout.Targets() {
		infos = append(infos, targetInfo{
			Name:         t.Name,
			Spaces:       t.HasSpaces,
			UniformRules: t.UniformRules.String(),
			DefaultRules: t.DefaultRules.String(),
			BufferKind:   t.BufferKind.String(),
			MatrixMode:   t.MatrixMode.String(),
		})
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "table":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tSPACES\tUNIFORM\tDEFAULT\tBUFFER\tMATRIX")
		for _, t := range infos {
			fmt.Fprintf(tw, "%s\t%v\t%s\t%s\t%s\t%s\n", t.Name, t.Spaces, t.UniformRules, t.DefaultRules, t.BufferKind, t.MatrixMode)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format %q (must be table or json)", format)
	}
}
