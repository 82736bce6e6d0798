package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shaderrefl/internal/project"
	"shaderrefl/internal/snapshot"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached reflection snapshots",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().String("cache-dir", "", "snapshot cache directory")
}

func runClean(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		manifest, ok, err := project.LoadManifest(wd)
		if err != nil {
			return err
		}
		if ok {
			dir = manifest.CacheDir()
		}
	}

	var cache *snapshot.DiskCache
	if dir != "" {
		cache, err = snapshot.OpenDiskCacheAt(dir)
	} else {
		cache, err = snapshot.OpenDiskCache("shaderrefl")
	}
	if err != nil {
		return err
	}
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", cache.Dir(), err)
	}
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cache.Dir())
	}
	return nil
}
