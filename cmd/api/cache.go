package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devopsapp/devops-app/internal/cache"
)

func newCacheCommand(app *application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the file cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "gc",
			Short: "Remove expired cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.collectCache(cmd, true)
			},
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Remove all cache entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.collectCache(cmd, false)
			},
		},
	)
	return cmd
}

func (a *application) collectCache(cmd *cobra.Command, expiredOnly bool) error {
	fc, err := cache.NewFileCache(a.fs, cache.FileConfig{Path: a.cfg.Cache.Path})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	removed, err := fc.GC(cmd.Context(), expiredOnly)
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}

	fmt.Fprintf(a.stdout, "Removed %d entries from %s\n", removed, fc.Dir())
	return nil
}
