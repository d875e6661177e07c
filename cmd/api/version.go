package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devopsapp/devops-app/internal/sysinfo"
)

type versionInfo struct {
	Version          string `json:"version"`
	BuildTime        string `json:"build_time"`
	GoVersion        string `json:"go_version"`
	FrameworkVersion string `json:"framework_version"`
}

func newVersionCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information and exit",
		// Printing the version needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := json.MarshalIndent(versionInfo{
				Version:          Version,
				BuildTime:        BuildTime,
				GoVersion:        sysinfo.GoVersion(),
				FrameworkVersion: sysinfo.FrameworkVersion(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal version info: %w", err)
			}

			fmt.Fprintln(app.stdout, string(raw))
			return nil
		},
	}
}
