package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devopsapp/devops-app/internal/requirements"
)

func newRequirementsCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "requirements",
		Short: "Check that this host can run the application",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, runErr := requirements.NewChecker(app.cfg, app.fs).Run(cmd.Context())

			// Display the report even if a check failed
			if err := requirements.Write(app.stdout, results); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			return runErr
		},
	}
}
