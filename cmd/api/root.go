package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/devopsapp/devops-app/internal/config"
)

// application carries what every command needs once configuration is loaded.
type application struct {
	cfg    config.Config
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	app := &application{
		fs:     fs,
		stdout: stdout,
		stderr: stderr,
	}
	var configPath string

	root := &cobra.Command{
		Use:           "api",
		Short:         "DevOps application server",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			// Source order determines precedence. The last source loaded
			// overrides any previous values.
			var sources []*config.Source
			if configPath != "" {
				sources = append(sources, config.NewFileSource(configPath))
			}
			sources = append(sources,
				config.NewAliasEnvVarSource(),
				config.NewEnvVarSource(),
				config.NewPFlagSource(cmd.Flags()),
			)

			cfg, err := config.Load(sources...)
			if err != nil {
				return fmt.Errorf("failed to load configs: %w", err)
			}
			app.cfg = cfg
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config-path", "c", "", "Path to a JSON or YAML config file for this service.")
	flags.String("app.env", "", "The environment name, e.g. 'dev', 'test' or 'prod'.")
	flags.Bool("app.debug", false, "Enable debug mode.")
	flags.StringP("logging.level", "l", "", "The logging level, e.g. 'debug', 'info', 'error', etc. Defaults to debug when app.debug is set, info otherwise")
	flags.BoolP("logging.pretty", "p", false, "Use pretty logging instead of JSON logging.")
	flags.String("database.driver", "", "The database driver, 'sqlite' or 'postgres'.")
	flags.String("database.dsn", "", "The database connection string.")
	flags.String("cache.path", "", "The file cache directory.")

	root.AddCommand(
		newServeCommand(app),
		newRequirementsCommand(app),
		newCacheCommand(app),
		newVersionCommand(app),
	)
	return root
}
