// Command compilerd runs the events compiler for one project: it compiles scene
// events in the background when the editor asks for it over NATS or when a
// scene's events file changes on disk.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	cfg    config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "compilerd",
		Short:        "Background compiler for scene events",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("project") {
				cfg.ProjectFile, _ = cmd.Flags().GetString("project")
			}
			opts.cfg = cfg
			opts.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().String("project", "", "project manifest (overrides PROJECT_FILE)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCompileCommand(opts))
	return cmd
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
