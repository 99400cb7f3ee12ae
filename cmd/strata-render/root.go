package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gogpu/strata"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "strata-render",
		Short: "strata-render draws strata scenes offscreen",
		Long: `strata-render renders YAML scene files (shapes, clips, textures and text)
to PNG with the strata software rasterizer.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd, opts.logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "renderer config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error)")

	cmd.AddCommand(newRenderCmd(opts), newConfigCmd(opts), newVersionCmd())
	return cmd
}

func setupLogging(cmd *cobra.Command, level string) error {
	if level == "" {
		strata.SetLogger(nil)
		return nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	strata.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig returns the config file's settings, or the defaults when no
// file was given.
func (o *rootOptions) loadConfig() (strata.Config, error) {
	if o.configPath == "" {
		return strata.DefaultConfig(), nil
	}
	return strata.LoadConfig(o.configPath)
}
