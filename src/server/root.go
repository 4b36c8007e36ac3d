package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/veedubyou/stem-splitter/src/shared/config"
	"github.com/veedubyou/stem-splitter/src/shared/lib/env"
	"github.com/veedubyou/stem-splitter/src/shared/lib/logging"
)

type commandContext struct {
	configPath string
	config     *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}

	cfg, err := config.Load(c.configPath, env.Get())
	if err != nil {
		return nil, err
	}

	if err := logging.Configure(os.Stderr, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}

	c.config = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "stem-splitter",
		Short:         "Separates uploaded audio into stems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSeparateCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
