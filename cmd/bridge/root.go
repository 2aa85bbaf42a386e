package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/logging"
)

type rootOptions struct {
	logLevel string
	cfg      config.Config
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "bridge",
		Short: "Correlate maritime delays with retail stockout forecasts",
		Long: `bridge links critical vessel delays to predicted stockouts.

It reads risk alerts, stockout predictions and the vessel to category map,
decides which categories will run out before delayed cargo can restock them,
and sends one consolidated report per run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.cfg = config.Load()
			level := opts.cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = opts.logLevel
			}
			logger, err := logging.New("bridge", level, opts.cfg.LogFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newRunCmd(opts), newSeedMappingCmd(opts), newCorrelateCmd(opts))
	return root
}
