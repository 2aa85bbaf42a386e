package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mapping"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/sheets"
)

func newSeedMappingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-mapping",
		Short: "Write the default vessel to category map to the spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			client, err := sheets.New(cmd.Context(), cfg.GoogleCredentials, cfg.SpreadsheetID, sheets.Tabs{
				RiskAlerts:  cfg.SheetRiskAlerts,
				Predictions: cfg.SheetPredictions,
				Mapping:     cfg.SheetMapping,
			})
			if err != nil {
				return err
			}

			rows := mapping.DefaultVesselMap()
			if err := client.WriteMapping(cmd.Context(), rows); err != nil {
				return err
			}
			opts.logger.Info("supply chain mapping written", zap.String("tab", cfg.SheetMapping), zap.Int("rows", len(rows)))
			return nil
		},
	}
}
