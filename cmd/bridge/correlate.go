package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/bridge"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/correlate"
)

func newCorrelateCmd(opts *rootOptions) *cobra.Command {
	var (
		file string
		at   string
	)

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate a JSON snapshot and print the decisions",
		Long: `correlate reads a snapshot {"events": [...], "forecasts": [...], "mappings": [...]}
from --file (or stdin when omitted or "-") and prints the pass report as JSON.
Nothing is stored or sent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var batch contracts.Batch
			if err := json.NewDecoder(in).Decode(&batch); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}

			var copts []correlate.Option
			if at != "" {
				now, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				copts = append(copts, correlate.WithClock(func() time.Time { return now }))
			}

			engine, err := bridge.NewEngine(opts.cfg.Policy,
				bridge.WithLogger(opts.logger),
				bridge.WithCorrelator(correlate.New(copts...)))
			if err != nil {
				return err
			}
			report, err := engine.Run(cmd.Context(), batch)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time stamped on decisions")
	return cmd
}
