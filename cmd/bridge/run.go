package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/bridge"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/ledger"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/metrics"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/notify"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/sheets"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass over the spreadsheet and notify new conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), opts, dryRun, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the report instead of sending it; the ledger is left untouched")
	return cmd
}

func runOnce(ctx context.Context, opts *rootOptions, dryRun bool, out io.Writer) error {
	cfg, logger := opts.cfg, opts.logger
	logger.Info("checking for new supply chain conflicts")

	client, err := sheets.New(ctx, cfg.GoogleCredentials, cfg.SpreadsheetID, sheets.Tabs{
		RiskAlerts:  cfg.SheetRiskAlerts,
		Predictions: cfg.SheetPredictions,
		Mapping:     cfg.SheetMapping,
	})
	if err != nil {
		return err
	}
	batch, stats, err := client.Fetch(ctx)
	if err != nil {
		if errors.Is(err, sheets.ErrMissingData) {
			logger.Error("critical data missing from spreadsheet, operation aborted")
		}
		return err
	}
	if stats.MalformedMappings > 0 {
		logger.Warn("skipped malformed mapping rows", zap.Int("rows", stats.MalformedMappings))
	}

	m := metrics.New(prometheus.NewRegistry())
	engine, err := bridge.NewEngine(cfg.Policy, bridge.WithLogger(logger), bridge.WithMetrics(m))
	if err != nil {
		return err
	}
	report, err := engine.Run(ctx, batch)
	if err != nil {
		return err
	}
	malformed := stats.MalformedEvents + stats.MalformedForecasts + report.Malformed()
	if malformed > 0 {
		logger.Warn("skipped malformed rows", zap.Int("rows", malformed))
	}

	sent, err := ledger.Open(ctx, cfg.LedgerBackend, cfg.LedgerPath, cfg.RedisURL, cfg.LedgerTTL)
	if err != nil {
		return err
	}
	defer sent.Close()

	var dispatcher *notify.Dispatcher
	if dryRun {
		var composer notify.Composer = notify.TemplateComposer{}
		if cfg.OpenAIAPIKey != "" {
			composer = notify.NewOpenAIComposer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		}
		dispatcher = notify.NewDispatcher(composer, printDeliverer{out: out}, readOnly{sent}, "stdout",
			notify.WithLogger(logger), notify.WithMetrics(m))
	} else {
		dispatcher, err = notify.FromConfig(cfg, sent, notify.WithLogger(logger), notify.WithMetrics(m))
		if err != nil {
			return err
		}
	}

	outcome, err := dispatcher.Dispatch(ctx, report.Decisions)
	if err != nil {
		return err
	}
	if outcome.Delivered {
		logger.Info("consolidated alert dispatched", zap.Int("conflicts", len(outcome.Fresh)), zap.Bool("dry_run", dryRun))
	}
	return nil
}

type printDeliverer struct {
	out io.Writer
}

func (p printDeliverer) Deliver(_ context.Context, _ string, text string) error {
	_, err := fmt.Fprintln(p.out, text)
	return err
}

// readOnly consults the ledger without recording anything.
type readOnly struct {
	notify.Ledger
}

func (readOnly) Mark(context.Context, []string) error { return nil }
