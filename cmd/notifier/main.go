package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/httpx"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/ledger"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/logging"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/metrics"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mq"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/notify"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew("notifier", cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database error", zap.Error(err))
	}
	defer dbPool.Close()
	repo := storage.NewRepository(dbPool)

	sent, err := ledger.Open(ctx, cfg.LedgerBackend, cfg.LedgerPath, cfg.RedisURL, cfg.LedgerTTL)
	if err != nil {
		logger.Fatal("ledger error", zap.Error(err))
	}
	defer sent.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	dispatcher, err := notify.FromConfig(cfg, sent, notify.WithLogger(logger), notify.WithMetrics(m))
	if err != nil {
		logger.Fatal("notifier configuration error", zap.Error(err))
	}

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicDecisions, cfg.ConsumerGroupPrefix+"-notifier")
	defer reader.Close()

	go serveMetrics(ctx, cfg.HTTPAddr, logger)

	batcher := mq.NewBatcher[contracts.AlertDecision](reader, cfg.BatchInterval, cfg.BatchMaxEvents, logger)

	logger.Info("notifier consuming",
		zap.String("decisions_topic", cfg.KafkaTopicDecisions),
		zap.String("ledger", cfg.LedgerBackend))

	err = batcher.Run(ctx, func(ctx context.Context, decisions []contracts.AlertDecision) error {
		out, dispatchErr := dispatcher.Dispatch(ctx, decisions)
		ids := make([]string, 0, len(out.Fresh))
		for _, d := range out.Fresh {
			ids = append(ids, d.ID)
		}
		if out.Message == "" {
			return dispatchErr
		}

		var deliveryErr error
		if !out.Delivered {
			deliveryErr = dispatchErr
		}
		if err := repo.RecordDelivery(ctx, ids, deliveryErr); err != nil {
			logger.Warn("record delivery failed", zap.Error(err))
		}
		if out.Delivered && dispatchErr != nil {
			// already delivered; retrying would notify twice
			logger.Error("delivered but ledger not updated", zap.Error(dispatchErr))
			return nil
		}
		return deliveryErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("notifier stopped", zap.Error(err))
	}
	logger.Info("notifier shutting down")
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "notifier"})
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", zap.Error(err))
	}
}
