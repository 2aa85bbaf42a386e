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
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/bridge"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/httpx"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/logging"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/metrics"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mq"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew("correlator", cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database error", zap.Error(err))
	}
	defer dbPool.Close()

	if err := storage.RunMigrations(ctx, dbPool); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	repo := storage.NewRepository(dbPool)

	m := metrics.New(prometheus.DefaultRegisterer)
	engine, err := bridge.NewEngine(cfg.Policy, bridge.WithLogger(logger), bridge.WithMetrics(m))
	if err != nil {
		logger.Fatal("invalid correlation policy", zap.Error(err))
	}

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicEvents, cfg.ConsumerGroupPrefix+"-correlator")
	defer reader.Close()

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicDecisions)
	defer writer.Close()

	go serveMetrics(ctx, cfg.HTTPAddr, logger)

	batcher := mq.NewBatcher[contracts.MaritimeEvent](reader, cfg.BatchInterval, cfg.BatchMaxEvents, logger)
	batcher.OnMalformed(func(kafka.Message, error) { m.EventsMalformed.Inc() })

	logger.Info("correlator consuming",
		zap.String("events_topic", cfg.KafkaTopicEvents),
		zap.String("decisions_topic", cfg.KafkaTopicDecisions),
		zap.Duration("batch_interval", cfg.BatchInterval))

	err = batcher.Run(ctx, func(ctx context.Context, events []contracts.MaritimeEvent) error {
		return correlate(ctx, repo, engine, writer, events, logger)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("correlator stopped", zap.Error(err))
	}
	logger.Info("correlator shutting down")
}

// correlate runs one pass against the current forecast snapshot and mapping
// table, then stores and publishes the decisions.
func correlate(ctx context.Context, repo *storage.Repository, engine *bridge.Engine, writer mq.Writer,
	events []contracts.MaritimeEvent, logger *zap.Logger) error {
	forecasts, err := repo.ListForecasts(ctx)
	if err != nil {
		return err
	}
	mappings, err := repo.ListMappings(ctx)
	if err != nil {
		return err
	}

	report, err := engine.Run(ctx, contracts.Batch{Events: events, Forecasts: forecasts, Mappings: mappings})
	if err != nil {
		return err
	}
	if len(report.Decisions) == 0 {
		return nil
	}

	inserted, err := repo.InsertDecisions(ctx, report.Decisions)
	if err != nil {
		return err
	}
	if err := mq.PublishAll(ctx, writer, report.Decisions); err != nil {
		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) && kafkaErr.Temporary() {
			logger.Warn("kafka temporary error", zap.Error(err))
		}
		return err
	}

	logger.Info("decisions published", zap.Int("decisions", len(report.Decisions)), zap.Int("new", inserted))
	return nil
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "correlator"})
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
