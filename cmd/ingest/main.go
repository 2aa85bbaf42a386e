package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/logging"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mq"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew("ingest", cfg.LogLevel, cfg.LogFormat)
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

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
	defer writer.Close()

	h := &handler{events: writer, store: storage.NewRepository(dbPool), logger: logger, now: time.Now}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("ingest listening", zap.String("addr", cfg.HTTPAddr), zap.String("events_topic", cfg.KafkaTopicEvents))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ingest server error", zap.Error(err))
	}
}
