package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/httpx"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/storage"
)

type decisionStore interface {
	ListDecisions(ctx context.Context, status, category string, limit int) ([]contracts.AlertDecision, error)
	UpdateDecisionStatus(ctx context.Context, id string, status contracts.DecisionStatus) error
	Summary(ctx context.Context) (storage.Summary, error)
}

func newRouter(repo decisionStore, logger *zap.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "query-api"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/v1/decisions", func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		category := string(contracts.NormalizeCategory(r.URL.Query().Get("category")))
		limit := httpx.QueryInt(r, "limit", 100, 500)

		decisions, err := repo.ListDecisions(r.Context(), status, category, limit)
		if err != nil {
			logger.Error("list decisions failed", zap.Error(err))
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": decisions})
	})

	router.Patch("/v1/decisions/{id}/ack", statusHandler(repo, contracts.StatusAcknowledged))
	router.Patch("/v1/decisions/{id}/resolve", statusHandler(repo, contracts.StatusResolved))

	router.Get("/v1/summary", func(w http.ResponseWriter, r *http.Request) {
		summary, err := repo.Summary(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, summary)
	})

	return router
}

func statusHandler(repo decisionStore, status contracts.DecisionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := repo.UpdateDecisionStatus(r.Context(), id, status); err != nil {
			handleStatusUpdateError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
	}
}

func handleStatusUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		httpx.WriteError(w, http.StatusNotFound, "decision not found")
		return
	}
	httpx.WriteError(w, http.StatusInternalServerError, err.Error())
}
