package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/httpx"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mapping"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mq"
)

type store interface {
	UpsertForecasts(ctx context.Context, forecasts []contracts.StockoutForecast) error
	ListForecasts(ctx context.Context) ([]contracts.StockoutForecast, error)
	ReplaceMappings(ctx context.Context, mappings []contracts.MappingRow) error
	ListMappings(ctx context.Context) ([]contracts.MappingRow, error)
}

type handler struct {
	events mq.Writer
	store  store
	logger *zap.Logger
	now    func() time.Time
}

func (h *handler) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "ingest"})
	})
	router.Post("/v1/events", h.postEvent)
	router.Post("/v1/simulate", h.simulate)
	router.Post("/v1/forecasts", h.postForecasts)
	router.Get("/v1/forecasts", h.getForecasts)
	router.Put("/v1/mappings", h.putMappings)
	router.Get("/v1/mappings", h.getMappings)
	return router
}

func (h *handler) postEvent(w http.ResponseWriter, r *http.Request) {
	var event contracts.MaritimeEvent
	if err := httpx.DecodeJSON(r, &event); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.enrichEvent(&event)
	if err := event.Validate(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := mq.PublishJSON(r.Context(), h.events, event.PartitionKey(), event); err != nil {
		h.logger.Error("publish event failed", zap.String("vessel_id", event.VesselID), zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, event)
}

func (h *handler) simulate(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Count int `json:"count"`
	}
	body := req{Count: 10}
	_ = httpx.DecodeJSON(r, &body)

	if body.Count <= 0 {
		body.Count = 10
	}
	if body.Count > 500 {
		body.Count = 500
	}

	sent := 0
	for range body.Count {
		event := h.randomEvent()
		if err := mq.PublishJSON(r.Context(), h.events, event.PartitionKey(), event); err != nil {
			h.logger.Warn("simulate publish error", zap.Error(err))
			break
		}
		sent++
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"requested": body.Count, "published": sent})
}

func (h *handler) postForecasts(w http.ResponseWriter, r *http.Request) {
	var forecasts []contracts.StockoutForecast
	if err := httpx.DecodeJSON(r, &forecasts); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range forecasts {
		f := &forecasts[i]
		f.Category = contracts.NormalizeCategory(string(f.Category))
		if f.IssuedAt.IsZero() {
			f.IssuedAt = h.now().UTC()
		}
		if err := f.Validate(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("forecast %d: %v", i, err))
			return
		}
	}

	if err := h.store.UpsertForecasts(r.Context(), forecasts); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"stored": len(forecasts)})
}

func (h *handler) getForecasts(w http.ResponseWriter, r *http.Request) {
	forecasts, err := h.store.ListForecasts(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": forecasts})
}

func (h *handler) putMappings(w http.ResponseWriter, r *http.Request) {
	var rows []contracts.MappingRow
	if err := httpx.DecodeJSON(r, &rows); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range rows {
		rows[i].VesselName = strings.TrimSpace(rows[i].VesselName)
		rows[i].Category = contracts.NormalizeCategory(string(rows[i].Category))
		if !rows[i].Valid() {
			httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("mapping %d: ship_name_raw and assigned_category are required", i))
			return
		}
	}

	if err := h.store.ReplaceMappings(r.Context(), rows); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"stored": len(rows)})
}

func (h *handler) getMappings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListMappings(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *handler) enrichEvent(e *contracts.MaritimeEvent) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ObservedAt.IsZero() {
		e.ObservedAt = h.now().UTC()
	}
	e.VesselID = strings.TrimSpace(e.VesselID)
	if label, err := contracts.ParseRiskLabel(string(e.RiskLabel)); err == nil {
		e.RiskLabel = label
	}
}

func (h *handler) randomEvent() contracts.MaritimeEvent {
	vessels := mapping.DefaultVesselMap()
	labels := []contracts.RiskLabel{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh, contracts.RiskCritical}

	return contracts.MaritimeEvent{
		ID:           uuid.NewString(),
		VesselID:     vessels[rand.Intn(len(vessels))].VesselName,
		RiskLabel:    labels[rand.Intn(len(labels))],
		RiskScore:    float64(rand.Intn(101)),
		DelayMinutes: rand.Intn(1800),
		ObservedAt:   h.now().UTC(),
	}
}
