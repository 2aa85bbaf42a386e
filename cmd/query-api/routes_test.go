package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/storage"
)

type fakeRepo struct {
	decisions []contracts.AlertDecision
	gotStatus string
	gotCat    string
	gotLimit  int
	updates   map[string]contracts.DecisionStatus
}

func (f *fakeRepo) ListDecisions(_ context.Context, status, category string, limit int) ([]contracts.AlertDecision, error) {
	f.gotStatus, f.gotCat, f.gotLimit = status, category, limit
	return f.decisions, nil
}

func (f *fakeRepo) UpdateDecisionStatus(_ context.Context, id string, status contracts.DecisionStatus) error {
	if _, ok := f.updates[id]; !ok {
		return pgx.ErrNoRows
	}
	f.updates[id] = status
	return nil
}

func (f *fakeRepo) Summary(context.Context) (storage.Summary, error) {
	return storage.Summary{OpenDecisions: 2, BySeverity: map[string]int{"critical": 1, "high": 1}}, nil
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListDecisionsPassesFilters(t *testing.T) {
	repo := &fakeRepo{decisions: []contracts.AlertDecision{{ID: "d1", VesselID: "Star", Category: "toys"}}}
	router := newRouter(repo, zap.NewNop())

	rec := serve(router, http.MethodGet, "/v1/decisions?status=open&category=Toys&limit=9000")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "open", repo.gotStatus)
	assert.Equal(t, "toys", repo.gotCat)
	assert.Equal(t, 500, repo.gotLimit)
	assert.Contains(t, rec.Body.String(), `"vessel_id":"Star"`)
}

func TestAcknowledgeAndResolve(t *testing.T) {
	repo := &fakeRepo{updates: map[string]contracts.DecisionStatus{"d1": contracts.StatusOpen}}
	router := newRouter(repo, zap.NewNop())

	rec := serve(router, http.MethodPatch, "/v1/decisions/d1/ack")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.StatusAcknowledged, repo.updates["d1"])

	rec = serve(router, http.MethodPatch, "/v1/decisions/d1/resolve")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"d1","status":"resolved"}`, rec.Body.String())

	rec = serve(router, http.MethodPatch, "/v1/decisions/missing/ack")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryAndMetrics(t *testing.T) {
	router := newRouter(&fakeRepo{}, zap.NewNop())

	rec := serve(router, http.MethodGet, "/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"open_decisions":2`)

	rec = serve(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
