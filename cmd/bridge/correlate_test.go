package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/bridge"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

const snapshot = `{
  "events": [
    {"id": "e1", "vessel_id": "V1", "manifest": ["electronics"], "risk_label": "critical",
     "delay_minutes": 150, "observed_at": "2026-03-01T00:00:00Z"},
    {"id": "e2", "vessel_id": "V2", "manifest": ["toys"], "risk_label": "low",
     "delay_minutes": 30, "observed_at": "2026-03-01T00:00:00Z"}
  ],
  "forecasts": [
    {"category": "electronics", "depletion_date": "2026-03-11T00:00:00Z",
     "forecast_issued_at": "2026-02-28T00:00:00Z", "horizon_days": 14}
  ]
}`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCorrelateFromStdin(t *testing.T) {
	out, err := runCLI(t, snapshot, "correlate", "--at", "2026-03-01T12:00:00Z")
	require.NoError(t, err)

	var report bridge.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, 2, report.EventsProcessed)
	assert.Equal(t, 1, report.BelowThreshold)
	require.Len(t, report.Decisions, 1)

	d := report.Decisions[0]
	assert.Equal(t, contracts.Category("electronics"), d.Category)
	assert.Equal(t, "V1", d.VesselID)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), d.DisruptionEnd)
	assert.Equal(t, 2, d.LeadTimeGapDays())
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), d.CreatedAt)
}

func TestCorrelateFromFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))

	first, err := runCLI(t, "", "correlate", "-f", path, "--at", "2026-03-01T12:00:00Z")
	require.NoError(t, err)
	second, err := runCLI(t, "", "correlate", "-f", path, "--at", "2026-03-01T12:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCorrelateRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "{not json", "correlate")
	assert.Error(t, err)

	_, err = runCLI(t, snapshot, "correlate", "--at", "yesterday")
	assert.Error(t, err)
}
