package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

var day0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(DefaultPolicy())
	require.NoError(t, err)
	return n
}

func TestBelowThresholdProducesNoWindow(t *testing.T) {
	n := newNormalizer(t)
	for _, label := range []contracts.RiskLabel{contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh} {
		_, ok := n.Normalize(contracts.MaritimeEvent{VesselID: "V1", RiskLabel: label, DelayMinutes: 5000, ObservedAt: day0})
		assert.False(t, ok, label)
	}
}

func TestHighScoreCountsAsCritical(t *testing.T) {
	n := newNormalizer(t)

	_, ok := n.Normalize(contracts.MaritimeEvent{VesselID: "V1", RiskLabel: contracts.RiskMedium, RiskScore: 80, ObservedAt: day0})
	assert.True(t, ok)

	_, ok = n.Normalize(contracts.MaritimeEvent{VesselID: "V1", RiskLabel: contracts.RiskMedium, RiskScore: 75, ObservedAt: day0})
	assert.False(t, ok)
}

func TestCriticalWindowStaysInBand(t *testing.T) {
	n := newNormalizer(t)
	for _, minutes := range []int{0, 1, 150, 180, 500, 810, 1200, 1440, 10_000} {
		d, ok := n.Normalize(contracts.MaritimeEvent{VesselID: "V1", RiskLabel: contracts.RiskCritical, DelayMinutes: minutes, ObservedAt: day0})
		require.True(t, ok)

		total := d.End.Sub(day0)
		assert.GreaterOrEqual(t, total, 12*day, "minutes=%d", minutes)
		assert.LessOrEqual(t, total, 19*day, "minutes=%d", minutes)
		assert.Equal(t, 5*day, d.Buffer)
		assert.Equal(t, day0, d.Start)
	}
}

func TestScaledDelayIsMonotonic(t *testing.T) {
	p := DefaultPolicy()
	prev := time.Duration(0)
	for minutes := 0; minutes <= 2000; minutes += 10 {
		got := p.ScaledDelay(minutes)
		require.GreaterOrEqual(t, got, prev, "minutes=%d", minutes)
		prev = got
	}
	assert.Equal(t, 7*day, p.ScaledDelay(150))
	assert.Equal(t, 14*day, p.ScaledDelay(1440))
}

func TestReferenceExampleWindow(t *testing.T) {
	n := newNormalizer(t)

	d, ok := n.Normalize(contracts.MaritimeEvent{VesselID: "V1", RiskLabel: contracts.RiskCritical, DelayMinutes: 150, ObservedAt: day0})
	require.True(t, ok)
	assert.Equal(t, day0.Add(12*day), d.End)

	w := d.Window("electronics", contracts.MaritimeEvent{ID: "e1", VesselID: "V1"})
	assert.Equal(t, contracts.Category("electronics"), w.Category)
	assert.Equal(t, "V1", w.VesselID)
	assert.Equal(t, "e1", w.EventID)
	assert.Equal(t, 7*day, w.ScaledDelay)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	cases := map[string]func(p *Policy){
		"unknown threshold": func(p *Policy) { p.Threshold = "severe" },
		"zero min":          func(p *Policy) { p.MinScaled = 0 },
		"inverted band":     func(p *Policy) { p.MaxScaled = p.MinScaled - day },
		"inverted minutes":  func(p *Policy) { p.CeilingMinutes = p.FloorMinutes },
		"negative buffer":   func(p *Policy) { p.Buffer = -day },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultPolicy()
			mutate(&p)
			assert.Error(t, p.Validate())
			_, err := NewNormalizer(p)
			assert.Error(t, err)
		})
	}
}

func TestSeverityForGap(t *testing.T) {
	assert.Equal(t, contracts.SeverityMedium, SeverityForGap(0))
	assert.Equal(t, contracts.SeverityMedium, SeverityForGap(2*day))
	assert.Equal(t, contracts.SeverityHigh, SeverityForGap(3*day))
	assert.Equal(t, contracts.SeverityCritical, SeverityForGap(9*day))
	assert.NotEmpty(t, Recommendation(contracts.SeverityCritical))
	assert.NotEqual(t, Recommendation(contracts.SeverityHigh), Recommendation(contracts.SeverityMedium))
}
