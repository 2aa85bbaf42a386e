package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

const day = 24 * time.Hour

var (
	day0  = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fixed = func() time.Time { return day0 }
)

func window(category contracts.Category, vessel string, endDays int) contracts.DisruptionWindow {
	return contracts.DisruptionWindow{
		Category: category,
		VesselID: vessel,
		EventID:  vessel + "-evt",
		Start:    day0,
		End:      day0.Add(time.Duration(endDays) * day),
	}
}

func forecast(category contracts.Category, depletionDays int) contracts.StockoutForecast {
	return contracts.StockoutForecast{
		Category:      category,
		DepletionDate: day0.Add(time.Duration(depletionDays) * day),
		IssuedAt:      day0.Add(-day),
		HorizonDays:   14,
	}
}

func TestReferenceExampleFires(t *testing.T) {
	res := New(WithClock(fixed)).Correlate(
		[]contracts.DisruptionWindow{window("electronics", "V1", 12)},
		[]contracts.StockoutForecast{forecast("electronics", 10)},
	)

	require.Len(t, res.Decisions, 1)
	d := res.Decisions[0]
	assert.Equal(t, contracts.Category("electronics"), d.Category)
	assert.Equal(t, "V1", d.VesselID)
	assert.Equal(t, 2*day, d.LeadTimeGap)
	assert.Equal(t, contracts.SeverityMedium, d.Severity)
	assert.Equal(t, contracts.StatusOpen, d.Status)
	assert.Equal(t, day0, d.CreatedAt)
	assert.Empty(t, res.Skips)
}

func TestLateDepletionDoesNotFire(t *testing.T) {
	res := New().Correlate(
		[]contracts.DisruptionWindow{window("electronics", "V1", 12)},
		[]contracts.StockoutForecast{forecast("electronics", 20)},
	)

	assert.Empty(t, res.Decisions)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, SkipInventoryOutlasts, res.Skips[0].Reason)
	assert.True(t, res.Skips[0].Reason.Suppressed())
}

func TestDecisionStampedFromWindowWithoutClock(t *testing.T) {
	w := window("electronics", "V1", 12)
	w.Start = day0.Add(5 * time.Hour)
	c := New()

	first := c.Correlate([]contracts.DisruptionWindow{w}, []contracts.StockoutForecast{forecast("electronics", 10)})
	second := c.Correlate([]contracts.DisruptionWindow{w}, []contracts.StockoutForecast{forecast("electronics", 10)})

	require.Len(t, first.Decisions, 1)
	assert.Equal(t, w.Start, first.Decisions[0].CreatedAt)
	assert.Equal(t, first, second)
}

func TestDepletionOnWindowEndFires(t *testing.T) {
	res := New().Correlate(
		[]contracts.DisruptionWindow{window("toys", "V1", 12)},
		[]contracts.StockoutForecast{forecast("toys", 12)},
	)
	require.Len(t, res.Decisions, 1)
	assert.Zero(t, res.Decisions[0].LeadTimeGap)
}

func TestMissingForecastIsDistinguishable(t *testing.T) {
	res := New().Correlate(
		[]contracts.DisruptionWindow{window(contracts.CategoryUncategorized, "V1", 12)},
		[]contracts.StockoutForecast{forecast("electronics", 10)},
	)

	assert.Empty(t, res.Decisions)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, SkipNoForecast, res.Skips[0].Reason)
	assert.False(t, res.Skips[0].Reason.Suppressed())
}

func TestDepletedBeforeDisruptionIsSuppressed(t *testing.T) {
	f := contracts.StockoutForecast{
		Category:      "furniture",
		IssuedAt:      day0.Add(-10 * day),
		DepletionDate: day0.Add(-2 * day),
	}
	res := New().Correlate([]contracts.DisruptionWindow{window("furniture", "V1", 12)}, []contracts.StockoutForecast{f})

	assert.Empty(t, res.Decisions)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, SkipNoOverlap, res.Skips[0].Reason)
}

func TestOneDecisionPerVessel(t *testing.T) {
	res := New().Correlate(
		[]contracts.DisruptionWindow{
			window("electronics", "V2", 15),
			window("electronics", "V1", 12),
			window("electronics", "V3", 5),
		},
		[]contracts.StockoutForecast{forecast("electronics", 10)},
	)

	require.Len(t, res.Decisions, 2)
	assert.Equal(t, "V1", res.Decisions[0].VesselID)
	assert.Equal(t, "V2", res.Decisions[1].VesselID)
	assert.Equal(t, contracts.SeverityHigh, res.Decisions[1].Severity)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, "V3", res.Skips[0].VesselID)
}

func TestMostUrgentForecastWins(t *testing.T) {
	late := forecast("groceries", 30)
	early := forecast("groceries", 9)
	idx := IndexForecasts([]contracts.StockoutForecast{late, early, {Category: " Groceries ", DepletionDate: early.DepletionDate, IssuedAt: day0}})

	got := idx["groceries"]
	assert.Equal(t, early.DepletionDate, got.DepletionDate)
	assert.Equal(t, day0, got.IssuedAt)
}

func TestCorrelateIsIdempotent(t *testing.T) {
	windows := []contracts.DisruptionWindow{window("electronics", "V1", 12), window("toys", "V1", 12), window("clothing", "V9", 19)}
	forecasts := []contracts.StockoutForecast{forecast("electronics", 10), forecast("clothing", 14)}
	c := New(WithClock(fixed))

	first := c.Correlate(windows, forecasts)
	second := c.Correlate(windows, forecasts)
	assert.Equal(t, first, second)
	assert.Len(t, first.Decisions, 2)
}

func TestIffPropertyOverGrid(t *testing.T) {
	c := New()
	for end := 12; end <= 19; end++ {
		for depletion := 0; depletion <= 25; depletion++ {
			res := c.Correlate(
				[]contracts.DisruptionWindow{window("electronics", "V1", end)},
				[]contracts.StockoutForecast{forecast("electronics", depletion)},
			)
			assert.Equal(t, end >= depletion, len(res.Decisions) == 1, "end=%d depletion=%d", end, depletion)
		}
	}
}
