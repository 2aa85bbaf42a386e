// Package correlate joins disruption windows against stockout forecasts and
// decides which overlaps are worth an alert.
//
// A window fires when inventory for its category runs out before or during
// the disruption: the window must touch the forecast interval
// [IssuedAt, DepletionDate] and end on or after the depletion date. Every
// window that does not fire is reported as a Skip so that "no forecast" can be
// told apart from "suppressed by policy".
package correlate

import (
	"sort"
	"time"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/risk"
)

type SkipReason string

const (
	// SkipNoForecast means the category has no forecast at all.
	SkipNoForecast SkipReason = "no_matching_forecast"
	// SkipNoOverlap means the window misses [IssuedAt, DepletionDate] entirely.
	SkipNoOverlap SkipReason = "no_overlap"
	// SkipInventoryOutlasts means stock lasts past the end of the disruption.
	SkipInventoryOutlasts SkipReason = "inventory_outlasts_disruption"
)

// Suppressed reports whether the skip came from the overlap policy rather
// than from missing data.
func (r SkipReason) Suppressed() bool {
	return r != SkipNoForecast
}

type Skip struct {
	Category contracts.Category `json:"category"`
	VesselID string             `json:"vessel_id"`
	EventID  string             `json:"event_id,omitempty"`
	Reason   SkipReason         `json:"reason"`
}

type Result struct {
	Decisions []contracts.AlertDecision `json:"decisions"`
	Skips     []Skip                    `json:"skips"`
}

type Correlator struct {
	now func() time.Time
}

type Option func(*Correlator)

// WithClock fixes the CreatedAt stamp of emitted decisions. Without it a
// decision is stamped with the start of its disruption window, so the output
// depends on the snapshot alone.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

func New(opts ...Option) *Correlator {
	c := &Correlator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IndexForecasts keeps the most urgent forecast per category: the earliest
// depletion date, then the most recently issued.
func IndexForecasts(forecasts []contracts.StockoutForecast) map[contracts.Category]contracts.StockoutForecast {
	idx := make(map[contracts.Category]contracts.StockoutForecast, len(forecasts))
	for _, f := range forecasts {
		f.Category = contracts.NormalizeCategory(string(f.Category))
		current, ok := idx[f.Category]
		if !ok || moreUrgent(f, current) {
			idx[f.Category] = f
		}
	}
	return idx
}

func moreUrgent(a, b contracts.StockoutForecast) bool {
	if !a.DepletionDate.Equal(b.DepletionDate) {
		return a.DepletionDate.Before(b.DepletionDate)
	}
	return a.IssuedAt.After(b.IssuedAt)
}

// Correlate emits one decision per (vessel, category) window that fires.
// Windows from different vessels on the same category are never merged.
func (c *Correlator) Correlate(windows []contracts.DisruptionWindow, forecasts []contracts.StockoutForecast) Result {
	idx := IndexForecasts(forecasts)

	sorted := make([]contracts.DisruptionWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.VesselID != b.VesselID {
			return a.VesselID < b.VesselID
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.Start.Before(b.Start)
	})

	res := Result{Decisions: []contracts.AlertDecision{}, Skips: []Skip{}}
	for _, w := range sorted {
		f, ok := idx[w.Category]
		if !ok {
			res.Skips = append(res.Skips, skipFor(w, SkipNoForecast))
			continue
		}
		if reason, fire := evaluate(w, f); !fire {
			res.Skips = append(res.Skips, skipFor(w, reason))
			continue
		}
		res.Decisions = append(res.Decisions, decide(w, f, c.stamp(w)))
	}
	return res
}

func (c *Correlator) stamp(w contracts.DisruptionWindow) time.Time {
	if c.now != nil {
		return c.now()
	}
	return w.Start.UTC()
}

func evaluate(w contracts.DisruptionWindow, f contracts.StockoutForecast) (SkipReason, bool) {
	if !w.Intersects(f.IssuedAt, f.DepletionDate) {
		return SkipNoOverlap, false
	}
	if w.End.Before(f.DepletionDate) {
		return SkipInventoryOutlasts, false
	}
	return "", true
}

func decide(w contracts.DisruptionWindow, f contracts.StockoutForecast, createdAt time.Time) contracts.AlertDecision {
	gap := w.End.Sub(f.DepletionDate)
	severity := risk.SeverityForGap(gap)
	return contracts.AlertDecision{
		ID:                contracts.DecisionID(w.VesselID, w.Category, w.EventID, f.DepletionDate),
		Category:          w.Category,
		VesselID:          w.VesselID,
		EventID:           w.EventID,
		DisruptionStart:   w.Start,
		DisruptionEnd:     w.End,
		DepletionDate:     f.DepletionDate,
		ForecastIssuedAt:  f.IssuedAt,
		LeadTimeGap:       gap,
		Severity:          severity,
		RecommendedAction: risk.Recommendation(severity),
		Status:            contracts.StatusOpen,
		CreatedAt:         createdAt,
	}
}

func skipFor(w contracts.DisruptionWindow, reason SkipReason) Skip {
	return Skip{Category: w.Category, VesselID: w.VesselID, EventID: w.EventID, Reason: reason}
}
