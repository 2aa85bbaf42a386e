// Package bridge runs one correlation pass over a snapshot of maritime events
// and stockout forecasts.
//
// The engine keeps no state between runs. Run validates records, maps each
// event to categories, normalizes its delay into a disruption window and
// correlates the windows against the forecasts. Decisions are returned only
// once the whole batch has been processed; a cancelled context discards the
// batch.
package bridge

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/correlate"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/mapping"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/metrics"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/risk"
)

var tracer = otel.Tracer("github.com/robertofernandezmartinez/smartport-supply-bridge/internal/bridge")

type Report struct {
	Decisions          []contracts.AlertDecision `json:"decisions"`
	Skips              []correlate.Skip          `json:"skips"`
	EventsProcessed    int                       `json:"events_processed"`
	BelowThreshold     int                       `json:"below_threshold"`
	MalformedEvents    int                       `json:"malformed_events"`
	MalformedForecasts int                       `json:"malformed_forecasts"`
	UnmappedCargo      map[string][]string       `json:"unmapped_cargo,omitempty"`
}

func (r Report) Malformed() int {
	return r.MalformedEvents + r.MalformedForecasts
}

type Engine struct {
	vocab      *mapping.Vocabulary
	normalizer *risk.Normalizer
	correlator *correlate.Correlator
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithVocabulary(v *mapping.Vocabulary) Option {
	return func(e *Engine) { e.vocab = v }
}

func WithCorrelator(c *correlate.Correlator) Option {
	return func(e *Engine) { e.correlator = c }
}

func NewEngine(policy risk.Policy, opts ...Option) (*Engine, error) {
	normalizer, err := risk.NewNormalizer(policy)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		vocab:      mapping.DefaultVocabulary(),
		normalizer: normalizer,
		correlator: correlate.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run performs one full pass. The mapping rows in the batch feed the vessel
// index for this pass only.
func (e *Engine) Run(ctx context.Context, batch contracts.Batch) (Report, error) {
	ctx, span := tracer.Start(ctx, "bridge.Run")
	defer span.End()
	started := time.Now()

	report := Report{UnmappedCargo: map[string][]string{}}
	mapper := mapping.NewMapper(e.vocab, mapping.NewVesselIndex(batch.Mappings))

	forecasts := make([]contracts.StockoutForecast, 0, len(batch.Forecasts))
	for _, f := range batch.Forecasts {
		if err := f.Validate(); err != nil {
			report.MalformedForecasts++
			e.logger.Warn("skipping malformed forecast", zap.Error(err))
			continue
		}
		forecasts = append(forecasts, f)
	}

	var windows []contracts.DisruptionWindow
	for _, event := range batch.Events {
		if err := ctx.Err(); err != nil {
			return e.abort(span, err)
		}
		if err := event.Validate(); err != nil {
			report.MalformedEvents++
			e.logger.Warn("skipping malformed maritime event", zap.Error(err))
			continue
		}
		report.EventsProcessed++

		disruption, ok := e.normalizer.Normalize(event)
		if !ok {
			report.BelowThreshold++
			e.logger.Debug("event below correlation threshold",
				zap.String("vessel_id", event.VesselID),
				zap.String("risk_label", string(event.RiskLabel)))
			continue
		}

		mapped := mapper.MapDetailed(event.VesselID, event.Manifest)
		if len(mapped.Unmapped) > 0 {
			report.UnmappedCargo[event.VesselID] = append(report.UnmappedCargo[event.VesselID], mapped.Unmapped...)
			e.logger.Debug("cargo routed to uncategorized",
				zap.String("vessel_id", event.VesselID),
				zap.Strings("descriptors", mapped.Unmapped))
		}
		for _, category := range mapped.Categories {
			windows = append(windows, disruption.Window(category, event))
		}
	}

	if err := ctx.Err(); err != nil {
		return e.abort(span, err)
	}

	res := e.correlator.Correlate(windows, forecasts)
	report.Decisions = res.Decisions
	report.Skips = res.Skips
	if len(report.UnmappedCargo) == 0 {
		report.UnmappedCargo = nil
	}

	e.logSkips(res.Skips)
	e.record(report, time.Since(started))

	span.SetAttributes(
		attribute.Int("bridge.events", report.EventsProcessed),
		attribute.Int("bridge.decisions", len(report.Decisions)),
		attribute.Int("bridge.malformed", report.Malformed()),
	)
	e.logger.Info("correlation pass complete",
		zap.Int("events", report.EventsProcessed),
		zap.Int("below_threshold", report.BelowThreshold),
		zap.Int("malformed", report.Malformed()),
		zap.Int("windows", len(windows)),
		zap.Int("decisions", len(report.Decisions)),
		zap.Int("skips", len(report.Skips)))

	return report, nil
}

func (e *Engine) abort(span trace.Span, err error) (Report, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "batch discarded")
	if errors.Is(err, context.Canceled) {
		e.logger.Info("correlation pass cancelled, batch discarded")
	} else {
		e.logger.Warn("correlation pass aborted, batch discarded", zap.Error(err))
	}
	return Report{}, err
}

func (e *Engine) logSkips(skips []correlate.Skip) {
	for _, s := range skips {
		fields := []zap.Field{
			zap.String("category", string(s.Category)),
			zap.String("vessel_id", s.VesselID),
			zap.String("reason", string(s.Reason)),
		}
		if s.Reason.Suppressed() {
			e.logger.Debug("alert suppressed by overlap policy", fields...)
			continue
		}
		e.logger.Info("no matching forecast, correlation skipped", fields...)
	}
}

func (e *Engine) record(r Report, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.EventsProcessed.Add(float64(r.EventsProcessed))
	e.metrics.EventsMalformed.Add(float64(r.Malformed()))
	e.metrics.EventsBelowLimit.Add(float64(r.BelowThreshold))
	for _, d := range r.Decisions {
		e.metrics.Decisions.WithLabelValues(string(d.Severity)).Inc()
	}
	for _, s := range r.Skips {
		e.metrics.Skips.WithLabelValues(string(s.Reason)).Inc()
	}
	e.metrics.PassDuration.Observe(elapsed.Seconds())
}
