// Package notify hands finished alert decisions to the outside world: one
// consolidated report per pass, composed by a language model and delivered
// over chat. Failures here are reported to the caller and never feed back
// into the decisions themselves.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/metrics"
)

// Ledger records which vessel/category pairs were already notified.
type Ledger interface {
	Seen(ctx context.Context, keys []string) (map[string]bool, error)
	Mark(ctx context.Context, keys []string) error
}

type Outcome struct {
	Fresh       []contracts.AlertDecision
	AlreadySent int
	Message     string
	Fallback    bool
	Delivered   bool
}

type Dispatcher struct {
	composer   Composer
	fallback   Composer
	deliverer  Deliverer
	ledger     Ledger
	channel    string
	attempts   int
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithAttempts bounds delivery tries, including the first one.
func WithAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.attempts = n
		}
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(d *Dispatcher) { d.newBackOff = newBackOff }
}

func NewDispatcher(composer Composer, deliverer Deliverer, ledger Ledger, channel string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		composer:   composer,
		fallback:   TemplateComposer{},
		deliverer:  deliverer,
		ledger:     ledger,
		channel:    channel,
		attempts:   3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     zap.NewNop(),
	}
	if d.composer == nil {
		d.composer = d.fallback
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch notifies about decisions not yet in the ledger. The ledger is
// only updated after a successful delivery, so a failed pass is retried next
// time.
func (d *Dispatcher) Dispatch(ctx context.Context, decisions []contracts.AlertDecision) (Outcome, error) {
	var out Outcome

	fresh, alreadySent, err := d.filterSent(ctx, decisions)
	if err != nil {
		return out, err
	}
	out.Fresh = fresh
	out.AlreadySent = alreadySent
	if len(fresh) == 0 {
		d.logger.Info("no new unique conflicts identified", zap.Int("already_sent", alreadySent))
		return out, nil
	}

	body, err := d.composer.Compose(ctx, fresh)
	if err != nil {
		d.logger.Warn("composer failed, using template report", zap.Error(err))
		out.Fallback = true
		body, err = d.fallback.Compose(ctx, fresh)
		if err != nil {
			return out, fmt.Errorf("compose report: %w", err)
		}
	}
	out.Message = ReportHeader + "\n\n" + body

	if err := d.deliver(ctx, out.Message); err != nil {
		d.countDelivery("failed")
		return out, fmt.Errorf("deliver report: %w", err)
	}
	out.Delivered = true
	d.countDelivery("delivered")

	keys := make([]string, 0, len(fresh))
	for _, dec := range fresh {
		keys = append(keys, dec.DedupKey())
	}
	if err := d.ledger.Mark(ctx, keys); err != nil {
		return out, fmt.Errorf("mark ledger: %w", err)
	}

	d.logger.Info("consolidated alert dispatched",
		zap.Int("conflicts", len(fresh)),
		zap.Int("already_sent", alreadySent),
		zap.Bool("fallback", out.Fallback))
	return out, nil
}

// filterSent drops decisions whose key is in the ledger or already taken by
// an earlier decision in the same batch.
func (d *Dispatcher) filterSent(ctx context.Context, decisions []contracts.AlertDecision) ([]contracts.AlertDecision, int, error) {
	keys := make([]string, 0, len(decisions))
	for _, dec := range decisions {
		keys = append(keys, dec.DedupKey())
	}
	seen, err := d.ledger.Seen(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("read ledger: %w", err)
	}

	fresh := make([]contracts.AlertDecision, 0, len(decisions))
	taken := make(map[string]bool, len(decisions))
	skipped := 0
	for _, dec := range decisions {
		key := dec.DedupKey()
		if seen[key] || taken[key] {
			skipped++
			continue
		}
		taken[key] = true
		fresh = append(fresh, dec)
	}
	return fresh, skipped, nil
}

func (d *Dispatcher) deliver(ctx context.Context, message string) error {
	attempt := 0
	op := func() error {
		attempt++
		err := d.deliverer.Deliver(ctx, d.channel, message)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			d.logger.Warn("delivery attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), uint64(d.attempts-1)), ctx)
	return backoff.Retry(op, policy)
}

func (d *Dispatcher) countDelivery(result string) {
	if d.metrics != nil {
		d.metrics.Deliveries.WithLabelValues(result).Inc()
	}
}
