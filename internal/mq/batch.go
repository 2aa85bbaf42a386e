package mq

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Fetcher is the part of *kafka.Reader the batcher needs. Offsets are
// committed explicitly once a batch has been handled.
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// FlushFunc handles one batch. Returning an error keeps the batch pending so
// it is retried on a later tick.
type FlushFunc[T any] func(ctx context.Context, items []T) error

// Batcher decodes messages into T and hands them over in batches, either on
// every tick or as soon as max items are pending.
type Batcher[T any] struct {
	fetcher     Fetcher
	interval    time.Duration
	maxItems    int
	logger      *zap.Logger
	onMalformed func(msg kafka.Message, err error)
}

func NewBatcher[T any](fetcher Fetcher, interval time.Duration, maxItems int, logger *zap.Logger) *Batcher[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxItems <= 0 {
		maxItems = 500
	}
	return &Batcher[T]{fetcher: fetcher, interval: interval, maxItems: maxItems, logger: logger}
}

// OnMalformed registers a hook for messages that fail to decode. Such
// messages are committed and dropped.
func (b *Batcher[T]) OnMalformed(fn func(msg kafka.Message, err error)) {
	b.onMalformed = fn
}

// Run blocks until ctx is done. Pending items are discarded on shutdown and
// their offsets stay uncommitted.
//
// A failed flush holds the batch: no further messages are taken until it
// succeeds, and retries happen on the ticker with exponential back-off.
func (b *Batcher[T]) Run(ctx context.Context, flush FlushFunc[T]) error {
	incoming := make(chan kafka.Message)
	go b.fetchLoop(ctx, incoming)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = b.interval
	retry.MaxElapsedTime = 0

	var (
		items     []T
		msgs      []kafka.Message
		held      bool
		nextRetry time.Time
	)
	doFlush := func() {
		if len(msgs) == 0 {
			return
		}
		if len(items) > 0 {
			if err := flush(ctx, items); err != nil {
				if !held {
					retry.Reset()
				}
				held = true
				wait := retry.NextBackOff()
				nextRetry = time.Now().Add(wait)
				b.logger.Error("batch flush failed, holding batch",
					zap.Int("items", len(items)), zap.Duration("retry_in", wait), zap.Error(err))
				return
			}
		}
		if err := b.fetcher.CommitMessages(ctx, msgs...); err != nil {
			b.logger.Warn("commit offsets failed", zap.Int("messages", len(msgs)), zap.Error(err))
		}
		items, msgs, held = nil, nil, false
	}

	for {
		// A nil channel blocks, so nothing is read while the batch is held or full.
		in := incoming
		if held || len(items) >= b.maxItems {
			in = nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if held && time.Now().Before(nextRetry) {
				continue
			}
			doFlush()
		case msg := <-in:
			msgs = append(msgs, msg)
			item, err := ParseMessageJSON[T](msg)
			if err != nil {
				b.logger.Warn("dropping undecodable message",
					zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
				if b.onMalformed != nil {
					b.onMalformed(msg, err)
				}
			} else {
				items = append(items, item)
			}
			if len(items) >= b.maxItems {
				doFlush()
			}
		}
	}
}

func (b *Batcher[T]) fetchLoop(ctx context.Context, out chan<- kafka.Message) {
	for {
		msg, err := b.fetcher.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Warn("read error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}
