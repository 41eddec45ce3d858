package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/tasktracker/internal/reliability/retry"
)

// EventRelay moves task events from request handlers to the broker in the
// background, so a slow or unavailable broker never delays a write
type EventRelay struct {
	publisher    events.Publisher
	breaker      *circuitbreaker.CircuitBreaker
	queue        chan events.TaskEvent
	logger       *slog.Logger
	retry        *retry.Config
	flushTimeout time.Duration
}

// NewEventRelay creates a relay with a queue of the given capacity
func NewEventRelay(publisher events.Publisher, capacity int, logger *slog.Logger) *EventRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 256
	}
	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("event publisher circuit changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &EventRelay{
		publisher: publisher,
		breaker:   breaker,
		queue:     make(chan events.TaskEvent, capacity),
		logger:    logger,
		retry: &retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2,
			IsRetryable: func(err error) bool {
				return !errors.Is(err, circuitbreaker.ErrOpen)
			},
		},
		flushTimeout: 5 * time.Second,
	}
}

// Enqueue hands an event to the relay without blocking. It reports false
// when the queue is full and the event was dropped.
func (r *EventRelay) Enqueue(event events.TaskEvent) bool {
	select {
	case r.queue <- event:
		metrics.SetEventQueueDepth(len(r.queue))
		return true
	default:
		metrics.ObserveEvent("dropped")
		r.logger.Warn("event queue full, dropping task event",
			slog.String("type", event.Type),
			slog.String("task_id", event.TaskID),
		)
		return false
	}
}

// Start drains the queue until ctx is cancelled, then flushes what is left
func (r *EventRelay) Start(ctx context.Context) {
	r.logger.Info("event relay started", slog.Int("capacity", cap(r.queue)))

	for {
		select {
		case <-ctx.Done():
			r.flush()
			r.logger.Info("event relay stopped")
			return
		case ev := <-r.queue:
			if ctx.Err() != nil {
				r.flush(ev)
				r.logger.Info("event relay stopped")
				return
			}
			metrics.SetEventQueueDepth(len(r.queue))
			r.publish(ctx, ev)
		}
	}
}

// flush publishes pending and whatever is still queued under a fresh deadline
func (r *EventRelay) flush(pending ...events.TaskEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.flushTimeout)
	defer cancel()
	for _, ev := range pending {
		r.publish(ctx, ev)
	}
	for {
		select {
		case ev := <-r.queue:
			r.publish(ctx, ev)
		default:
			metrics.SetEventQueueDepth(0)
			return
		}
	}
}

func (r *EventRelay) publish(ctx context.Context, ev events.TaskEvent) {
	logger := r.logger.With(slog.String("type", ev.Type), slog.String("task_id", ev.TaskID))

	_, err := retry.Do(ctx, r.retry, logger, "publish task event", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.breaker.Execute(func() error {
			return r.publisher.Publish(ctx, ev)
		})
	})
	switch {
	case err == nil:
		metrics.ObserveEvent("sent")
	case errors.Is(err, circuitbreaker.ErrOpen):
		metrics.ObserveEvent("rejected")
		logger.Debug("publisher circuit open, event discarded")
	default:
		metrics.ObserveEvent("failed")
		logger.Error("failed to publish task event", slog.String("error", err.Error()))
	}
}
