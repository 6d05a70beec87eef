package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/domain"
)

type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// PublishResult is the explicit result of a best-effort publish. Err is
// nil for OutcomePublished.
type PublishResult struct {
	Outcome Outcome
	Err     error
}

// Producer publishes persisted events on the topic. Failures are logged
// and reported as a PublishResult, never returned to the caller that
// created the event.
type Producer struct {
	transport domain.Transport
	topic     string
	timeout   time.Duration
	clock     clockwork.Clock
	metrics   *metrics.BroadcastMetrics
	onResult  func(domain.Event, PublishResult)

	wg sync.WaitGroup
}

var _ domain.EventPublisher = (*Producer)(nil)

type ProducerOption func(*Producer)

func WithProducerMetrics(m *metrics.BroadcastMetrics) ProducerOption {
	return func(p *Producer) { p.metrics = m }
}

func WithProducerClock(c clockwork.Clock) ProducerOption {
	return func(p *Producer) { p.clock = c }
}

// WithResultHook registers fn to observe every publish outcome.
func WithResultHook(fn func(domain.Event, PublishResult)) ProducerOption {
	return func(p *Producer) { p.onResult = fn }
}

func NewProducer(transport domain.Transport, topic string, timeout time.Duration, opts ...ProducerOption) *Producer {
	p := &Producer{
		transport: transport,
		topic:     topic,
		timeout:   timeout,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Producer) Publish(ctx context.Context, e domain.Event) PublishResult {
	start := p.clock.Now()
	result := p.publish(ctx, e)

	switch result.Outcome {
	case OutcomePublished:
		slog.Debug("Event published", "event_id", e.ID, "topic", p.topic)
	case OutcomeSkipped:
		slog.Debug("Event publish skipped", "event_id", e.ID, "reason", result.Err)
	default:
		slog.Warn("Event publish failed", "event_id", e.ID, "topic", p.topic, "error", result.Err)
	}

	p.metrics.Published(string(result.Outcome), p.clock.Since(start).Seconds())
	if p.onResult != nil {
		p.onResult(e, result)
	}
	return result
}

func (p *Producer) publish(ctx context.Context, e domain.Event) PublishResult {
	payload, err := json.Marshal(e)
	if err != nil {
		return PublishResult{Outcome: OutcomeFailed, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.transport.Publish(ctx, p.topic, payload)
	switch {
	case err == nil:
		return PublishResult{Outcome: OutcomePublished}
	case errors.Is(err, domain.ErrTransportUnavailable):
		return PublishResult{Outcome: OutcomeSkipped, Err: err}
	default:
		return PublishResult{Outcome: OutcomeFailed, Err: err}
	}
}

// PublishAsync publishes e on a tracked goroutine, detached from any request context.
func (p *Producer) PublishAsync(e domain.Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Publish(context.Background(), e)
	}()
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (p *Producer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight publishes: %w", ctx.Err())
	}
}
