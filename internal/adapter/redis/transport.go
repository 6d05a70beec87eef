package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	unsubscribeTimeout = time.Second
	messageBuffer      = 64
)

// Transport publishes and subscribes on Redis pub/sub channels. All
// subscriptions share the connection pool of one client; each subscription
// holds its own dedicated pub/sub connection.
type Transport struct {
	rdb     *goredis.Client
	breaker *gobreaker.CircuitBreaker
}

var _ domain.Transport = (*Transport)(nil)

type TransportOption func(*gobreaker.Settings)

// WithBreakerTimeout sets how long the publish breaker stays open before probing again.
func WithBreakerTimeout(d time.Duration) TransportOption {
	return func(s *gobreaker.Settings) { s.Timeout = d }
}

// WithBreakerThreshold sets the number of consecutive publish failures that open the breaker.
func WithBreakerThreshold(n uint32) TransportOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= n }
	}
}

func NewTransport(rdb *goredis.Client, m *metrics.RedisMetrics, opts ...TransportOption) *Transport {
	settings := gobreaker.Settings{
		Name:        "redis-publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if m != nil {
				m.BreakerTransitions.WithLabelValues(to.String()).Inc()
				m.BreakerState.Set(float64(to))
			}
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Transport{rdb: rdb, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Publish sends payload to topic. While the breaker is open it fails
// without touching Redis.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.rdb.Publish(ctx, topic, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
	}
	return nil
}

func (t *Transport) BreakerState() gobreaker.State {
	return t.breaker.State()
}

// Subscribe opens a dedicated pub/sub connection and returns once Redis
// has confirmed the subscription.
func (t *Transport) Subscribe(ctx context.Context, topic string) (domain.Subscription, error) {
	ps := t.rdb.Subscribe(ctx, topic)

	// The first reply on a fresh subscription is the confirmation.
	reply, err := ps.Receive(ctx)
	if err == nil {
		if _, ok := reply.(*goredis.Subscription); !ok {
			err = fmt.Errorf("unexpected reply %T", reply)
		}
	}
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrSubscribeFailed, err)
	}

	s := &subscription{
		ps:    ps,
		topic: topic,
		msgs:  make(chan []byte, messageBuffer),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	go s.receive()
	return s, nil
}

type subscription struct {
	ps    *goredis.PubSub
	topic string
	msgs  chan []byte

	done      chan struct{}
	exit      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *subscription) Messages() <-chan []byte { return s.msgs }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// receive is the only reader of the pub/sub connection. It ends on the
// first read error; go-redis would otherwise reconnect silently.
func (s *subscription) receive() {
	defer close(s.exit)
	defer close(s.msgs)

	for {
		reply, err := s.ps.Receive(context.Background())
		if err != nil {
			select {
			case <-s.done:
			default:
				s.mu.Lock()
				s.err = fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
				s.mu.Unlock()
			}
			return
		}

		msg, ok := reply.(*goredis.Message)
		if !ok {
			continue
		}

		select {
		case s.msgs <- []byte(msg.Payload):
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()
		if uerr := s.ps.Unsubscribe(ctx, s.topic); uerr != nil {
			slog.Debug("Unsubscribe failed", "topic", s.topic, "error", uerr)
		}

		err = s.ps.Close()
		<-s.exit
	})
	return err
}
