package domain

import "context"

// Transport is a topic based publish/subscribe backend.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns only after the backend confirmed the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a live stream of payloads for one topic.
type Subscription interface {
	// Messages is closed when the stream ends, either by Close or by a backend failure.
	Messages() <-chan []byte
	// Err reports why the stream ended. It is nil while the stream is open and after a local Close.
	Err() error
	// Close unsubscribes and releases the backend connection. It is idempotent.
	Close() error
}

// NoTransport is the Transport used when no broadcast backend is configured.
type NoTransport struct{}

func (NoTransport) Publish(context.Context, string, []byte) error {
	return ErrTransportUnavailable
}

func (NoTransport) Subscribe(context.Context, string) (Subscription, error) {
	return nil, ErrTransportUnavailable
}
