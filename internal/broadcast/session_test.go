package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig() SessionConfig {
	return SessionConfig{Topic: testTopic, HeartbeatInterval: 30 * time.Second}
}

func runSession(t *testing.T, s *Session) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(context.Background())
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "relaying", StateRelaying.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestSession_DegradedWithoutTransport(t *testing.T) {
	server, client := newTestConnPair(t)
	clock := clockwork.NewFakeClock()

	s := NewSession(server, domain.NoTransport{}, testSessionConfig(), clock, nil)
	s.Run(context.Background())

	assert.Equal(t, StateDegraded, s.State())
	assert.Equal(t, `{"error":"notifications offline"}`, readText(t, client))
	assert.Equal(t, ws.CloseNormalClosure, readCloseCode(t, client))

	// No heartbeat ticker was ever created.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, clock.BlockUntilContext(ctx, 1))
}

func TestSession_SubscribeFailureDegrades(t *testing.T) {
	m, transport := setupRedisTransport(t)
	m.Close()
	server, client := newTestConnPair(t)

	s := NewSession(server, transport, testSessionConfig(), clockwork.NewFakeClock(), nil)
	s.Run(context.Background())

	assert.Equal(t, StateDegraded, s.State())
	assert.Equal(t, `{"error":"notifications offline"}`, readText(t, client))
	assert.Equal(t, ws.CloseNormalClosure, readCloseCode(t, client))
}

func TestSession_RelaysPayloadVerbatim(t *testing.T) {
	m, transport := setupRedisTransport(t)
	server, client := newTestConnPair(t)

	s := NewSession(server, transport, testSessionConfig(), clockwork.NewFakeClock(), nil)
	done := runSession(t, s)
	waitForSubscribers(t, m, 1)
	assert.Equal(t, StateRelaying, s.State())

	payload := `{"id":1,"title":"Dinner"}`
	require.NoError(t, transport.Publish(context.Background(), testTopic, []byte(payload)))
	assert.Equal(t, payload, readText(t, client))

	client.Close()
	waitDone(t, done)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_TransportLossMidSession(t *testing.T) {
	m, transport := setupRedisTransport(t)
	server, client := newTestConnPair(t)
	clock := clockwork.NewFakeClock()

	s := NewSession(server, transport, testSessionConfig(), clock, nil)
	done := runSession(t, s)
	waitForSubscribers(t, m, 1)

	require.NoError(t, transport.Publish(context.Background(), testTopic, []byte(`{"id":1,"title":"Dinner"}`)))
	assert.Equal(t, `{"id":1,"title":"Dinner"}`, readText(t, client))

	m.Close()
	waitDone(t, done)

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, ws.CloseInternalServerErr, readCloseCode(t, client))

	// The heartbeat ticker is gone and nothing can be written any more.
	require.NoError(t, clock.BlockUntilContext(context.Background(), 0))
	clock.Advance(time.Hour)
	assert.True(t, s.writer.isClosed())
	assert.ErrorIs(t, s.writer.writeText([]byte("late")), domain.ErrClientGone)
}

func TestSession_ClientDisconnectReleasesSubscription(t *testing.T) {
	m, transport := setupRedisTransport(t)
	server, client := newTestConnPair(t)

	s := NewSession(server, transport, testSessionConfig(), clockwork.NewFakeClock(), nil)
	done := runSession(t, s)
	waitForSubscribers(t, m, 1)

	require.NoError(t, client.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")))
	waitDone(t, done)

	assert.Equal(t, StateClosed, s.State())
	waitForSubscribers(t, m, 0)
	assert.NoError(t, transport.Publish(context.Background(), testTopic, []byte(`{"id":2}`)))
}

func TestSession_SubscriptionClosedExactlyOnce(t *testing.T) {
	transport := &stubTransport{}
	server, client := newTestConnPair(t)

	s := NewSession(server, transport, testSessionConfig(), clockwork.NewFakeClock(), nil)
	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(transport.subscriptions()) == 1 }, time.Second, 5*time.Millisecond)

	// Parent cancellation races with the client leaving.
	go cancel(errShuttingDown)
	client.Close()
	waitDone(t, done)

	assert.Equal(t, 1, transport.subscriptions()[0].closeCount())
}

func TestSession_HeartbeatFrames(t *testing.T) {
	transport := &stubTransport{}
	server, client := newTestConnPair(t)
	clock := clockwork.NewFakeClock()
	cfg := testSessionConfig()

	s := NewSession(server, transport, cfg, clock, nil)
	done := runSession(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for range 2 {
		clock.Advance(cfg.HeartbeatInterval)
		want, err := json.Marshal(domain.NewHeartbeatFrame(clock.Now()))
		require.NoError(t, err)
		assert.JSONEq(t, string(want), readText(t, client))
	}

	client.Close()
	waitDone(t, done)
}

func TestSession_StopsOnParentCancel(t *testing.T) {
	transport := &stubTransport{}
	server, client := newTestConnPair(t)

	s := NewSession(server, transport, testSessionConfig(), clockwork.NewFakeClock(), nil)
	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	require.Eventually(t, func() bool { return s.State() == StateRelaying }, time.Second, 5*time.Millisecond)

	cancel(errShuttingDown)
	waitDone(t, done)

	assert.Equal(t, ws.CloseGoingAway, readCloseCode(t, client))
}
