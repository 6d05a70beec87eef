package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ws "github.com/gorilla/websocket"
	redisadapter "github.com/pscheid92/familyhub/internal/adapter/redis"
	"github.com/pscheid92/familyhub/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testTopic = "familyhub:events"

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

// serveHub exposes hub on a test server and returns a dialer for it.
func serveHub(t *testing.T, hub *Hub) func() *ws.Conn {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn)
	}))
	t.Cleanup(func() { srv.Close() })

	return func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
}

func setupRedisTransport(t *testing.T) (*miniredis.Miniredis, *redisadapter.Transport) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: m.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return m, redisadapter.NewTransport(rdb, nil)
}

func waitForSubscribers(t *testing.T, m *miniredis.Miniredis, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.PubSubNumSub(testTopic)[testTopic] == n
	}, 2*time.Second, 5*time.Millisecond, "expected %d subscribers", n)
}

func readText(t *testing.T, conn *ws.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ws.TextMessage, msgType)
	return string(data)
}

func readCloseCode(t *testing.T, conn *ws.Conn) int {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *ws.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr.Code
	}
}

// stubTransport is an in-memory Transport whose subscriptions are fed by hand.
type stubTransport struct {
	publishFn func(ctx context.Context, topic string, payload []byte) error

	mu   sync.Mutex
	subs []*stubSubscription
}

func (s *stubTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if s.publishFn != nil {
		return s.publishFn(ctx, topic, payload)
	}
	return nil
}

func (s *stubTransport) Subscribe(context.Context, string) (domain.Subscription, error) {
	sub := &stubSubscription{msgs: make(chan []byte, 16)}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *stubTransport) subscriptions() []*stubSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*stubSubscription(nil), s.subs...)
}

type stubSubscription struct {
	msgs chan []byte

	mu     sync.Mutex
	closed int
}

func (s *stubSubscription) Messages() <-chan []byte { return s.msgs }

func (s *stubSubscription) Err() error { return nil }

func (s *stubSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *stubSubscription) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
