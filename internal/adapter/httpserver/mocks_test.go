package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/familyhub/internal/domain"
	"github.com/pscheid92/familyhub/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockEventService struct {
	createEventFn func(ctx context.Context, ne domain.NewEvent) (*domain.Event, error)
	getEventFn    func(ctx context.Context, id int64) (*domain.Event, error)
	listEventsFn  func(ctx context.Context) ([]domain.Event, error)
}

func (m *mockEventService) CreateEvent(ctx context.Context, ne domain.NewEvent) (*domain.Event, error) {
	if m.createEventFn != nil {
		return m.createEventFn(ctx, ne)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEventService) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	if m.getEventFn != nil {
		return m.getEventFn(ctx, id)
	}
	return nil, domain.ErrEventNotFound
}

func (m *mockEventService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	if m.listEventsFn != nil {
		return m.listEventsFn(ctx)
	}
	return []domain.Event{}, nil
}

// fakeNotifier sends greeting on every connection and closes it normally.
type fakeNotifier struct {
	greeting string

	mu     sync.Mutex
	served int
}

func (f *fakeNotifier) Serve(_ context.Context, conn *websocket.Conn) {
	f.mu.Lock()
	f.served++
	f.mu.Unlock()

	defer func() { _ = conn.Close() }()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(f.greeting))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (f *fakeNotifier) servedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served
}

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		EventsTopic:     "familyhub:events",
		EventsRateLimit: 100,
		EventsRateBurst: 100,
	}
}

func newTestServer(t *testing.T, events eventService, opts ...Option) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), events, &fakeNotifier{greeting: "hi"}, opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, events eventService, n notifier, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(cfg, events, n, opts...)
	require.NotNil(t, srv)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, srv, method, target, strings.NewReader(body), "application/json")
}
