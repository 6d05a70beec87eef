package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/domain"
	"golang.org/x/sync/errgroup"
)

const readLimit = 4096

var (
	errStreamEnded  = errors.New("subscription stream ended")
	errShuttingDown = errors.New("server shutting down")
)

type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateRelaying
	StateClosing
	StateClosed
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateRelaying:
		return "relaying"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SessionConfig is shared by every session of a process.
type SessionConfig struct {
	Topic             string
	HeartbeatInterval time.Duration
}

// Session relays the topic to one websocket client.
type Session struct {
	id        uuid.UUID
	conn      *websocket.Conn
	writer    *frameWriter
	transport domain.Transport
	cfg       SessionConfig
	clock     clockwork.Clock
	metrics   *metrics.BroadcastMetrics
	logger    *slog.Logger

	state atomic.Int32
}

func NewSession(conn *websocket.Conn, transport domain.Transport, cfg SessionConfig, clock clockwork.Clock, m *metrics.BroadcastMetrics) *Session {
	id := uuid.New()
	return &Session{
		id:        id,
		conn:      conn,
		writer:    newFrameWriter(conn),
		transport: transport,
		cfg:       cfg,
		clock:     clock,
		metrics:   m,
		logger:    slog.With("session_id", id.String()),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run drives the session until the client leaves, the stream ends or ctx
// is cancelled. All resources are released before it returns.
func (s *Session) Run(ctx context.Context) {
	s.setState(StateConnecting)

	sub, err := s.transport.Subscribe(ctx, s.cfg.Topic)
	if err != nil {
		s.degrade(err)
		return
	}
	s.setState(StateSubscribed)
	s.metrics.SessionStarted()
	s.logger.Debug("Session subscribed", "topic", s.cfg.Topic)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	readDone := make(chan struct{})
	go s.readPump(cancel, readDone)

	s.setState(StateRelaying)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.relay(gctx, sub) })
	g.Go(func() error {
		return heartbeat(gctx, s.clock, s.cfg.HeartbeatInterval, s.writeHeartbeat)
	})
	reason := g.Wait()

	s.setState(StateClosing)
	if err := sub.Close(); err != nil {
		s.logger.Debug("Subscription close failed", "error", err)
	}
	s.writer.close(closeCode(reason))
	<-readDone

	s.setState(StateClosed)
	s.metrics.SessionEnded(StateClosed.String(), true)
	s.logger.Debug("Session closed", "reason", reason)
}

// degrade is the terminal path when no subscription could be opened.
func (s *Session) degrade(err error) {
	s.logger.Warn("Notifications offline", "error", err)
	if werr := s.writer.writeJSON(domain.OfflineFrame); werr != nil {
		s.logger.Debug("Failed to write offline frame", "error", werr)
	}
	s.writer.close(websocket.CloseNormalClosure, "")
	s.setState(StateDegraded)
	s.metrics.SessionEnded(StateDegraded.String(), false)
}

// relay always returns a non-nil reason so the heartbeat is cancelled with it.
func (s *Session) relay(ctx context.Context, sub domain.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case payload, ok := <-sub.Messages():
			if !ok {
				if err := sub.Err(); err != nil {
					return err
				}
				return errStreamEnded
			}
			if err := s.writer.writeText(payload); err != nil {
				return err
			}
			s.metrics.FrameRelayed()
		}
	}
}

func (s *Session) writeHeartbeat(v any) error {
	if err := s.writer.writeJSON(v); err != nil {
		return err
	}
	s.metrics.HeartbeatSent()
	return nil
}

// readPump discards client frames. Its only job is noticing a client
// close; it returns once the socket is closed.
func (s *Session) readPump(cancel context.CancelCauseFunc, done chan<- struct{}) {
	defer close(done)
	s.conn.SetReadLimit(readLimit)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			cancel(fmt.Errorf("%w: %w", domain.ErrClientGone, err))
			return
		}
	}
}

func closeCode(reason error) (int, string) {
	switch {
	case errors.Is(reason, errShuttingDown):
		return websocket.CloseGoingAway, errShuttingDown.Error()
	case errors.Is(reason, domain.ErrTransportUnavailable), errors.Is(reason, errStreamEnded):
		return websocket.CloseInternalServerErr, ""
	default:
		return websocket.CloseNormalClosure, ""
	}
}
