package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

var (
	ErrHubFull    = errors.New("session limit reached")
	ErrHubStopped = errors.New("hub stopped")
)

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	id     uuid.UUID
	cancel context.CancelCauseFunc
	reply  chan error
}

type unregisterCmd struct {
	baseHubCmd
	id uuid.UUID
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

type stopCmd struct {
	baseHubCmd
	reply chan int
}

// HubConfig configures every session the hub serves.
type HubConfig struct {
	Session     SessionConfig
	MaxSessions int
}

// Hub tracks live sessions. The registry is owned by a single goroutine
// and only mutated through commands.
type Hub struct {
	cmdCh     chan hubCmd
	transport domain.Transport
	cfg       HubConfig
	clock     clockwork.Clock
	metrics   *metrics.BroadcastMetrics

	sessions map[uuid.UUID]context.CancelCauseFunc
	stopping bool

	wg       sync.WaitGroup
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(transport domain.Transport, cfg HubConfig, clock clockwork.Clock, m *metrics.BroadcastMetrics) *Hub {
	h := &Hub{
		cmdCh:     make(chan hubCmd, 256),
		transport: transport,
		cfg:       cfg,
		clock:     clock,
		metrics:   m,
		sessions:  make(map[uuid.UUID]context.CancelCauseFunc),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

// Serve runs one session on conn and returns when it is closed. The hub
// takes ownership of conn.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	s := NewSession(conn, h.transport, h.cfg.Session, h.clock, h.metrics)

	sctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer stop()

	if err := h.register(s.ID(), cancel); err != nil {
		h.reject(conn, err)
		return
	}
	defer h.wg.Done()
	defer h.unregister(s.ID())

	s.Run(sctx)
}

func (h *Hub) reject(conn *websocket.Conn, err error) {
	slog.Warn("Rejecting websocket connection", "error", err)
	h.metrics.SessionRejected()

	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "try again later")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
	_ = conn.Close()
}

func (h *Hub) register(id uuid.UUID, cancel context.CancelCauseFunc) error {
	reply := make(chan error, 1)
	select {
	case h.cmdCh <- registerCmd{id: id, cancel: cancel, reply: reply}:
	case <-h.done:
		return ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-reply:
		return err
	case <-h.done:
		return ErrHubStopped
	case <-timer.Chan():
		// A late success must still be undone or Stop would wait for it.
		go func() {
			if err := <-reply; err == nil {
				h.unregister(id)
				h.wg.Done()
			}
		}()
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

func (h *Hub) unregister(id uuid.UUID) {
	select {
	case h.cmdCh <- unregisterCmd{id: id}:
	case <-h.done:
	}
}

// SessionCount returns the number of registered sessions, or -1 if the hub did not answer.
func (h *Hub) SessionCount() int {
	reply := make(chan int, 1)
	select {
	case h.cmdCh <- countCmd{reply: reply}:
	case <-h.done:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("SessionCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop refuses new sessions, cancels the live ones and waits for them to
// release their resources (bounded by stopTimeout). Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		reply := make(chan int, 1)
		h.cmdCh <- stopCmd{reply: reply}
		n := <-reply
		slog.Info("Hub shutting down", "sessions", n)

		drained := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(drained)
		}()

		timer := h.clock.NewTimer(stopTimeout)
		defer timer.Stop()

		select {
		case <-drained:
			slog.Info("Hub stopped gracefully")
		case <-timer.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
		}

		close(h.quit)
		<-h.done
	})
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				delete(h.sessions, c.id)
			case countCmd:
				c.reply <- len(h.sessions)
			case stopCmd:
				h.handleStop(c)
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	switch {
	case h.stopping:
		c.reply <- ErrHubStopped
	case len(h.sessions) >= h.cfg.MaxSessions:
		c.reply <- fmt.Errorf("%w (%d)", ErrHubFull, h.cfg.MaxSessions)
	default:
		// Added before replying, so every Add happens before Stop starts waiting.
		h.wg.Add(1)
		h.sessions[c.id] = c.cancel
		c.reply <- nil
	}
}

func (h *Hub) handleStop(c stopCmd) {
	h.stopping = true
	for _, cancel := range h.sessions {
		cancel(errShuttingDown)
	}
	c.reply <- len(h.sessions)
}
