package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/familyhub/internal/domain"
)

const writeDeadline = 5 * time.Second

// frameWriter serializes writes to one websocket. Once closed it refuses
// every further write, so nothing reaches the socket after close.
type frameWriter struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func newFrameWriter(conn *websocket.Conn) *frameWriter {
	return &frameWriter{conn: conn}
}

func (w *frameWriter) writeText(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return domain.ErrClientGone
	}

	w.updateWriteDeadline()
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrClientGone, err)
	}
	return nil
}

func (w *frameWriter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return w.writeText(data)
}

// close writes a best-effort close frame and closes the socket. Only the first call has an effect.
func (w *frameWriter) close(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	w.updateWriteDeadline()
	_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = w.conn.Close()
}

func (w *frameWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Socket deadlines are wall-clock, so they never come from an injected clock.
func (w *frameWriter) updateWriteDeadline() {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
}
