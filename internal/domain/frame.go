package domain

import "time"

const (
	FrameTypeHeartbeat = "heartbeat"
	OfflineMessage     = "notifications offline"
)

// HeartbeatFrame is the liveness frame written to every relaying session.
type HeartbeatFrame struct {
	Type string  `json:"type"`
	TS   float64 `json:"ts"`
}

func NewHeartbeatFrame(now time.Time) HeartbeatFrame {
	return HeartbeatFrame{Type: FrameTypeHeartbeat, TS: float64(now.UnixNano()) / 1e9}
}

// ErrorFrame is sent once before closing a connection that cannot be served.
type ErrorFrame struct {
	Error string `json:"error"`
}

var OfflineFrame = ErrorFrame{Error: OfflineMessage}
