package domain

import "errors"

var (
	// ErrTransportUnavailable means no broadcast backend is configured or reachable.
	ErrTransportUnavailable = errors.New("broadcast transport unavailable")
	ErrPublishFailed        = errors.New("publish failed")
	ErrSubscribeFailed      = errors.New("subscribe failed")
	// ErrClientGone is returned when a write to a client socket fails or the socket is already closed.
	ErrClientGone    = errors.New("client gone")
	ErrEventNotFound = errors.New("event not found")
)
