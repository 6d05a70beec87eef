package domain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoTransport(t *testing.T) {
	var tr Transport = NoTransport{}

	err := tr.Publish(context.Background(), "familyhub:events", []byte("{}"))
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	sub, err := tr.Subscribe(context.Background(), "familyhub:events")
	assert.ErrorIs(t, err, ErrTransportUnavailable)
	assert.Nil(t, sub)
}

func TestHeartbeatFrame_JSON(t *testing.T) {
	now := time.Unix(1700000000, 500_000_000)

	data, err := json.Marshal(NewHeartbeatFrame(now))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat","ts":1700000000.5}`, string(data))
}

func TestOfflineFrame_JSON(t *testing.T) {
	data, err := json.Marshal(OfflineFrame)
	require.NoError(t, err)
	assert.Equal(t, `{"error":"notifications offline"}`, string(data))
}

func TestEvent_JSONShape(t *testing.T) {
	when := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	e := Event{ID: 1, Title: "Dinner", When: when, CreatedAt: when.Add(-time.Hour)}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"title":"Dinner","when":"2026-03-01T18:30:00Z","notes":null,"created_at":"2026-03-01T17:30:00Z"}`, string(data))
}
