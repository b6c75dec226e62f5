package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// fakeBroker loops published messages straight back to its subscribers, the
// way a single-channel pub/sub does for an instance subscribed to its own
// channel.
type fakeBroker struct {
	messages   chan []byte
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{messages: make(chan []byte, 16)}
}

func (b *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.messages <- data
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return b.messages, nil
}

func (b *fakeBroker) Close() error {
	close(b.messages)
	return nil
}

func waitForEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPushWithoutBrokerDeliversLocally(t *testing.T) {
	hub := newTestHub()
	dispatcher := NewDispatcher(hub, nil, logger.NewLogger(nil))

	userID := uuid.New()
	client := newTestClient(userID, 1)
	hub.Register(client)

	err := dispatcher.Push(context.Background(), userID, "newNotification", map[string]string{"id": "n1"})
	require.NoError(t, err)

	event := receiveEvent(t, client)
	assert.Equal(t, "newNotification", event.Event)
}

func TestPushTravelsThroughBroker(t *testing.T) {
	hub := newTestHub()
	broker := newFakeBroker()
	dispatcher := NewDispatcher(hub, broker, logger.NewLogger(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	userID := uuid.New()
	client := newTestClient(userID, 1)
	hub.Register(client)

	err := dispatcher.Push(context.Background(), userID, "receiveMessage", map[string]string{"content": "hi"})
	require.NoError(t, err)

	event := waitForEvent(t, client)
	assert.Equal(t, "receiveMessage", event.Event)

	payload, ok := event.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hi", payload["content"])
}

func TestRunDropsMalformedEnvelope(t *testing.T) {
	hub := newTestHub()
	broker := newFakeBroker()
	dispatcher := NewDispatcher(hub, broker, logger.NewLogger(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	userID := uuid.New()
	client := newTestClient(userID, 1)
	hub.Register(client)

	broker.messages <- []byte("not json")

	// The loop survives and keeps delivering.
	err := dispatcher.Push(context.Background(), userID, "newNotification", nil)
	require.NoError(t, err)

	event := waitForEvent(t, client)
	assert.Equal(t, "newNotification", event.Event)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	hub := newTestHub()
	broker := newFakeBroker()
	dispatcher := NewDispatcher(hub, broker, logger.NewLogger(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestPushPropagatesPublishFailure(t *testing.T) {
	hub := newTestHub()
	broker := newFakeBroker()
	broker.publishErr = context.DeadlineExceeded
	dispatcher := NewDispatcher(hub, broker, logger.NewLogger(nil))

	err := dispatcher.Push(context.Background(), uuid.New(), "receiveMessage", nil)
	require.Error(t, err)
}
