package relay

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("clinic_test", "relay")

func newTestHub() *Hub {
	return NewHub(logger.NewLogger(nil), testMetrics)
}

func newTestClient(userID uuid.UUID, buffer int) *Client {
	return &Client{
		UserID: userID,
		send:   make(chan []byte, buffer),
	}
}

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	default:
		t.Fatal("no event queued on client")
		return Event{}
	}
}

func TestRegisterTracksConnectionsPerUser(t *testing.T) {
	hub := newTestHub()
	userID := uuid.New()

	first := newTestClient(userID, 1)
	second := newTestClient(userID, 1)
	other := newTestClient(uuid.New(), 1)

	hub.Register(first)
	hub.Register(second)
	hub.Register(other)

	assert.Equal(t, 3, hub.ConnectionCount())
	assert.Equal(t, 2, hub.UserConnectionCount(userID))
	assert.Equal(t, 1, hub.UserConnectionCount(other.UserID))
}

func TestSendReachesEveryConnectionOfUser(t *testing.T) {
	hub := newTestHub()
	userID := uuid.New()

	first := newTestClient(userID, 1)
	second := newTestClient(userID, 1)
	other := newTestClient(uuid.New(), 1)
	hub.Register(first)
	hub.Register(second)
	hub.Register(other)

	delivered := hub.Send(userID, Event{Event: "newNotification", Payload: map[string]string{"id": "n1"}})
	assert.Equal(t, 2, delivered)

	for _, client := range []*Client{first, second} {
		event := receiveEvent(t, client)
		assert.Equal(t, "newNotification", event.Event)
	}
	assert.Empty(t, other.send, "other users receive nothing")
}

func TestSendToAbsentUserIsDropped(t *testing.T) {
	hub := newTestHub()

	delivered := hub.Send(uuid.New(), Event{Event: "receiveMessage"})
	assert.Equal(t, 0, delivered)
}

func TestSendSkipsFullConnection(t *testing.T) {
	hub := newTestHub()
	userID := uuid.New()

	full := newTestClient(userID, 1)
	full.send <- []byte("occupied")
	open := newTestClient(userID, 1)
	hub.Register(full)
	hub.Register(open)

	delivered := hub.Send(userID, Event{Event: "receiveMessage"})
	assert.Equal(t, 1, delivered, "a saturated connection must not block the others")

	event := receiveEvent(t, open)
	assert.Equal(t, "receiveMessage", event.Event)
}

func TestUnregisterRemovesConnectionAndClosesSend(t *testing.T) {
	hub := newTestHub()
	userID := uuid.New()

	first := newTestClient(userID, 1)
	second := newTestClient(userID, 1)
	hub.Register(first)
	hub.Register(second)

	hub.Unregister(first)
	assert.Equal(t, 1, hub.UserConnectionCount(userID))

	_, open := <-first.send
	assert.False(t, open, "send channel closed on unregister")

	// Remaining connection still receives.
	delivered := hub.Send(userID, Event{Event: "newNotification"})
	assert.Equal(t, 1, delivered)

	// Unregistering twice is harmless.
	hub.Unregister(first)
	hub.Unregister(second)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.UserConnectionCount(userID))
}
