package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Inbound wire shapes. The sender identity always comes from the
// authenticated connection, never from the payload.
type inboundEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type sendMessagePayload struct {
	ReceiverID uuid.UUID `json:"receiverId"`
	Content    string    `json:"content"`
}

// MessageSender is the slice of the message pipeline the relay needs.
type MessageSender interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*model.Message, error)
}

// Client is one live connection owned by one user.
type Client struct {
	UserID uuid.UUID

	hub    *Hub
	conn   *websocket.Conn
	msgSvc MessageSender
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, msgSvc MessageSender) *Client {
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		msgSvc: msgSvc,
		send:   make(chan []byte, sendBufferSize),
	}
}

// readPump consumes inbound events until the connection drops. A malformed
// event produces an error event on this connection only; the relay keeps
// serving everyone else.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("relay connection dropped",
					"user_id", c.UserID.String(),
					"error", err.Error())
			}
			return
		}

		c.handleInbound(raw)
	}
}

func (c *Client) handleInbound(raw []byte) {
	var evt inboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.reject("malformed event")
		return
	}

	switch evt.Event {
	case "sendMessage":
		var payload sendMessagePayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload.ReceiverID == uuid.Nil {
			c.reject("malformed sendMessage payload")
			return
		}

		if _, err := c.msgSvc.Send(context.Background(), c.UserID, payload.ReceiverID, payload.Content); err != nil {
			c.reject(err.Error())
		}
	default:
		c.reject("unknown event: " + evt.Event)
	}
}

// reject sends an error event back to this connection without touching any
// other client.
func (c *Client) reject(message string) {
	c.hub.metrics.RelayInboundErrors.Inc()

	data, err := json.Marshal(Event{Event: "error", Payload: map[string]string{"message": message}})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It exits when the hub closes the send channel or a write
// fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
