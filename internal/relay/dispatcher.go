package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

// DefaultChannel is the pub/sub channel relay pushes travel on.
const DefaultChannel = "relay:push"

// pushEnvelope is the broker wire shape for a targeted push.
type pushEnvelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher routes targeted pushes through the message broker so that a
// recipient connected to a different process instance still receives them.
// Every instance publishes to the shared channel and delivers whatever
// arrives on it to its local hub. With a nil broker the dispatcher degrades
// to local-only delivery.
type Dispatcher struct {
	hub     *Hub
	broker  messaging.Broker
	channel string
	logger  *logger.Logger
}

func NewDispatcher(hub *Hub, broker messaging.Broker, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		hub:     hub,
		broker:  broker,
		channel: DefaultChannel,
		logger:  logger,
	}
}

// Push implements the message service's Pusher. The payload is serialized
// once here; delivery to local connections happens in Run's subscription
// loop (or directly when no broker is configured).
func (d *Dispatcher) Push(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	if d.broker == nil {
		d.hub.Send(userID, Event{Event: event, Payload: json.RawMessage(raw)})
		return nil
	}

	env := pushEnvelope{UserID: userID, Event: event, Payload: raw}
	if err := d.broker.Publish(ctx, d.channel, env); err != nil {
		return fmt.Errorf("failed to publish push: %w", err)
	}
	return nil
}

// Run subscribes to the push channel and delivers inbound envelopes to the
// local hub until ctx is cancelled. It is a no-op without a broker.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.broker == nil {
		return nil
	}

	msgs, err := d.broker.Subscribe(ctx, d.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", d.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}

			var env pushEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				d.logger.Warn("dropping malformed push envelope", "error", err.Error())
				continue
			}
			d.hub.Send(env.UserID, Event{Event: env.Event, Payload: env.Payload})
		}
	}
}
