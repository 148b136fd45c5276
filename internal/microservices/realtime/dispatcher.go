package realtime

import (
	"log/slog"

	"cinecircle/internal/shared"
)

// Dispatcher is the single delivery primitive every service pushes through.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Deliver sends event to every connection of userID and reports whether the
// user had any. Offline users are dropped silently; a failing connection is
// logged and does not stop delivery to the others.
func (d *Dispatcher) Deliver(userID string, event shared.EventType, payload any) bool {
	conns := d.registry.ConnectionsOf(userID)
	if len(conns) == 0 {
		d.logger.Debug("delivery_dropped_offline", "user_id", userID, "event", event)
		return false
	}

	frame, err := shared.EncodeEnvelope(event, payload)
	if err != nil {
		d.logger.Error("delivery_encode_failed", "user_id", userID, "event", event, "error", err)
		return false
	}

	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			d.logger.Warn("delivery_failed",
				"user_id", userID,
				"connection_id", c.ID(),
				"event", event,
				"error", err,
			)
		}
	}
	return true
}

// Broadcast sends event to every registered connection and returns how many
// accepted the frame.
func (d *Dispatcher) Broadcast(event shared.EventType, payload any) int {
	frame, err := shared.EncodeEnvelope(event, payload)
	if err != nil {
		d.logger.Error("broadcast_encode_failed", "event", event, "error", err)
		return 0
	}
	sent := 0
	for _, c := range d.registry.Connections() {
		if err := c.Send(frame); err != nil {
			d.logger.Warn("broadcast_failed", "connection_id", c.ID(), "event", event, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Reply sends a frame to one connection only, for acks and errors.
func (d *Dispatcher) Reply(conn Conn, frame []byte) {
	if err := conn.Send(frame); err != nil {
		d.logger.Warn("reply_failed", "connection_id", conn.ID(), "error", err)
	}
}
