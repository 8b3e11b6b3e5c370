package relay

import (
	"encoding/json"

	"syncBoard/internal/errs"
	"syncBoard/internal/models/socket"
)

// handleSignal forwards an offer, answer or ICE candidate to exactly one
// connection. The sender field is always set by the relay. Frames for an
// unknown target are dropped.
func (h *Hub) handleSignal(c *Conn, event string, raw json.RawMessage) error {
	payload, err := decodePayload[socket.SignalPayload](raw)
	if err != nil {
		return err
	}
	if payload.Target == "" || payload.Target == c.ID {
		return errs.ErrMalformedFrame
	}
	payload.Sender = c.ID

	frame, err := socket.NewEvent(event, payload)
	if err != nil {
		return err
	}
	return h.deliver(payload.Target, "", event, frame)
}
