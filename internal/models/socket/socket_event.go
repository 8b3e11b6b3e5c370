package socket

import (
	"encoding/json"
	"time"

	"syncBoard/internal/presence"
)

// Event is the envelope of every frame on the board socket.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Payload: raw})
}

func DecodeEvent(frame []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(frame, &e)
	return e, err
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
	UserID   string `json:"userId,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// RoomJoinedPayload is sent once the room is ready for edits. Generation is
// the room's current clear generation; joiners adopt it before writing.
type RoomJoinedPayload struct {
	ConnectionID string            `json:"connectionId"`
	RoomID       string            `json:"roomId"`
	Generation   uint64            `json:"generation"`
	Members      []presence.Member `json:"members"`
}

type UserJoinedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserName     string `json:"userName"`
	Color        string `json:"color"`
}

type UserLeftPayload struct {
	ConnectionID string `json:"connectionId"`
}

type CursorMovePayload struct {
	RoomID   string  `json:"roomId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	UserName string  `json:"userName"`
	Color    string  `json:"color"`
}

type CursorMovedPayload struct {
	ConnectionID string  `json:"connectionId"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	UserName     string  `json:"userName"`
	Color        string  `json:"color"`
}

type BurstPingPayload struct {
	RoomID      string  `json:"roomId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       string  `json:"color"`
	ExpiresInMs int64   `json:"expiresInMs,omitempty"`
}

type BurstPingReceivedPayload struct {
	ConnectionID string    `json:"connectionId"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Color        string    `json:"color"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ChatMessagePayload struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	UserName string `json:"userName"`
}

type ChatMessageReceivedPayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Message   string    `json:"message"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// DocUpdatePayload carries an element batch. Update is opaque to the relay
// except for the mirror replica it keeps per room.
type DocUpdatePayload struct {
	RoomID string          `json:"roomId"`
	Update json.RawMessage `json:"update"`
}

type RequestStatePayload struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId,omitempty"`
}

type SendStatePayload struct {
	RoomID string          `json:"roomId"`
	Target string          `json:"target,omitempty"`
	State  json.RawMessage `json:"state"`
}

type FullStatePayload struct {
	RoomID string          `json:"roomId"`
	Sender string          `json:"sender"`
	State  json.RawMessage `json:"state"`
}

type SignalPayload struct {
	Target  string          `json:"target"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}
