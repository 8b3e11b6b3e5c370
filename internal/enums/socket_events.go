package enums

// Events sent by clients.
const (
	SOCKET_EVENT_JOIN_ROOM     = "join-room"
	SOCKET_EVENT_LEAVE_ROOM    = "leave-room"
	SOCKET_EVENT_CURSOR_MOVE   = "cursor-move"
	SOCKET_EVENT_BURST_PING    = "burst-ping"
	SOCKET_EVENT_CHAT_MESSAGE  = "chat-message"
	SOCKET_EVENT_DOC_UPDATE    = "doc-update"
	SOCKET_EVENT_REQUEST_STATE = "request-state"
	SOCKET_EVENT_SEND_STATE    = "send-state"
	SOCKET_EVENT_SIGNAL_OFFER  = "signal-offer"
	SOCKET_EVENT_SIGNAL_ANSWER = "signal-answer"
	SOCKET_EVENT_SIGNAL_ICE    = "signal-ice"
)

// Events sent by the relay.
const (
	SOCKET_EVENT_ROOM_JOINED           = "room-joined"
	SOCKET_EVENT_USER_JOINED           = "user-joined"
	SOCKET_EVENT_USER_LEFT             = "user-left"
	SOCKET_EVENT_CURSOR_MOVED          = "cursor-moved"
	SOCKET_EVENT_BURST_PING_RECEIVED   = "burst-ping-received"
	SOCKET_EVENT_CHAT_MESSAGE_RECEIVED = "chat-message-received"
	SOCKET_EVENT_CHAT_HISTORY          = "chat-history"
	SOCKET_EVENT_FULL_STATE            = "full-state"
)

// RELAY_SENDER_ID is the sender of state the relay answers from its own replica.
const RELAY_SENDER_ID = "relay"

func IsSignalEvent(event string) bool {
	switch event {
	case SOCKET_EVENT_SIGNAL_OFFER, SOCKET_EVENT_SIGNAL_ANSWER, SOCKET_EVENT_SIGNAL_ICE:
		return true
	}
	return false
}
