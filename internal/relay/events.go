package relay

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/segmentio/ksuid"

	"syncBoard/internal/enums"
	"syncBoard/internal/errs"
	"syncBoard/internal/metrics"
	"syncBoard/internal/models"
	"syncBoard/internal/models/socket"
	"syncBoard/internal/presence"
	"syncBoard/internal/propagation"
	"syncBoard/internal/utils"
	"syncBoard/internal/validators"
)

const anonymousUserName = "Anonymous"

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, errs.ErrMalformedFrame
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, errs.ErrMalformedFrame
	}
	return payload, nil
}

// handleFrame dispatches one inbound frame. Bad frames are dropped without
// a reply and never close the connection.
func (h *Hub) handleFrame(c *Conn, data []byte) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	if !c.limiter.Allow() {
		h.reject(c, "", errs.ErrRateLimited)
		return
	}
	event, err := socket.DecodeEvent(data)
	if err != nil {
		h.reject(c, "", errs.ErrMalformedFrame)
		return
	}

	switch event.Event {
	case enums.SOCKET_EVENT_JOIN_ROOM:
		err = h.handleJoinRoom(c, event.Payload)
	case enums.SOCKET_EVENT_LEAVE_ROOM:
		h.leave(c.ID)
	case enums.SOCKET_EVENT_CURSOR_MOVE:
		err = h.handleCursorMove(c, event.Payload)
	case enums.SOCKET_EVENT_BURST_PING:
		err = h.handleBurstPing(c, event.Payload)
	case enums.SOCKET_EVENT_CHAT_MESSAGE:
		err = h.handleChatMessage(c, event.Payload)
	case enums.SOCKET_EVENT_DOC_UPDATE:
		err = h.handleDocUpdate(c, event.Payload, data)
	case enums.SOCKET_EVENT_REQUEST_STATE:
		err = h.handleRequestState(c, event.Payload)
	case enums.SOCKET_EVENT_SEND_STATE:
		err = h.handleSendState(c, event.Payload)
	case enums.SOCKET_EVENT_SIGNAL_OFFER, enums.SOCKET_EVENT_SIGNAL_ANSWER, enums.SOCKET_EVENT_SIGNAL_ICE:
		err = h.handleSignal(c, event.Event, event.Payload)
	default:
		h.reject(c, event.Event, errs.ErrUnknownEvent)
		return
	}

	if err != nil {
		h.reject(c, event.Event, err)
		return
	}
	metrics.FramesTotal.WithLabelValues(event.Event).Inc()
}

func (h *Hub) reject(c *Conn, event string, err error) {
	metrics.FramesDropped.WithLabelValues(err.Error()).Inc()
	if errors.Is(err, errs.ErrRateLimited) {
		return
	}
	log.Printf("Hub.handleFrame - dropping %q from %s: %v", event, c.ID, err)
}

// member resolves the sender's presence entry in roomID.
func (h *Hub) member(c *Conn, roomID string) (presence.Member, error) {
	if roomID == "" {
		return presence.Member{}, errs.ErrMalformedFrame
	}
	if !h.registry.Contains(roomID, c.ID) {
		return presence.Member{}, errs.ErrNotRoomMember
	}
	m, _ := h.registry.Member(c.ID)
	return m, nil
}

func (h *Hub) handleJoinRoom(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.JoinRoomPayload](raw)
	if err != nil {
		return err
	}
	if err := validators.ValidateRoomID(payload.RoomID); err != nil {
		return err
	}

	member := presence.Member{
		ConnectionID: c.ID,
		UserID:       utils.FirstNonEmpty(c.Identity.UserID, payload.UserID),
		UserName:     utils.FirstNonEmpty(payload.UserName, c.Identity.UserName, anonymousUserName),
		Color:        utils.FirstNonEmpty(payload.Color, utils.ColorFor(c.ID)),
	}
	result := h.registry.Join(payload.RoomID, member)
	if result.Left != nil {
		h.afterLeave(*result.Left)
	}
	rm, ok := h.rooms[payload.RoomID]
	if result.Created || !ok {
		rm = h.activate(payload.RoomID, c.ID)
	} else if !result.Rejoin {
		h.trackJoin(payload.RoomID, c.ID)
	}

	h.welcome(c, rm)
	h.broadcastEvent(payload.RoomID, c.ID, enums.SOCKET_EVENT_USER_JOINED, socket.UserJoinedPayload{
		ConnectionID: c.ID,
		UserName:     member.UserName,
		Color:        member.Color,
	})
	if !result.Rejoin {
		h.loadChatHistory(c, payload.RoomID)
	}
	return nil
}

// leave runs the leave path of a connection. Calling it again for the same
// connection is a no-op.
func (h *Hub) leave(connectionID string) {
	result, ok := h.registry.Leave(connectionID)
	if !ok {
		return
	}
	h.afterLeave(result)
}

func (h *Hub) afterLeave(result presence.LeaveResult) {
	h.broadcastEvent(result.RoomID, "", enums.SOCKET_EVENT_USER_LEFT, socket.UserLeftPayload{
		ConnectionID: result.Member.ConnectionID,
	})
	if result.Last {
		h.teardownAfterLeave(result.RoomID, result.Member.ConnectionID)
		return
	}
	h.trackLeave(result.RoomID, result.Member.ConnectionID)
}

func (h *Hub) handleCursorMove(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.CursorMovePayload](raw)
	if err != nil {
		return err
	}
	member, err := h.member(c, payload.RoomID)
	if err != nil {
		return err
	}
	h.broadcastEvent(payload.RoomID, c.ID, enums.SOCKET_EVENT_CURSOR_MOVED, socket.CursorMovedPayload{
		ConnectionID: c.ID,
		X:            payload.X,
		Y:            payload.Y,
		UserName:     utils.FirstNonEmpty(payload.UserName, member.UserName),
		Color:        utils.FirstNonEmpty(payload.Color, member.Color),
	})
	return nil
}

func (h *Hub) handleBurstPing(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.BurstPingPayload](raw)
	if err != nil {
		return err
	}
	member, err := h.member(c, payload.RoomID)
	if err != nil {
		return err
	}
	h.broadcastEvent(payload.RoomID, c.ID, enums.SOCKET_EVENT_BURST_PING_RECEIVED, socket.BurstPingReceivedPayload{
		ConnectionID: c.ID,
		X:            payload.X,
		Y:            payload.Y,
		Color:        utils.FirstNonEmpty(payload.Color, member.Color),
		ExpiresAt:    presence.PingExpiry(h.opts.Now(), payload.ExpiresInMs),
	})
	return nil
}

// handleChatMessage queues the message for persistence and forwards it to
// the other members right away.
func (h *Hub) handleChatMessage(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.ChatMessagePayload](raw)
	if err != nil {
		return err
	}
	member, err := h.member(c, payload.RoomID)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(payload.Message)
	if text == "" {
		return errs.ErrMalformedFrame
	}

	message := &models.ChatMessage{
		ID:        ksuid.New().String(),
		BoardID:   payload.RoomID,
		UserName:  utils.FirstNonEmpty(payload.UserName, member.UserName),
		Message:   text,
		Timestamp: h.opts.Now().UTC(),
	}
	h.persistChatMessage(message)
	h.broadcastEvent(payload.RoomID, c.ID, enums.SOCKET_EVENT_CHAT_MESSAGE_RECEIVED, chatPayload(message))
	return nil
}

func chatPayload(message *models.ChatMessage) socket.ChatMessageReceivedPayload {
	return socket.ChatMessageReceivedPayload{
		ID:        message.ID,
		RoomID:    message.BoardID,
		Message:   message.Message,
		UserName:  message.UserName,
		Timestamp: message.Timestamp,
	}
}

// handleDocUpdate forwards the original frame untouched and merges its batch
// into the room replica.
func (h *Hub) handleDocUpdate(c *Conn, raw json.RawMessage, frame []byte) error {
	payload, err := decodePayload[socket.DocUpdatePayload](raw)
	if err != nil {
		return err
	}
	if _, err := h.member(c, payload.RoomID); err != nil {
		return err
	}
	if len(payload.Update) == 0 {
		return errs.ErrMalformedFrame
	}
	h.broadcast(payload.RoomID, c.ID, enums.SOCKET_EVENT_DOC_UPDATE, frame)
	if rm, ok := h.rooms[payload.RoomID]; ok {
		h.mirror(rm, payload.Update)
	}
	return nil
}

// handleRequestState asks the other members for their state on behalf of a
// joiner. The relay answers too when its own replica holds anything.
func (h *Hub) handleRequestState(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.RequestStatePayload](raw)
	if err != nil {
		return err
	}
	if _, err := h.member(c, payload.RoomID); err != nil {
		return err
	}
	h.broadcastEvent(payload.RoomID, c.ID, enums.SOCKET_EVENT_REQUEST_STATE, socket.RequestStatePayload{
		RoomID:      payload.RoomID,
		RequesterID: c.ID,
	})

	rm, ok := h.rooms[payload.RoomID]
	if !ok {
		return nil
	}
	state, ok := rm.replica.FullState()
	if !ok {
		return nil
	}
	encoded, err := propagation.EncodeUpdate(state)
	if err != nil {
		return err
	}
	h.sendEvent(c, enums.SOCKET_EVENT_FULL_STATE, socket.FullStatePayload{
		RoomID: payload.RoomID,
		Sender: enums.RELAY_SENDER_ID,
		State:  encoded,
	})
	return nil
}

// handleSendState delivers a member's snapshot as full-state, to the
// requester when a target is given and to the whole room otherwise.
func (h *Hub) handleSendState(c *Conn, raw json.RawMessage) error {
	payload, err := decodePayload[socket.SendStatePayload](raw)
	if err != nil {
		return err
	}
	if _, err := h.member(c, payload.RoomID); err != nil {
		return err
	}
	if len(payload.State) == 0 {
		return errs.ErrMalformedFrame
	}

	frame, err := socket.NewEvent(enums.SOCKET_EVENT_FULL_STATE, socket.FullStatePayload{
		RoomID: payload.RoomID,
		Sender: c.ID,
		State:  payload.State,
	})
	if err != nil {
		return err
	}
	if rm, ok := h.rooms[payload.RoomID]; ok {
		h.mirror(rm, payload.State)
	}
	if payload.Target == "" {
		h.broadcast(payload.RoomID, c.ID, enums.SOCKET_EVENT_FULL_STATE, frame)
		return nil
	}
	return h.deliver(payload.Target, payload.RoomID, enums.SOCKET_EVENT_FULL_STATE, frame)
}
