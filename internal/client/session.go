package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"syncBoard/internal/document"
	"syncBoard/internal/enums"
	"syncBoard/internal/models/socket"
	"syncBoard/internal/presence"
	"syncBoard/internal/propagation"
)

const writeWait = 10 * time.Second

var (
	ErrNotJoined     = errors.New("session has not joined a room")
	ErrSessionClosed = errors.New("session is closed")
)

type Options struct {
	UserName string
	Color    string
	UserID   string
	// Token is sent as a bearer token when set.
	Token       string
	Header      http.Header
	Dialer      *websocket.Dialer
	EventBuffer int
}

// Session is one connection to a board room. It owns the local replica, the
// roster and the chat log of that room; everything a board view needs is
// reached through it.
type Session struct {
	opts    Options
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu           sync.RWMutex
	replica      *propagation.Replica
	connectionID string
	roomID       string
	joined       chan struct{}
	members      []presence.Member
	chat         []socket.ChatMessageReceivedPayload

	events    chan socket.Event
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the board websocket at url and starts reading frames.
func Dial(ctx context.Context, url string, opts Options) (*Session, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = v
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	s := &Session{
		opts:    opts,
		ws:      ws,
		replica: propagation.NewReplica(),
		events:  make(chan socket.Event, opts.EventBuffer),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Join enters roomID, waits for the roster and asks the room for its state.
// Joining another room starts from an empty replica.
func (s *Session) Join(ctx context.Context, roomID string) error {
	joined := make(chan struct{})
	s.mu.Lock()
	if s.roomID != roomID {
		s.replica = propagation.NewReplica()
		s.chat = nil
	}
	s.roomID = roomID
	s.joined = joined
	s.mu.Unlock()

	err := s.write(enums.SOCKET_EVENT_JOIN_ROOM, socket.JoinRoomPayload{
		RoomID:   roomID,
		UserName: s.opts.UserName,
		Color:    s.opts.Color,
		UserID:   s.opts.UserID,
	})
	if err != nil {
		return err
	}
	select {
	case <-joined:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.RequestState()
}

func (s *Session) Leave() error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.roomID = ""
	s.members = nil
	s.mu.Unlock()
	return s.write(enums.SOCKET_EVENT_LEAVE_ROOM, socket.RoomPayload{RoomID: roomID})
}

// RequestState asks the other members, and the relay, for a full snapshot.
func (s *Session) RequestState() error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	return s.write(enums.SOCKET_EVENT_REQUEST_STATE, socket.RoomPayload{RoomID: roomID})
}

// Edit writes an element and broadcasts it. Edits are refused until the
// relay has confirmed the join, so every record carries the room's
// generation and this connection as its writer.
func (s *Session) Edit(id, kind string, payload json.RawMessage) (document.Element, error) {
	replica, err := s.writable()
	if err != nil {
		return document.Element{}, err
	}
	e := replica.Edit(id, kind, payload)
	return e, s.Flush()
}

func (s *Session) Remove(id string) error {
	replica, err := s.writable()
	if err != nil {
		return err
	}
	if _, ok := replica.Remove(id); !ok {
		return nil
	}
	return s.Flush()
}

// Clear empties the board for every member.
func (s *Session) Clear() error {
	replica, err := s.writable()
	if err != nil {
		return err
	}
	replica.Clear()
	return s.Flush()
}

func (s *Session) writable() (*propagation.Replica, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roomID == "" || s.joined != nil {
		return nil, ErrNotJoined
	}
	return s.replica, nil
}

// Flush sends the pending local changes as one doc-update. Changes stay
// pending when the write fails.
func (s *Session) Flush() error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	return s.Replica().Flush(func(u propagation.Update) error {
		encoded, err := propagation.EncodeUpdate(u)
		if err != nil {
			return err
		}
		return s.write(enums.SOCKET_EVENT_DOC_UPDATE, socket.DocUpdatePayload{RoomID: roomID, Update: encoded})
	})
}

func (s *Session) MoveCursor(x, y float64) error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	return s.write(enums.SOCKET_EVENT_CURSOR_MOVE, socket.CursorMovePayload{
		RoomID:   roomID,
		X:        x,
		Y:        y,
		UserName: s.opts.UserName,
		Color:    s.opts.Color,
	})
}

func (s *Session) Ping(x, y float64) error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	return s.write(enums.SOCKET_EVENT_BURST_PING, socket.BurstPingPayload{
		RoomID: roomID,
		X:      x,
		Y:      y,
		Color:  s.opts.Color,
	})
}

// Say sends a chat message. The relay does not echo it, so it is appended
// to the local log right away.
func (s *Session) Say(message string) error {
	roomID, err := s.room()
	if err != nil {
		return err
	}
	if err := s.write(enums.SOCKET_EVENT_CHAT_MESSAGE, socket.ChatMessagePayload{
		RoomID:   roomID,
		Message:  message,
		UserName: s.opts.UserName,
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.chat = append(s.chat, socket.ChatMessageReceivedPayload{
		RoomID:    roomID,
		Message:   message,
		UserName:  s.opts.UserName,
		Timestamp: time.Now().UTC(),
	})
	s.mu.Unlock()
	return nil
}

// Signal sends an offer, answer or ICE candidate to one connection.
func (s *Session) Signal(event, target string, payload json.RawMessage) error {
	if !enums.IsSignalEvent(event) {
		return errors.New("not a signaling event: " + event)
	}
	return s.write(event, socket.SignalPayload{Target: target, Payload: payload})
}

func (s *Session) Replica() *propagation.Replica {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replica
}

func (s *Session) ConnectionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionID
}

func (s *Session) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

func (s *Session) Members() []presence.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]presence.Member(nil), s.members...)
}

func (s *Session) Chat() []socket.ChatMessageReceivedPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]socket.ChatMessageReceivedPayload(nil), s.chat...)
}

// Events delivers every frame after the session has applied it. Frames are
// dropped when the consumer falls behind. The channel is closed with the
// session.
func (s *Session) Events() <-chan socket.Event {
	return s.events
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the read loop stopped.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	err := s.ws.Close()
	<-s.done
	return err
}

func (s *Session) room() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.roomID == "" {
		return "", ErrNotJoined
	}
	return s.roomID, nil
}

func (s *Session) write(event string, payload any) error {
	frame, err := socket.NewEvent(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return s.ws.WriteMessage(websocket.TextMessage, frame)
}

func (s *Session) readLoop() {
	defer s.closeOnce.Do(func() {
		close(s.events)
		close(s.done)
	})
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.err = err
			return
		}
		event, err := socket.DecodeEvent(data)
		if err != nil {
			log.Printf("Session.readLoop - malformed frame: %v", err)
			continue
		}
		if err := s.handle(event); err != nil {
			log.Printf("Session.readLoop - error handling %s: %v", event.Event, err)
		}
		select {
		case s.events <- event:
		default:
		}
	}
}

func (s *Session) handle(event socket.Event) error {
	switch event.Event {
	case enums.SOCKET_EVENT_ROOM_JOINED:
		var payload socket.RoomJoinedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		s.connectionID = payload.ConnectionID
		if payload.RoomID == s.roomID {
			s.members = payload.Members
			s.replica.Store().SetWriter(payload.ConnectionID)
			s.replica.Apply(propagation.Update{Generation: payload.Generation}, propagation.OriginRemote)
			if s.joined != nil {
				close(s.joined)
				s.joined = nil
			}
		}
		s.mu.Unlock()
	case enums.SOCKET_EVENT_USER_JOINED:
		var payload socket.UserJoinedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		s.members = append(removeMember(s.members, payload.ConnectionID), presence.Member{
			ConnectionID: payload.ConnectionID,
			UserName:     payload.UserName,
			Color:        payload.Color,
		})
		s.mu.Unlock()
	case enums.SOCKET_EVENT_USER_LEFT:
		var payload socket.UserLeftPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		s.mu.Lock()
		s.members = removeMember(s.members, payload.ConnectionID)
		s.mu.Unlock()
	case enums.SOCKET_EVENT_DOC_UPDATE:
		var payload socket.DocUpdatePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return s.applyRemote(payload.RoomID, payload.Update)
	case enums.SOCKET_EVENT_FULL_STATE:
		var payload socket.FullStatePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return s.applyRemote(payload.RoomID, payload.State)
	case enums.SOCKET_EVENT_REQUEST_STATE:
		var payload socket.RequestStatePayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		return s.answerStateRequest(payload)
	case enums.SOCKET_EVENT_CHAT_HISTORY:
		var history []socket.ChatMessageReceivedPayload
		if err := json.Unmarshal(event.Payload, &history); err != nil {
			return err
		}
		s.mu.Lock()
		s.chat = mergeChat(history, s.chat)
		s.mu.Unlock()
	case enums.SOCKET_EVENT_CHAT_MESSAGE_RECEIVED:
		var message socket.ChatMessageReceivedPayload
		if err := json.Unmarshal(event.Payload, &message); err != nil {
			return err
		}
		s.mu.Lock()
		s.chat = append(s.chat, message)
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) applyRemote(roomID string, raw json.RawMessage) error {
	if roomID != s.RoomID() {
		return nil
	}
	update, err := propagation.DecodeUpdate(raw)
	if err != nil {
		return err
	}
	s.Replica().Apply(update, propagation.OriginRemote)
	return nil
}

func (s *Session) answerStateRequest(request socket.RequestStatePayload) error {
	if request.RoomID != s.RoomID() || request.RequesterID == "" {
		return nil
	}
	state, ok := s.Replica().FullState()
	if !ok {
		return nil
	}
	encoded, err := propagation.EncodeUpdate(state)
	if err != nil {
		return err
	}
	return s.write(enums.SOCKET_EVENT_SEND_STATE, socket.SendStatePayload{
		RoomID: request.RoomID,
		Target: request.RequesterID,
		State:  encoded,
	})
}

func removeMember(members []presence.Member, connectionID string) []presence.Member {
	kept := members[:0]
	for _, m := range members {
		if m.ConnectionID != connectionID {
			kept = append(kept, m)
		}
	}
	return kept
}

// mergeChat puts the stored history ahead of messages that arrived live,
// skipping live messages the history already holds.
func mergeChat(history, live []socket.ChatMessageReceivedPayload) []socket.ChatMessageReceivedPayload {
	seen := make(map[string]struct{}, len(history))
	for _, m := range history {
		seen[m.ID] = struct{}{}
	}
	merged := append([]socket.ChatMessageReceivedPayload(nil), history...)
	for _, m := range live {
		if _, ok := seen[m.ID]; ok && m.ID != "" {
			continue
		}
		merged = append(merged, m)
	}
	return merged
}
