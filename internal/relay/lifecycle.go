package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"

	"syncBoard/internal/enums"
	"syncBoard/internal/errs"
	"syncBoard/internal/interfaces"
	"syncBoard/internal/metrics"
	"syncBoard/internal/models"
	"syncBoard/internal/models/socket"
	"syncBoard/internal/propagation"
)

// activate runs on the EMPTY to ACTIVE transition of a room. The stored
// board session is reopened and the saved board, if any, seeds the room
// replica. The room becomes ready once the load finished, failed or timed
// out.
func (h *Hub) activate(roomID, connectionID string) *room {
	rm := &room{id: roomID, replica: propagation.NewReplica()}
	h.rooms[roomID] = rm
	metrics.RoomsActive.Inc()

	ledger, store := h.opts.Ledger, h.opts.Store
	if ledger == nil && store == nil {
		rm.ready = true
		return rm
	}
	h.worker.Enqueue(Job{Name: "activate", Run: func(ctx context.Context) error {
		if ledger != nil {
			if _, err := ledger.Join(ctx, roomID, connectionID); err != nil {
				log.Printf("Hub.activate - ledger join for %s failed: %v", roomID, err)
			}
		}
		update, loaded, err := loadRoom(ctx, store, roomID)
		h.post(func() { h.seed(rm, update, loaded) })
		return err
	}})
	return rm
}

func loadRoom(ctx context.Context, store interfaces.BoardStore, roomID string) (propagation.Update, bool, error) {
	var update propagation.Update
	if store == nil {
		return update, false, nil
	}
	if err := store.EnsureActiveSession(ctx, roomID); err != nil && !errors.Is(err, errs.ErrBoardNotFound) {
		return update, false, err
	}
	data, err := store.LoadBoardData(ctx, roomID)
	if err != nil {
		if errors.Is(err, errs.ErrBoardNotFound) {
			return update, false, nil
		}
		return update, false, err
	}
	if len(data) == 0 {
		return update, false, nil
	}
	update, err = propagation.DecodeUpdate(json.RawMessage(data))
	if err != nil {
		return update, false, err
	}
	return update, true, nil
}

// seed merges the persisted board into a room replica, releases the joiners
// waiting on it and pushes the result to every member.
func (h *Hub) seed(rm *room, update propagation.Update, loaded bool) {
	if h.rooms[rm.id] != rm {
		return
	}
	changed := loaded && (rm.replica.Apply(update, propagation.OriginRemote) > 0 || update.Generation > 0)
	rm.ready = true
	waiting := rm.waiting
	rm.waiting = nil
	for _, id := range waiting {
		if c, ok := h.conns[id]; ok && h.registry.Contains(rm.id, id) {
			h.welcome(c, rm)
		}
	}
	if !changed {
		return
	}
	state, ok := rm.replica.FullState()
	if !ok {
		return
	}
	encoded, err := propagation.EncodeUpdate(state)
	if err != nil {
		log.Printf("Hub.seed - error encoding state of %s: %v", rm.id, err)
		return
	}
	frame, err := socket.NewEvent(enums.SOCKET_EVENT_FULL_STATE, socket.FullStatePayload{
		RoomID: rm.id,
		Sender: enums.RELAY_SENDER_ID,
		State:  encoded,
	})
	if err != nil {
		return
	}
	for _, id := range h.registry.Peers(rm.id, "") {
		if c, ok := h.conns[id]; ok {
			h.send(c, frame)
		}
	}
}

// welcome confirms a join with the current roster and the room generation,
// or queues the confirmation until the room is ready.
func (h *Hub) welcome(c *Conn, rm *room) {
	if !rm.ready {
		if !slices.Contains(rm.waiting, c.ID) {
			rm.waiting = append(rm.waiting, c.ID)
		}
		return
	}
	h.sendEvent(c, enums.SOCKET_EVENT_ROOM_JOINED, socket.RoomJoinedPayload{
		ConnectionID: c.ID,
		RoomID:       rm.id,
		Generation:   rm.replica.Store().Generation(),
		Members:      h.registry.Members(rm.id),
	})
}

func (h *Hub) trackJoin(roomID, connectionID string) {
	ledger := h.opts.Ledger
	if ledger == nil {
		return
	}
	h.worker.Enqueue(Job{Name: "ledger-join", Run: func(ctx context.Context) error {
		_, err := ledger.Join(ctx, roomID, connectionID)
		return err
	}})
}

func (h *Hub) trackLeave(roomID, connectionID string) {
	ledger := h.opts.Ledger
	if ledger == nil {
		return
	}
	h.worker.Enqueue(Job{Name: "ledger-leave", Run: func(ctx context.Context) error {
		_, err := ledger.Leave(ctx, roomID, connectionID)
		return err
	}})
}

// teardownAfterLeave runs when the last local member left. With a ledger the
// room is only torn down once no instance has members left.
func (h *Hub) teardownAfterLeave(roomID, connectionID string) {
	data := h.discardRoom(roomID)
	ledger := h.opts.Ledger
	h.worker.Enqueue(Job{Name: "teardown", Run: func(ctx context.Context) error {
		if ledger != nil {
			remaining, err := ledger.Leave(ctx, roomID, connectionID)
			if err != nil {
				log.Printf("Hub.teardown - ledger leave for %s failed: %v", roomID, err)
			} else if remaining > 0 {
				return nil
			}
		}
		return h.persistRoom(ctx, roomID, data)
	}})
}

// teardown discards a room regardless of its members. Used on shutdown.
func (h *Hub) teardown(roomID string) {
	for _, id := range h.registry.Peers(roomID, "") {
		h.trackLeave(roomID, id)
	}
	data := h.discardRoom(roomID)
	h.worker.Enqueue(Job{Name: "teardown", Run: func(ctx context.Context) error {
		return h.persistRoom(ctx, roomID, data)
	}})
}

func (h *Hub) discardRoom(roomID string) models.BoardData {
	rm, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	delete(h.rooms, roomID)
	metrics.RoomsActive.Dec()

	state, ok := rm.replica.FullState()
	if !ok {
		return nil
	}
	encoded, err := propagation.EncodeUpdate(state)
	if err != nil {
		log.Printf("Hub.discardRoom - error encoding state of %s: %v", roomID, err)
		return nil
	}
	return models.BoardData(encoded)
}

// persistRoom saves and archives the final snapshot, then closes the active
// session. Each step runs even if an earlier one failed.
func (h *Hub) persistRoom(ctx context.Context, roomID string, data models.BoardData) error {
	store := h.opts.Store
	if store == nil {
		return nil
	}
	var errList []error
	if len(data) > 0 {
		if err := store.SaveBoardData(ctx, roomID, data); err != nil && !errors.Is(err, errs.ErrBoardNotFound) {
			errList = append(errList, err)
		}
		if h.opts.Archiver != nil {
			if _, err := h.opts.Archiver.ArchiveSnapshot(ctx, roomID, data); err != nil {
				errList = append(errList, err)
			}
		}
	}
	if err := store.CloseActiveSession(ctx, roomID); err != nil && !errors.Is(err, errs.ErrBoardNotFound) {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}

func (h *Hub) persistChatMessage(message *models.ChatMessage) {
	store := h.opts.Store
	if store == nil {
		return
	}
	h.worker.Enqueue(Job{Name: "chat-append", Droppable: true, Run: func(ctx context.Context) error {
		return store.AppendChatMessage(ctx, message)
	}})
}

// loadChatHistory replays the stored chat of a room to a joiner only.
func (h *Hub) loadChatHistory(c *Conn, roomID string) {
	store := h.opts.Store
	if store == nil {
		return
	}
	limit := h.opts.ChatHistoryLimit
	h.worker.Enqueue(Job{Name: "chat-history", Run: func(ctx context.Context) error {
		history, err := store.LoadChatHistory(ctx, roomID, limit)
		if err != nil {
			return err
		}
		h.post(func() {
			if !h.registry.Contains(roomID, c.ID) {
				return
			}
			payload := make([]socket.ChatMessageReceivedPayload, 0, len(history))
			for i := range history {
				payload = append(payload, chatPayload(&history[i]))
			}
			h.sendEvent(c, enums.SOCKET_EVENT_CHAT_HISTORY, payload)
		})
		return nil
	}})
}
