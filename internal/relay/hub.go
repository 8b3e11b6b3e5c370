package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"syncBoard/internal/broker"
	"syncBoard/internal/enums"
	"syncBoard/internal/errs"
	"syncBoard/internal/interfaces"
	"syncBoard/internal/metrics"
	"syncBoard/internal/models/socket"
	"syncBoard/internal/presence"
	"syncBoard/internal/propagation"
)

// Broker carries room broadcasts and directed frames to other relay
// instances.
type Broker interface {
	InstanceID() string
	Publish(envelope broker.Envelope) bool
	Subscribe(ctx context.Context) (<-chan broker.Envelope, error)
}

type Options struct {
	Store    interfaces.BoardStore
	Archiver interfaces.SnapshotArchiver
	Ledger   interfaces.MembershipLedger
	Broker   Broker

	SendBuffer       int
	RateLimit        float64
	RateBurst        int
	ChatHistoryLimit int
	JobTimeout       time.Duration
	JobQueue         int
	Now              func() time.Time
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.ChatHistoryLimit <= 0 {
		o.ChatHistoryLimit = 50
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 5 * time.Second
	}
	if o.JobQueue <= 0 {
		o.JobQueue = 1024
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// room is the relay's live state for one room: a mirror replica merged from
// every update that passes through, used to answer state requests and to
// persist the board when the room empties.
//
// A room is not ready until its stored board has been loaded. Joiners wait
// in waiting and get room-joined once it is.
type room struct {
	id      string
	replica *propagation.Replica
	ready   bool
	waiting []string
}

type inboundFrame struct {
	conn *Conn
	data []byte
}

// Hub owns every connection, the room registry and the room replicas. All of
// that state is touched only by the goroutine running Run.
type Hub struct {
	opts     Options
	registry *presence.Registry
	conns    map[string]*Conn
	rooms    map[string]*room
	slow     []*Conn
	worker   *Worker

	register   chan *Conn
	unregister chan *Conn
	inbound    chan inboundFrame
	calls      chan func()
	done       chan struct{}
	stopped    chan struct{}
}

func NewHub(opts Options) *Hub {
	opts.setDefaults()
	return &Hub{
		opts:       opts,
		registry:   presence.NewRegistry(),
		conns:      make(map[string]*Conn),
		rooms:      make(map[string]*room),
		worker:     NewWorker(opts.JobQueue, opts.JobTimeout),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		inbound:    make(chan inboundFrame),
		calls:      make(chan func()),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run processes hub events until ctx is done, then tears down every room
// and waits for pending persistence jobs.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	h.worker.Start()

	var remote <-chan broker.Envelope
	if h.opts.Broker != nil {
		envelopes, err := h.opts.Broker.Subscribe(ctx)
		if err != nil {
			log.Printf("Hub.Run - broker subscribe failed, running standalone: %v", err)
		} else {
			remote = envelopes
		}
	}

	log.Println("Hub.Run - relay hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.conns[c.ID] = c
			metrics.ConnectionsActive.Inc()
		case c := <-h.unregister:
			if _, ok := h.conns[c.ID]; ok {
				h.drop(c)
			}
		case f := <-h.inbound:
			h.handleFrame(f.conn, f.data)
		case envelope, ok := <-remote:
			if !ok {
				remote = nil
				continue
			}
			h.handleRemote(envelope)
		case fn := <-h.calls:
			fn()
		}
		h.dropSlow()
	}
}

// Stopped is closed once Run has returned and queued jobs are finished.
func (h *Hub) Stopped() <-chan struct{} {
	return h.stopped
}

func (h *Hub) shutdown() {
	close(h.done)
	for roomID := range h.rooms {
		h.teardown(roomID)
	}
	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.Send)
	}
	metrics.ConnectionsActive.Set(0)
	h.worker.Close()
	log.Println("Hub.shutdown - relay hub stopped")
}

// Attach registers a connection that is driven by the caller instead of a
// websocket. The caller reads Conn.Send and calls Receive and Detach.
func (h *Hub) Attach(identity Identity) (*Conn, error) {
	c := h.newConn(identity, nil)
	if !h.attach(c) {
		return nil, errs.ErrHubStopped
	}
	return c, nil
}

func (h *Hub) attach(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Detach(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Receive hands one inbound frame to the hub. Frames of a connection are
// processed in the order they are received.
func (h *Hub) Receive(c *Conn, data []byte) {
	select {
	case h.inbound <- inboundFrame{conn: c, data: data}:
	case <-h.done:
	}
}

func (h *Hub) post(fn func()) bool {
	select {
	case h.calls <- fn:
		return true
	case <-h.done:
		return false
	}
}

// ActiveRooms returns the number of local members of every active room.
func (h *Hub) ActiveRooms(ctx context.Context) (map[string]int, error) {
	result := make(chan map[string]int, 1)
	if !h.post(func() { result <- h.registry.RoomSizes() }) {
		return nil, errs.ErrHubStopped
	}
	select {
	case sizes := <-result:
		return sizes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Members returns the roster of a room.
func (h *Hub) Members(ctx context.Context, roomID string) ([]presence.Member, error) {
	result := make(chan []presence.Member, 1)
	if !h.post(func() { result <- h.registry.Members(roomID) }) {
		return nil, errs.ErrHubStopped
	}
	select {
	case members := <-result:
		return members, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) drop(c *Conn) {
	delete(h.conns, c.ID)
	close(c.Send)
	metrics.ConnectionsActive.Dec()
	h.leave(c.ID)
}

func (h *Hub) dropSlow() {
	for len(h.slow) > 0 {
		c := h.slow[0]
		h.slow = h.slow[1:]
		if _, ok := h.conns[c.ID]; !ok {
			continue
		}
		log.Printf("Hub.dropSlow - connection %s send buffer full, dropping", c.ID)
		metrics.SlowConsumers.Inc()
		h.drop(c)
	}
}

// send queues a frame without blocking. A full buffer marks the connection
// for removal once the current event is handled.
func (h *Hub) send(c *Conn, frame []byte) {
	select {
	case c.Send <- frame:
	default:
		h.slow = append(h.slow, c)
	}
}

func (h *Hub) sendEvent(c *Conn, event string, payload any) {
	frame, err := socket.NewEvent(event, payload)
	if err != nil {
		log.Printf("Hub.sendEvent - error marshalling %s: %v", event, err)
		return
	}
	h.send(c, frame)
}

// broadcast delivers a frame to every member of roomID except one, here and
// on the other relay instances.
func (h *Hub) broadcast(roomID, except, event string, frame []byte) {
	for _, id := range h.registry.Peers(roomID, except) {
		if c, ok := h.conns[id]; ok {
			h.send(c, frame)
		}
	}
	if h.opts.Broker != nil {
		h.opts.Broker.Publish(broker.Envelope{
			Event:   event,
			RoomID:  roomID,
			Exclude: except,
			Frame:   frame,
		})
	}
}

func (h *Hub) broadcastEvent(roomID, except, event string, payload any) {
	frame, err := socket.NewEvent(event, payload)
	if err != nil {
		log.Printf("Hub.broadcastEvent - error marshalling %s: %v", event, err)
		return
	}
	h.broadcast(roomID, except, event, frame)
}

// deliver sends a frame to a single connection, possibly on another
// instance. Only members of roomID are reachable when roomID is set.
func (h *Hub) deliver(target, roomID, event string, frame []byte) error {
	if c, ok := h.conns[target]; ok {
		if roomID != "" && !h.registry.Contains(roomID, target) {
			return errs.ErrUnknownTarget
		}
		h.send(c, frame)
		return nil
	}
	if h.opts.Broker != nil {
		h.opts.Broker.Publish(broker.Envelope{
			Event:  event,
			RoomID: roomID,
			Target: target,
			Frame:  frame,
		})
		return nil
	}
	return errs.ErrUnknownTarget
}

func (h *Hub) handleRemote(envelope broker.Envelope) {
	if envelope.Target != "" {
		c, ok := h.conns[envelope.Target]
		if !ok {
			return
		}
		if envelope.RoomID != "" && !h.registry.Contains(envelope.RoomID, envelope.Target) {
			return
		}
		h.send(c, envelope.Frame)
		return
	}
	for _, id := range h.registry.Peers(envelope.RoomID, envelope.Exclude) {
		if c, ok := h.conns[id]; ok {
			h.send(c, envelope.Frame)
		}
	}
	h.mirrorFrame(envelope.RoomID, envelope.Frame)
}

// mirrorFrame merges the element batch of a forwarded frame into the room
// replica. Frames that carry no batch are ignored.
func (h *Hub) mirrorFrame(roomID string, frame []byte) {
	rm, ok := h.rooms[roomID]
	if !ok {
		return
	}
	event, err := socket.DecodeEvent(frame)
	if err != nil {
		return
	}
	var raw json.RawMessage
	switch event.Event {
	case enums.SOCKET_EVENT_DOC_UPDATE:
		var payload socket.DocUpdatePayload
		if json.Unmarshal(event.Payload, &payload) != nil {
			return
		}
		raw = payload.Update
	case enums.SOCKET_EVENT_FULL_STATE:
		var payload socket.FullStatePayload
		if json.Unmarshal(event.Payload, &payload) != nil {
			return
		}
		raw = payload.State
	default:
		return
	}
	h.mirror(rm, raw)
}

func (h *Hub) mirror(rm *room, raw json.RawMessage) {
	update, err := propagation.DecodeUpdate(raw)
	if err != nil {
		if !errors.Is(err, propagation.ErrEmptyUpdate) {
			log.Printf("Hub.mirror - room %s update not mirrored: %v", rm.id, err)
		}
		return
	}
	rm.replica.Apply(update, propagation.OriginRemote)
}
