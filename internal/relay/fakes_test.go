package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"syncBoard/internal/broker"
	"syncBoard/internal/errs"
	"syncBoard/internal/models"
	"syncBoard/internal/models/socket"
)

type fakeStore struct {
	mu       sync.Mutex
	ensured  []string
	closed   []string
	saved    map[string]models.BoardData
	boards   map[string]models.BoardData
	chat     []models.ChatMessage
	failChat bool

	// Loads and chat appends wait on these gates when they are set.
	loadGate chan struct{}
	chatGate chan struct{}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:  make(map[string]models.BoardData),
		boards: make(map[string]models.BoardData),
	}
}

func (s *fakeStore) EnsureActiveSession(_ context.Context, boardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = append(s.ensured, boardID)
	return nil
}

func (s *fakeStore) CloseActiveSession(_ context.Context, boardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, boardID)
	return nil
}

func (s *fakeStore) AppendChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if err := wait(ctx, s.chatGate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failChat {
		return errors.New("database unavailable")
	}
	s.chat = append(s.chat, *message)
	return nil
}

func (s *fakeStore) LoadChatHistory(_ context.Context, boardID string, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []models.ChatMessage
	for _, m := range s.chat {
		if m.BoardID == boardID {
			history = append(history, m)
		}
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

func (s *fakeStore) LoadBoardData(ctx context.Context, boardID string) (models.BoardData, error) {
	if err := wait(ctx, s.loadGate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.boards[boardID]
	if !ok {
		return nil, errs.ErrBoardNotFound
	}
	return data, nil
}

func (s *fakeStore) SaveBoardData(_ context.Context, boardID string, data models.BoardData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[boardID] = data
	return nil
}

func (s *fakeStore) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chat)
}

func (s *fakeStore) closedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.closed...)
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived map[string][]byte
}

func (a *fakeArchiver) ArchiveSnapshot(_ context.Context, boardID string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = make(map[string][]byte)
	}
	a.archived[boardID] = data
	return "boards/" + boardID + ".json", nil
}

type memLedger struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

func newMemLedger() *memLedger {
	return &memLedger{rooms: make(map[string]map[string]struct{})}
}

func (l *memLedger) Join(_ context.Context, roomID, connectionID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rooms[roomID] == nil {
		l.rooms[roomID] = make(map[string]struct{})
	}
	l.rooms[roomID][connectionID] = struct{}{}
	return int64(len(l.rooms[roomID])), nil
}

func (l *memLedger) Leave(_ context.Context, roomID, connectionID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms[roomID], connectionID)
	return int64(len(l.rooms[roomID])), nil
}

func (l *memLedger) size(roomID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms[roomID])
}

// memBus connects brokers of several hubs in one process.
type memBus struct {
	mu   sync.Mutex
	subs map[string]chan broker.Envelope
}

func newMemBus() *memBus {
	return &memBus{subs: make(map[string]chan broker.Envelope)}
}

type memBroker struct {
	bus *memBus
	id  string
}

func (b *memBus) broker(id string) *memBroker {
	return &memBroker{bus: b, id: id}
}

func (b *memBroker) InstanceID() string { return b.id }

func (b *memBroker) Publish(envelope broker.Envelope) bool {
	envelope.Origin = b.id
	b.bus.mu.Lock()
	defer b.bus.mu.Unlock()
	for id, ch := range b.bus.subs {
		if id == b.id {
			continue
		}
		select {
		case ch <- envelope:
		default:
		}
	}
	return true
}

func (b *memBroker) Subscribe(context.Context) (<-chan broker.Envelope, error) {
	ch := make(chan broker.Envelope, 256)
	b.bus.mu.Lock()
	b.bus.subs[b.id] = ch
	b.bus.mu.Unlock()
	return ch, nil
}

// startHub runs a hub until the test ends. The returned stop function waits
// for the worker to drain.
func startHub(t *testing.T, opts Options) (*Hub, func()) {
	t.Helper()
	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-hub.Stopped()
		})
	}
	t.Cleanup(stop)
	barrier(t, hub)
	return hub, stop
}

// barrier returns once the hub has handled everything posted before it.
func barrier(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := hub.ActiveRooms(ctx)
	require.NoError(t, err)
}

func attach(t *testing.T, hub *Hub, name string) *Conn {
	t.Helper()
	c, err := hub.Attach(Identity{UserName: name})
	require.NoError(t, err)
	return c
}

func frame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := socket.NewEvent(event, payload)
	require.NoError(t, err)
	return data
}

// recv waits for the next frame of the given event, skipping others.
func recv(t *testing.T, c *Conn, event string) socket.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "connection %s closed while waiting for %s", c.ID, event)
			e, err := socket.DecodeEvent(data)
			require.NoError(t, err)
			if e.Event == event {
				return e
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for "+event)
		}
	}
}

// recvRaw is recv returning the frame bytes.
func recvRaw(t *testing.T, c *Conn, event string) []byte {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "connection closed while waiting for %s", event)
			e, err := socket.DecodeEvent(data)
			require.NoError(t, err)
			if e.Event == event {
				return data
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for "+event)
		}
	}
}

// queued drains what is already buffered for c.
func queued(c *Conn) []socket.Event {
	var events []socket.Event
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return events
			}
			if e, err := socket.DecodeEvent(data); err == nil {
				events = append(events, e)
			}
		default:
			return events
		}
	}
}

func hasEvent(events []socket.Event, event string) bool {
	for _, e := range events {
		if e.Event == event {
			return true
		}
	}
	return false
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
