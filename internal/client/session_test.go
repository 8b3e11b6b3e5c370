package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncBoard/internal/enums"
	"syncBoard/internal/models/socket"
	"syncBoard/internal/relay"
)

func startRelay(t *testing.T) string {
	t.Helper()
	hub := relay.NewHub(relay.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ws, relay.Identity{UserName: r.URL.Query().Get("name")})
	}))
	t.Cleanup(func() {
		cancel()
		<-hub.Stopped()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, name, roomID string) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := Dial(ctx, url, Options{UserName: name, Color: "#abcdef"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Join(ctx, roomID))
	return s
}

// waitEvent reads the session's events until one named event arrives.
func waitEvent(t *testing.T, s *Session, event string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-s.Events():
			require.True(t, ok, "session closed while waiting for %s", event)
			if e.Event == event {
				return
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for "+event)
		}
	}
}

func eventually(t *testing.T, condition func() bool) {
	t.Helper()
	require.Eventually(t, condition, 2*time.Second, 10*time.Millisecond)
}

func TestEditsReachOtherSessions(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	b := dial(t, url, "bob", "board")
	eventually(t, func() bool { return len(a.Members()) == 2 })

	_, err := a.Edit("e1", "note", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)

	eventually(t, func() bool {
		e, ok := b.Replica().Store().Get("e1")
		return ok && e.Version == 1
	})
	_, pending := b.Replica().Pending()
	assert.False(t, pending)

	require.NoError(t, b.Remove("e1"))
	eventually(t, func() bool {
		e, ok := a.Replica().Store().Get("e1")
		return ok && e.Deleted
	})
	assert.Empty(t, a.Replica().Store().Live())
}

func TestLateJoinerReceivesState(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	b := dial(t, url, "bob", "board")

	_, err := a.Edit("e1", "path", json.RawMessage(`"P1"`))
	require.NoError(t, err)
	_, err = a.Edit("e1", "path", json.RawMessage(`"P3"`))
	require.NoError(t, err)
	_, err = b.Edit("e2", "shape", json.RawMessage(`"P4"`))
	require.NoError(t, err)
	eventually(t, func() bool { return a.Replica().Store().Len() == 2 && b.Replica().Store().Len() == 2 })

	c := dial(t, url, "carol", "board")
	eventually(t, func() bool {
		return assert.ObjectsAreEqual(a.Replica().Store().Snapshot(), c.Replica().Store().Snapshot())
	})
}

func TestClearReachesOtherSessions(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	b := dial(t, url, "bob", "board")

	_, err := a.Edit("e1", "text", json.RawMessage(`"x"`))
	require.NoError(t, err)
	eventually(t, func() bool { return b.Replica().Store().Len() == 1 })

	require.NoError(t, b.Clear())
	eventually(t, func() bool {
		return a.Replica().Store().Generation() == 1 && a.Replica().Store().Len() == 0
	})
}

func TestJoinerEditsOnClearedBoardSurvive(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	_, err := a.Edit("old", "note", json.RawMessage(`"before clear"`))
	require.NoError(t, err)
	require.NoError(t, a.Clear())
	require.NoError(t, a.RequestState())
	waitEvent(t, a, enums.SOCKET_EVENT_FULL_STATE)

	b := dial(t, url, "bob", "board")
	assert.Equal(t, uint64(1), b.Replica().Store().Generation())
	e, err := b.Edit("new", "note", json.RawMessage(`"after clear"`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Generation)
	assert.Equal(t, b.ConnectionID(), e.Writer)

	eventually(t, func() bool {
		_, ok := a.Replica().Store().Get("new")
		return ok
	})
	require.NoError(t, b.RequestState())
	waitEvent(t, b, enums.SOCKET_EVENT_FULL_STATE)
	_, kept := b.Replica().Store().Get("new")
	assert.True(t, kept)
	eventually(t, func() bool {
		return assert.ObjectsAreEqual(a.Replica().Store().Snapshot(), b.Replica().Store().Snapshot())
	})
}

func TestConcurrentEditsOfOneNoteConverge(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	b := dial(t, url, "bob", "board")
	eventually(t, func() bool { return len(a.Members()) == 2 })

	_, err := a.Edit("note-1", "note", json.RawMessage(`"from A"`))
	require.NoError(t, err)
	_, err = b.Edit("note-1", "note", json.RawMessage(`"from B"`))
	require.NoError(t, err)

	eventually(t, func() bool {
		return assert.ObjectsAreEqual(a.Replica().Store().Snapshot(), b.Replica().Store().Snapshot())
	})
}

func TestRosterAndChat(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url, "alice", "board")
	b := dial(t, url, "bob", "board")

	members := b.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].UserName)
	eventually(t, func() bool { return len(a.Members()) == 2 })

	require.NoError(t, a.Say("hello"))
	eventually(t, func() bool { return len(b.Chat()) == 1 })
	assert.Equal(t, "hello", b.Chat()[0].Message)
	assert.Equal(t, "alice", b.Chat()[0].UserName)
	assert.Len(t, a.Chat(), 1)

	require.NoError(t, b.Leave())
	eventually(t, func() bool { return len(a.Members()) == 1 })
	assert.ErrorIs(t, b.Say("gone"), ErrNotJoined)
}

func TestSignalReachesOnlyTarget(t *testing.T) {
	url := startRelay(t)
	x := dial(t, url, "x", "board")
	y := dial(t, url, "y", "board")
	z := dial(t, url, "z", "board")
	eventually(t, func() bool { return len(x.Members()) == 3 })

	require.NoError(t, x.Signal(enums.SOCKET_EVENT_SIGNAL_OFFER, y.ConnectionID(), json.RawMessage(`{"sdp":"offer"}`)))

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-y.Events():
			if e.Event != enums.SOCKET_EVENT_SIGNAL_OFFER {
				continue
			}
			var payload socket.SignalPayload
			require.NoError(t, json.Unmarshal(e.Payload, &payload))
			assert.Equal(t, x.ConnectionID(), payload.Sender)
			assertNoSignal(t, z)
			return
		case <-timeout:
			require.FailNow(t, "signal not delivered")
		}
	}
}

func assertNoSignal(t *testing.T, s *Session) {
	t.Helper()
	for {
		select {
		case e := <-s.Events():
			assert.False(t, enums.IsSignalEvent(e.Event))
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func TestSessionRequiresRoom(t *testing.T) {
	url := startRelay(t)
	s, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Edit("e1", "note", nil)
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.ErrorIs(t, s.MoveCursor(1, 2), ErrNotJoined)
	assert.Error(t, s.Signal("chat-message", "x", nil))
}

func TestMergeChatSkipsDuplicates(t *testing.T) {
	history := []socket.ChatMessageReceivedPayload{{ID: "1"}, {ID: "2"}}
	live := []socket.ChatMessageReceivedPayload{{ID: "2"}, {ID: "3"}, {Message: "own"}}

	merged := mergeChat(history, live)

	require.Len(t, merged, 4)
	assert.Equal(t, "3", merged[2].ID)
	assert.Equal(t, "own", merged[3].Message)
}
