package document

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(s string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%q", s))
}

func TestApplyLocalIncrementsVersion(t *testing.T) {
	s := NewStore()

	first := s.ApplyLocal("e1", KindPath, payload("p1"))
	second := s.ApplyLocal("e1", KindPath, payload("p2"))

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)

	stored, ok := s.Get("e1")
	require.True(t, ok)
	assert.JSONEq(t, `"p2"`, string(stored.Payload))
}

func TestApplyRemoteBasicSync(t *testing.T) {
	s := NewStore()

	ok := s.ApplyRemote(Element{ID: "e1", Version: 1, Payload: payload("P1")})

	assert.True(t, ok)
	snap := s.Snapshot()
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, "e1", snap.Elements[0].ID)
	assert.Equal(t, uint64(1), snap.Elements[0].Version)
	assert.JSONEq(t, `"P1"`, string(snap.Elements[0].Payload))
}

func TestApplyRemoteRejectsStale(t *testing.T) {
	s := NewStore()
	require.True(t, s.ApplyRemote(Element{ID: "e1", Version: 2, Payload: payload("P2")}))

	assert.False(t, s.ApplyRemote(Element{ID: "e1", Version: 1, Payload: payload("P1")}))
	assert.False(t, s.ApplyRemote(Element{ID: "e1", Version: 2, Payload: payload("P2")}))

	stored, _ := s.Get("e1")
	assert.Equal(t, uint64(2), stored.Version)
	assert.JSONEq(t, `"P2"`, string(stored.Payload))
}

func TestApplyRemoteRejectsEmptyID(t *testing.T) {
	s := NewStore()
	assert.False(t, s.ApplyRemote(Element{Version: 1}))
	assert.Zero(t, s.Len())
}

func TestRemoveWritesTombstone(t *testing.T) {
	s := NewStore()
	s.ApplyLocal("n1", KindNote, payload("hello"))

	tomb, ok := s.Remove("n1")
	require.True(t, ok)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, uint64(2), tomb.Version)
	assert.Empty(t, tomb.Payload)
	assert.Equal(t, KindNote, tomb.Kind)

	_, again := s.Remove("n1")
	assert.False(t, again)
	_, missing := s.Remove("nope")
	assert.False(t, missing)

	assert.Len(t, s.Snapshot().Elements, 1)
	assert.Empty(t, s.Live())
}

func TestRemoteTombstoneBeatsOlderWrite(t *testing.T) {
	a := NewStore()
	a.ApplyLocal("s1", KindShape, payload("circle"))
	tomb, _ := a.Remove("s1")

	b := NewStore()
	require.True(t, b.ApplyRemote(tomb))
	assert.False(t, b.ApplyRemote(Element{ID: "s1", Kind: KindShape, Version: 1, Payload: payload("circle")}))
	assert.Empty(t, b.Live())
}

func TestClearAdvancesGeneration(t *testing.T) {
	s := NewStore()
	s.ApplyLocal("e1", KindPath, payload("a"))
	before, _ := s.StoredVersion("e1")

	gen := s.Clear()

	assert.Equal(t, uint64(1), gen)
	assert.Zero(t, s.Len())
	after, ok := s.StoredVersion("e1")
	assert.False(t, ok)
	assert.True(t, after.After(before))

	// Records from the cleared generation cannot come back.
	assert.False(t, s.ApplyRemote(Element{ID: "e1", Generation: 0, Version: 9, Payload: payload("old")}))

	next := s.ApplyLocal("e1", KindPath, payload("b"))
	assert.Equal(t, uint64(1), next.Generation)
	assert.Equal(t, uint64(1), next.Version)
}

func TestApplyClearIsIdempotent(t *testing.T) {
	s := NewStore()
	s.ApplyRemote(Element{ID: "e1", Version: 1})

	assert.True(t, s.ApplyClear(1))
	assert.False(t, s.ApplyClear(1))
	assert.False(t, s.ApplyClear(0))
	assert.Zero(t, s.Len())
}

func TestNewerGenerationDropsOlderRecords(t *testing.T) {
	s := NewStore()
	s.ApplyRemote(Element{ID: "e1", Version: 5})
	s.ApplyRemote(Element{ID: "e2", Version: 1})

	require.True(t, s.ApplyRemote(Element{ID: "e3", Generation: 2, Version: 1}))

	assert.Equal(t, uint64(2), s.Generation())
	snap := s.Snapshot()
	require.Len(t, snap.Elements, 1)
	assert.Equal(t, "e3", snap.Elements[0].ID)
}

func TestMergeLateJoiner(t *testing.T) {
	source := NewStore()
	source.ApplyRemote(Element{ID: "e1", Version: 3, Payload: payload("P3")})
	source.ApplyRemote(Element{ID: "e2", Version: 1, Payload: payload("P4")})

	joiner := NewStore()
	accepted := joiner.Merge(source.Snapshot())

	assert.Equal(t, 2, accepted)
	assert.Equal(t, source.Snapshot(), joiner.Snapshot())
	assert.Zero(t, joiner.Merge(source.Snapshot()))
}

func TestStoredVersionIsMonotonic(t *testing.T) {
	s := NewStore()
	rng := rand.New(rand.NewSource(7))
	last := Key{}
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			s.ApplyLocal("x", KindText, payload("local"))
		case 1:
			s.ApplyRemote(Element{ID: "x", Generation: uint64(rng.Intn(3)), Version: uint64(rng.Intn(20))})
		case 2:
			s.Remove("x")
		case 3:
			if rng.Intn(10) == 0 {
				s.Clear()
			}
		}
		key, _ := s.StoredVersion("x")
		require.False(t, last.After(key), "stored key moved from %+v to %+v", last, key)
		last = key
	}
}

func TestConcurrentWritesOfSameVersionConverge(t *testing.T) {
	a, b := NewStore(), NewStore()
	a.SetWriter("conn-a")
	b.SetWriter("conn-b")

	fromA := a.ApplyLocal("note-1", KindNote, payload("from A"))
	fromB := b.ApplyLocal("note-1", KindNote, payload("from B"))
	require.Equal(t, fromA.Version, fromB.Version)
	assert.Equal(t, "conn-a", fromA.Writer)

	assert.True(t, a.ApplyRemote(fromB))
	assert.False(t, b.ApplyRemote(fromA))
	assert.Equal(t, a.Snapshot(), b.Snapshot())

	got, _ := a.Get("note-1")
	assert.JSONEq(t, `"from B"`, string(got.Payload))
}

func TestEqualKeysAreOrderedByContent(t *testing.T) {
	x := Element{ID: "e", Version: 1, Payload: payload("x")}
	y := Element{ID: "e", Version: 1, Payload: payload("y")}
	tomb := Element{ID: "e", Version: 1, Deleted: true}

	assert.True(t, y.IsNewerThan(x))
	assert.False(t, x.IsNewerThan(y))
	assert.True(t, tomb.IsNewerThan(y))
	assert.False(t, x.IsNewerThan(x))

	s1, s2 := NewStore(), NewStore()
	s1.ApplyRemote(x)
	s1.ApplyRemote(y)
	s2.ApplyRemote(y)
	s2.ApplyRemote(x)
	assert.Equal(t, s1.Snapshot(), s2.Snapshot())
}

func TestConvergenceUnderReorderAndDuplication(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var ops []func(*Store)
		for i := 0; i < 40; i++ {
			id := fmt.Sprintf("e%d", rng.Intn(6))
			e := Element{
				ID:         id,
				Generation: uint64(rng.Intn(2)),
				Version:    uint64(rng.Intn(8) + 1),
			}
			e.Writer = []string{"", "writer-a", "writer-b"}[rng.Intn(3)]
			e.Deleted = rng.Intn(5) == 0
			// Few payloads, so records with equal keys and different content collide.
			e.Payload = payload(fmt.Sprintf("%s#%d", e.ID, rng.Intn(3)))
			if e.Deleted {
				e.Payload = nil
			}
			ops = append(ops, func(s *Store) { s.ApplyRemote(e) })
			if rng.Intn(15) == 0 {
				gen := uint64(rng.Intn(3))
				ops = append(ops, func(s *Store) { s.ApplyClear(gen) })
			}
		}

		a, b := NewStore(), NewStore()
		for _, op := range ops {
			op(a)
		}
		shuffled := append([]func(*Store){}, ops...)
		shuffled = append(shuffled, ops[:len(ops)/2]...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for _, op := range shuffled {
			op(b)
		}

		require.Equal(t, a.Snapshot(), b.Snapshot(), "round %d", round)
	}
}
