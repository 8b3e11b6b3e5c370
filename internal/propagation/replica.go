package propagation

import (
	"encoding/json"
	"sort"
	"sync"

	"syncBoard/internal/document"
)

// Origin tags every mutation that reaches a replica.
type Origin int

const (
	// OriginLocal changes were made by this replica and must be broadcast.
	OriginLocal Origin = iota
	// OriginRemote changes came from the relay and are never re-emitted.
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Replica couples a document store with the outbound bookkeeping of one
// participant: the ids changed since the last flush and the last key this
// replica broadcast for each id.
type Replica struct {
	mu            sync.Mutex
	store         *document.Store
	dirty         map[string]struct{}
	lastBroadcast map[string]document.Key
	pendingClear  bool
}

func NewReplica() *Replica {
	return NewReplicaWithStore(document.NewStore())
}

func NewReplicaWithStore(store *document.Store) *Replica {
	return &Replica{
		store:         store,
		dirty:         make(map[string]struct{}),
		lastBroadcast: make(map[string]document.Key),
	}
}

func (r *Replica) Store() *document.Store {
	return r.store
}

func (r *Replica) Edit(id, kind string, payload json.RawMessage) document.Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.store.ApplyLocal(id, kind, payload)
	r.dirty[id] = struct{}{}
	return e
}

func (r *Replica) Remove(id string) (document.Element, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.store.Remove(id)
	if ok {
		r.dirty[id] = struct{}{}
	}
	return e, ok
}

func (r *Replica) Clear() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen := r.store.Clear()
	r.pendingClear = true
	r.dirty = make(map[string]struct{})
	return gen
}

// Apply merges an update and returns the number of accepted elements.
// Remote updates raise the broadcast watermark of every id they touch, so a
// remotely learned record is never emitted again by this replica.
func (r *Replica) Apply(u Update, origin Origin) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.ApplyClear(u.Generation) && origin == OriginLocal {
		r.pendingClear = true
	}
	accepted := 0
	for _, e := range u.Elements {
		if !r.store.ApplyRemote(e) {
			continue
		}
		accepted++
		switch origin {
		case OriginRemote:
			r.raiseWatermark(e.ID, e.Key())
			delete(r.dirty, e.ID)
		case OriginLocal:
			r.dirty[e.ID] = struct{}{}
		}
	}
	return accepted
}

func (r *Replica) raiseWatermark(id string, key document.Key) {
	if current, ok := r.lastBroadcast[id]; !ok || key.After(current) {
		r.lastBroadcast[id] = key
	}
}

// Pending builds the outbound batch: every changed id whose stored key is
// strictly greater than the last key this replica broadcast for it.
func (r *Replica) Pending() (Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := Update{Generation: r.store.Generation(), Clear: r.pendingClear}
	ids := make([]string, 0, len(r.dirty))
	for id := range r.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e, ok := r.store.Get(id)
		if !ok {
			delete(r.dirty, id)
			continue
		}
		if last, sent := r.lastBroadcast[id]; sent && !e.Key().After(last) {
			delete(r.dirty, id)
			continue
		}
		u.Elements = append(u.Elements, e)
	}
	return u, !u.IsEmpty()
}

// Ack records a batch returned by Pending as sent.
func (r *Replica) Ack(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Clear && u.Generation >= r.store.Generation() {
		r.pendingClear = false
	}
	for _, e := range u.Elements {
		r.raiseWatermark(e.ID, e.Key())
		if stored, ok := r.store.StoredVersion(e.ID); !ok || !stored.After(e.Key()) {
			delete(r.dirty, e.ID)
		}
	}
}

// Flush hands the pending batch to send and acknowledges it on success.
func (r *Replica) Flush(send func(Update) error) error {
	u, ok := r.Pending()
	if !ok {
		return nil
	}
	if err := send(u); err != nil {
		return err
	}
	r.Ack(u)
	return nil
}

// FullState is the reply to a state request.
func (r *Replica) FullState() (Update, bool) {
	snapshot := r.store.Snapshot()
	if snapshot.IsEmpty() {
		return Update{}, false
	}
	return FromSnapshot(snapshot), true
}

func (r *Replica) LastBroadcast(id string) (document.Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.lastBroadcast[id]
	return key, ok
}
