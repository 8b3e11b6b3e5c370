package document

import (
	"bytes"
	"encoding/json"
)

// Element kinds used by the board client. The store never interprets them.
const (
	KindPath  = "path"
	KindNote  = "note"
	KindText  = "text"
	KindShape = "shape"
)

// Key orders two records of the same element. Generation is compared first,
// then version, then the id of the replica that wrote the record.
type Key struct {
	Generation uint64 `json:"generation"`
	Version    uint64 `json:"version"`
	Writer     string `json:"writer,omitempty"`
}

func (k Key) After(other Key) bool {
	if k.Generation != other.Generation {
		return k.Generation > other.Generation
	}
	if k.Version != other.Version {
		return k.Version > other.Version
	}
	return k.Writer > other.Writer
}

// Element is one versioned record of the canvas. Payload is opaque.
type Element struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind,omitempty"`
	Version    uint64          `json:"version"`
	Generation uint64          `json:"generation"`
	Writer     string          `json:"writer,omitempty"`
	Deleted    bool            `json:"deleted,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (e Element) Key() Key {
	return Key{Generation: e.Generation, Version: e.Version, Writer: e.Writer}
}

// IsNewerThan is a strict total order over distinct records. Records with
// equal keys are ordered by content: a tombstone wins, then the greater
// payload, then the greater kind.
func (e Element) IsNewerThan(other Element) bool {
	if ek, ok := e.Key(), other.Key(); ek != ok {
		return ek.After(ok)
	}
	if e.Deleted != other.Deleted {
		return e.Deleted
	}
	if c := bytes.Compare(e.Payload, other.Payload); c != 0 {
		return c > 0
	}
	return e.Kind > other.Kind
}

func (e Element) Clone() Element {
	clone := e
	if len(e.Payload) > 0 {
		clone.Payload = bytes.Clone(e.Payload)
	} else {
		clone.Payload = nil
	}
	return clone
}

// Snapshot is the full content of a replica at one point in time.
// Elements are sorted by id and include tombstones.
type Snapshot struct {
	Generation uint64    `json:"generation"`
	Elements   []Element `json:"elements"`
}

func (s Snapshot) IsEmpty() bool {
	return s.Generation == 0 && len(s.Elements) == 0
}
