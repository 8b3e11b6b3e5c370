package propagation

import (
	"encoding/json"
	"errors"

	"syncBoard/internal/document"
)

var ErrEmptyUpdate = errors.New("empty update")

// Update is the batch carried by a doc-update or full-state message.
// Generation is the sender's generation at the time the batch was built.
// Clear is set when the batch starts a new generation.
type Update struct {
	Generation uint64             `json:"generation"`
	Clear      bool               `json:"clear,omitempty"`
	Elements   []document.Element `json:"elements,omitempty"`
}

func (u Update) IsEmpty() bool {
	return !u.Clear && len(u.Elements) == 0
}

func FromSnapshot(snapshot document.Snapshot) Update {
	return Update{
		Generation: snapshot.Generation,
		Clear:      snapshot.Generation > 0,
		Elements:   snapshot.Elements,
	}
}

func (u Update) Snapshot() document.Snapshot {
	return document.Snapshot{Generation: u.Generation, Elements: u.Elements}
}

func EncodeUpdate(u Update) (json.RawMessage, error) {
	return json.Marshal(u)
}

func DecodeUpdate(raw json.RawMessage) (Update, error) {
	var u Update
	if len(raw) == 0 {
		return u, ErrEmptyUpdate
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, err
	}
	return u, nil
}
