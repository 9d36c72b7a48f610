package firehose

import (
	"encoding/json"
	"time"
)

// Jetstream wire kinds.
const (
	KindCommit = "commit"

	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event is one decoded jetstream frame.
type Event struct {
	DID    string  `json:"did"`
	TimeUS int64   `json:"time_us"`
	Kind   string  `json:"kind"`
	Commit *Commit `json:"commit,omitempty"`
}

// Commit carries a single repo operation. Record is left raw; the classifier
// owns its interpretation.
type Commit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid,omitempty"`
}

// SourceEventID is the globally unique id for this commit within its
// actor+collection, used as the ledger key.
func (e *Event) SourceEventID() string {
	if e.Commit == nil {
		return ""
	}
	return e.DID + "/" + e.Commit.Collection + "/" + e.Commit.RKey
}

// Time converts the frame's microsecond timestamp.
func (e *Event) Time() time.Time {
	return time.UnixMicro(e.TimeUS)
}

// DecodeEvent parses one jetstream frame.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
