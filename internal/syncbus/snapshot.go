// Package syncbus carries status snapshots from the primary display to the
// secondary display through a shared key-value store.
package syncbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"confagenda/internal/model"
)

const (
	// DefaultKey is the store key snapshots are written under.
	DefaultKey = "climate2025_sync"
	// DefaultStaleAfter is the age at which a snapshot is ignored.
	DefaultStaleAfter = 3 * time.Second
)

// ErrMalformed is returned by Decode for payloads that do not match the
// snapshot contract.
var ErrMalformed = errors.New("syncbus: malformed snapshot")

// Snapshot is the wire payload. Field names are fixed so independently
// built displays interoperate.
type Snapshot struct {
	CurrentEventIndex int         `json:"currentEventIndex"`
	ConferenceStatus  model.State `json:"conferenceStatus"`
	CurrentTime       string      `json:"currentTime"`
	CurrentDay        string      `json:"currentDay"`
	PreEventMode      bool        `json:"preEventMode"`
	Timestamp         int64       `json:"timestamp"`
	Source            string      `json:"source,omitempty"`
}

// ProducedAt returns Timestamp as a time.
func (s Snapshot) ProducedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Fresh reports whether the snapshot is younger than staleAfter at now.
func (s Snapshot) Fresh(now time.Time, staleAfter time.Duration) bool {
	return now.UnixMilli()-s.Timestamp < staleAfter.Milliseconds()
}

// Encode returns the JSON form of s.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

type wireSnapshot struct {
	CurrentEventIndex *int   `json:"currentEventIndex"`
	ConferenceStatus  string `json:"conferenceStatus"`
	CurrentTime       string `json:"currentTime"`
	CurrentDay        string `json:"currentDay"`
	PreEventMode      bool   `json:"preEventMode"`
	Timestamp         *int64 `json:"timestamp"`
	Source            string `json:"source"`
}

// Decode parses and validates a payload. Every failure wraps ErrMalformed.
func Decode(b []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.CurrentEventIndex == nil {
		return Snapshot{}, fmt.Errorf("%w: missing currentEventIndex", ErrMalformed)
	}
	if *w.CurrentEventIndex < model.NoEntry {
		return Snapshot{}, fmt.Errorf("%w: currentEventIndex %d", ErrMalformed, *w.CurrentEventIndex)
	}
	st, err := model.ParseState(w.ConferenceStatus)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Timestamp == nil || *w.Timestamp <= 0 {
		return Snapshot{}, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	if w.CurrentDay == "" {
		return Snapshot{}, fmt.Errorf("%w: missing currentDay", ErrMalformed)
	}
	return Snapshot{
		CurrentEventIndex: *w.CurrentEventIndex,
		ConferenceStatus:  st,
		CurrentTime:       w.CurrentTime,
		CurrentDay:        w.CurrentDay,
		PreEventMode:      w.PreEventMode,
		Timestamp:         *w.Timestamp,
		Source:            w.Source,
	}, nil
}
