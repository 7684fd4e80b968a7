package syncbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"confagenda/internal/clock"
	appLog "confagenda/internal/log"
)

// Status describes the subscriber's view of the channel.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSynced   Status = "synced"
	StatusStale    Status = "stale"
	StatusError    Status = "error"
	StatusRejected Status = "rejected"
)

// SyncState is reported by Subscriber.Status.
type SyncState struct {
	Status     Status    `json:"status"`
	LastSync   time.Time `json:"last_sync,omitempty"`
	LastSource string    `json:"last_source,omitempty"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Publisher writes snapshots under one key.
type Publisher struct {
	store  Store
	key    string
	clock  clock.Clock
	source string

	mu   sync.Mutex
	last *Snapshot
}

// NewPublisher creates a Publisher with a fresh instance id.
func NewPublisher(store Store, key string, c clock.Clock) *Publisher {
	if key == "" {
		key = DefaultKey
	}
	if c == nil {
		c = clock.Real()
	}
	return &Publisher{store: store, key: key, clock: c, source: uuid.NewString()}
}

// Source returns the id stamped on every published snapshot.
func (p *Publisher) Source() string { return p.source }

// Publish stamps s with the current time and the publisher id and writes
// it. It returns the snapshot as written.
func (p *Publisher) Publish(ctx context.Context, s Snapshot) (Snapshot, error) {
	s.Timestamp = p.clock.Now().UnixMilli()
	s.Source = p.source

	b, err := s.Encode()
	if err != nil {
		return s, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.store.Put(ctx, p.key, b); err != nil {
		return s, fmt.Errorf("publish snapshot: %w", err)
	}

	p.mu.Lock()
	p.last = &s
	p.mu.Unlock()
	return s, nil
}

// Last returns the most recently published snapshot.
func (p *Publisher) Last() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Snapshot{}, false
	}
	return *p.last, true
}

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	Store      Store
	Key        string
	Clock      clock.Clock
	StaleAfter time.Duration
	// Apply receives every fresh snapshot. An error rejects the snapshot.
	Apply func(Snapshot) error
}

// Subscriber consumes snapshots from watch notifications and polling.
// Malformed and stale payloads never reach Apply.
type Subscriber struct {
	store      Store
	key        string
	clock      clock.Clock
	staleAfter time.Duration
	apply      func(Snapshot) error

	mu    sync.Mutex
	state SyncState
}

// NewSubscriber creates an idle Subscriber.
func NewSubscriber(opts SubscriberOptions) *Subscriber {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &Subscriber{
		store:      opts.Store,
		key:        opts.Key,
		clock:      opts.Clock,
		staleAfter: opts.StaleAfter,
		apply:      opts.Apply,
		state:      SyncState{Status: StatusIdle},
	}
}

// Poll reads the key once and handles whatever is there.
func (s *Subscriber) Poll(ctx context.Context) Status {
	b, err := s.store.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return s.Status().Status
	}
	if err != nil {
		appLog.Debug("sync poll failed", "key", s.key, "err", err)
		return s.setStatus(StatusError, err)
	}
	return s.Handle(b)
}

// Listen handles watch notifications until ctx is done or the store closes.
func (s *Subscriber) Listen(ctx context.Context) {
	ch, cancel := s.store.Watch(s.key)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			s.Handle(b)
		}
	}
}

// Handle decodes, checks and applies one payload.
func (s *Subscriber) Handle(b []byte) Status {
	snap, err := Decode(b)
	if err != nil {
		appLog.Debug("sync payload ignored", "key", s.key, "err", err)
		return s.setStatus(StatusError, err)
	}

	now := s.clock.Now()
	if !snap.Fresh(now, s.staleAfter) {
		appLog.Debug("stale sync snapshot ignored", "age", now.Sub(snap.ProducedAt()).String())
		return s.setStatus(StatusStale, nil)
	}

	if s.apply != nil {
		if err := s.apply(snap); err != nil {
			appLog.Warn("sync snapshot rejected", "day", snap.CurrentDay, "err", err)
			return s.setStatus(StatusRejected, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SyncState{
		Status:     StatusSynced,
		LastSync:   now,
		LastSource: snap.Source,
		Snapshot:   &snap,
	}
	return StatusSynced
}

func (s *Subscriber) setStatus(st Status, err error) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = st
	s.state.Error = ""
	if err != nil {
		s.state.Error = err.Error()
	}
	return st
}

// Status returns a copy of the subscriber state.
func (s *Subscriber) Status() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Snapshot != nil {
		snap := *st.Snapshot
		st.Snapshot = &snap
	}
	return st
}
