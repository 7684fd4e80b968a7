package syncbus

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store.Get when the key has never been written.
var ErrNotFound = errors.New("syncbus: key not found")

// Store is a shared key-value area. Writes replace the whole value.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Watch delivers values written to key through this Store. Only the
	// latest undelivered value is kept. The returned func unsubscribes and
	// closes the channel.
	Watch(key string) (<-chan []byte, func())
	Close() error
}

// watchers fans writes out to Watch subscribers.
type watchers struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func (w *watchers) add(key string) (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	w.mu.Lock()
	if w.subs == nil {
		w.subs = make(map[string]map[chan []byte]struct{})
	}
	if w.subs[key] == nil {
		w.subs[key] = make(map[chan []byte]struct{})
	}
	w.subs[key][ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.subs[key][ch]; ok {
				delete(w.subs[key], ch)
				close(ch)
			}
		})
	}
}

func (w *watchers) notify(key string, value []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subs[key] {
		v := append([]byte(nil), value...)
		select {
		case ch <- v:
		default:
			// Replace the pending value with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, set := range w.subs {
		for ch := range set {
			close(ch)
		}
		delete(w.subs, key)
	}
}
