// Package render holds the display.Renderer implementations: a logger, a
// terminal view, a fan-out and the latest-frame holder behind the HTTP view.
package render

import (
	"errors"
	"sync"

	"confagenda/internal/display"
	"confagenda/internal/model"
)

// Multi fans every call out to several renderers.
type Multi []display.Renderer

func (m Multi) Render(f display.Frame) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Highlight(i int, e model.AgendaEntry) {
	for _, r := range m {
		r.Highlight(i, e)
	}
}

func (m Multi) ClearHighlight() {
	for _, r := range m {
		r.ClearHighlight()
	}
}

func (m Multi) ShowError(msg string) {
	for _, r := range m {
		r.ShowError(msg)
	}
}

func (m Multi) ShowFatal(msg string) {
	for _, r := range m {
		r.ShowFatal(msg)
	}
}

// Clock forwards to the renderers that show a clock.
func (m Multi) Clock(text string) {
	for _, r := range m {
		if cr, ok := r.(display.ClockRenderer); ok {
			cr.Clock(text)
		}
	}
}

// View is what Latest currently shows.
type View struct {
	Frame display.Frame
	// Ready is false until the first frame was rendered.
	Ready     bool
	Clock     string
	Highlight int
	Error     string
	Fatal     string
}

// Latest keeps the most recent frame so other goroutines (the HTTP view,
// screenshot capture) can read it.
type Latest struct {
	mu   sync.RWMutex
	view View
}

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{view: View{Highlight: model.NoEntry}}
}

func (l *Latest) Render(f display.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view.Frame = f
	l.view.Ready = true
	l.view.Clock = f.Clock
	l.view.Error = ""
	if !f.PreEvent {
		l.view.Highlight = model.NoEntry
	}
	return nil
}

func (l *Latest) Highlight(i int, _ model.AgendaEntry) {
	l.mu.Lock()
	l.view.Highlight = i
	l.mu.Unlock()
}

func (l *Latest) ClearHighlight() {
	l.mu.Lock()
	l.view.Highlight = model.NoEntry
	l.mu.Unlock()
}

func (l *Latest) ShowError(msg string) {
	l.mu.Lock()
	l.view.Error = msg
	l.mu.Unlock()
}

func (l *Latest) ShowFatal(msg string) {
	l.mu.Lock()
	l.view.Fatal = msg
	l.mu.Unlock()
}

func (l *Latest) Clock(text string) {
	l.mu.Lock()
	l.view.Clock = text
	l.mu.Unlock()
}

// View returns a copy of the current view.
func (l *Latest) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.view
	v.Frame.Entries = append([]model.AgendaEntry(nil), v.Frame.Entries...)
	return v
}
