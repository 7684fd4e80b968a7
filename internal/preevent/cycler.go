// Package preevent rotates a highlight through the agenda during the
// window before the first entry starts.
package preevent

import (
	"sync"
	"time"

	appLog "confagenda/internal/log"
	"confagenda/internal/model"
	"confagenda/internal/schedule"
	"confagenda/internal/scheduler"
)

const (
	// DefaultWindow is how many minutes before the first entry cycling runs.
	DefaultWindow = 120
	// DefaultInterval is the rotation period.
	DefaultInterval = 12 * time.Second
	// JobName is the scheduler job that advances the highlight.
	JobName = "preevent.highlight"
)

// InWindow reports whether minutesUntilFirst lies in (0, window].
func InWindow(minutesUntilFirst, window int) bool {
	return minutesUntilFirst > 0 && minutesUntilFirst <= window
}

// CycleState is a snapshot of the cycler.
type CycleState struct {
	Active         bool      `json:"active"`
	Forced         bool      `json:"forced"`
	HighlightIndex int       `json:"highlight_index"`
	StartedAt      time.Time `json:"started_at"`
}

// Options configures a Cycler.
type Options struct {
	Scheduler *scheduler.Scheduler
	Interval  time.Duration
	Window    int

	// OnHighlight is called with every new highlight. Callbacks are
	// serialized and must not call back into the Cycler.
	OnHighlight func(index int, entry model.AgendaEntry)
	// OnClear is called once when cycling stops.
	OnClear func()
}

// Cycler is the Idle/Cycling state machine. It owns one scheduler job
// while cycling.
type Cycler struct {
	mu       sync.Mutex
	sched    *scheduler.Scheduler
	interval time.Duration
	window   int
	onHigh   func(int, model.AgendaEntry)
	onClear  func()

	entries []model.AgendaEntry
	state   CycleState
	// gen changes on every start and stop; a rotation from an older
	// cycle is dropped.
	gen uint64

	// cbMu serializes highlight and clear callbacks.
	cbMu sync.Mutex
}

// New creates an idle Cycler.
func New(opts Options) *Cycler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Cycler{
		sched:    opts.Scheduler,
		interval: opts.Interval,
		window:   opts.Window,
		onHigh:   opts.OnHighlight,
		onClear:  opts.OnClear,
		state:    CycleState{HighlightIndex: model.NoEntry},
	}
}

// Window returns the configured window in minutes.
func (c *Cycler) Window() int { return c.window }

// Evaluate starts or stops cycling for the given agenda and minute of the
// day and returns whether the cycler is active afterwards. A forced
// preview is left running.
func (c *Cycler) Evaluate(entries []model.AgendaEntry, now model.TimeOfDay) bool {
	mins, ok := schedule.MinutesUntilFirst(entries, now)
	in := ok && InWindow(mins, c.window)

	st := c.State()
	switch {
	case in && !st.Active:
		appLog.Info("pre-event window entered", "minutes_until_first", mins)
		c.start(entries, false)
	case !in && st.Active && !st.Forced:
		appLog.Info("pre-event window left")
		c.Stop()
	}
	return c.State().Active
}

// Start enters Cycling for entries. The first highlight fires before
// Start returns. Starting while already cycling restarts from index 0.
func (c *Cycler) Start(entries []model.AgendaEntry) {
	c.start(entries, false)
}

// StartPreview forces cycling regardless of the window.
func (c *Cycler) StartPreview(entries []model.AgendaEntry) {
	c.start(entries, true)
}

// StopPreview ends a forced preview. It does nothing when cycling was
// started by the window.
func (c *Cycler) StopPreview() {
	if c.State().Forced {
		c.Stop()
	}
}

func (c *Cycler) start(entries []model.AgendaEntry, forced bool) {
	if len(entries) == 0 {
		return
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.entries = append([]model.AgendaEntry(nil), entries...)
	c.state = CycleState{
		Active:         true,
		Forced:         forced,
		HighlightIndex: 0,
		StartedAt:      c.sched.Clock().Now(),
	}
	c.mu.Unlock()

	c.sched.Every(JobName, c.interval, c.rotate)
	c.emit(gen, false)
}

func (c *Cycler) rotate(time.Time) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.emit(gen, true)
}

// emit fires the highlight of cycle gen, advancing first when advance is
// set. It does nothing once gen is no longer current.
func (c *Cycler) emit(gen uint64, advance bool) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()

	c.mu.Lock()
	if c.gen != gen || !c.state.Active || len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	if advance {
		c.state.HighlightIndex = (c.state.HighlightIndex + 1) % len(c.entries)
	}
	idx := c.state.HighlightIndex
	e := c.entries[idx]
	c.mu.Unlock()

	appLog.Debug("pre-event highlight", "index", idx, "title", e.Title)
	if c.onHigh != nil {
		c.onHigh(idx, e)
	}
}

// Stop returns to Idle and cancels the rotation job. A highlight already
// in progress finishes before Stop returns, and none fires afterwards.
func (c *Cycler) Stop() {
	c.sched.Cancel(JobName)

	c.mu.Lock()
	was := c.state.Active
	c.gen++
	c.state = CycleState{HighlightIndex: model.NoEntry}
	c.entries = nil
	c.mu.Unlock()

	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if was && c.onClear != nil {
		c.onClear()
	}
}

// State returns the current cycle state.
func (c *Cycler) State() CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
