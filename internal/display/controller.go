package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"confagenda/internal/agenda"
	"confagenda/internal/clock"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
	"confagenda/internal/preevent"
	"confagenda/internal/schedule"
	"confagenda/internal/scheduler"
	"confagenda/internal/syncbus"
)

// Scheduler job names.
const (
	JobTick    = "display.tick"
	JobDay     = "display.day"
	JobHealth  = "display.health"
	JobManual  = "display.manual-timeout"
	JobPreview = "display.preview-timeout"
	JobPublish = "sync.publish"
	JobPoll    = "sync.poll"
)

var (
	// ErrNotManual is returned by navigation calls in real-time mode.
	ErrNotManual = errors.New("display: navigation needs manual mode")
	// ErrPrimaryOnly is returned by operations the secondary display
	// cannot perform because it mirrors the primary.
	ErrPrimaryOnly = errors.New("display: only the primary display supports this")
	// ErrIndexRange is returned by Jump for an index outside the agenda.
	ErrIndexRange = errors.New("display: entry index out of range")
)

const (
	updateFailedMsg  = "Update failed. System will retry automatically."
	displayFailedMsg = "Display update failed. Please refresh the page."
)

// Timing holds the cadences of a controller. Zero values take defaults.
type Timing struct {
	Tick           time.Duration
	DayCheck       string
	Highlight      time.Duration
	PreEventWindow int
	Health         time.Duration
	ManualTimeout  time.Duration
	PreviewFor     time.Duration
	Publish        time.Duration
	Poll           time.Duration
	StaleAfter     time.Duration
}

func (t *Timing) normalize() {
	if t.Tick <= 0 {
		t.Tick = time.Second
	}
	if t.DayCheck == "" {
		t.DayCheck = "* * * * *"
	}
	if t.Highlight <= 0 {
		t.Highlight = preevent.DefaultInterval
	}
	if t.PreEventWindow <= 0 {
		t.PreEventWindow = preevent.DefaultWindow
	}
	if t.Health <= 0 {
		t.Health = 30 * time.Second
	}
	if t.ManualTimeout <= 0 {
		t.ManualTimeout = 30 * time.Second
	}
	if t.PreviewFor <= 0 {
		t.PreviewFor = 30 * time.Second
	}
	if t.Publish <= 0 {
		t.Publish = time.Second
	}
	if t.Poll <= 0 {
		t.Poll = 2 * time.Second
	}
	if t.StaleAfter <= 0 {
		t.StaleAfter = syncbus.DefaultStaleAfter
	}
}

// Options configures a Controller.
type Options struct {
	Role     Role
	Agenda   *agenda.Store
	Renderer Renderer
	Clock    clock.Clock
	Location *time.Location
	Timing   Timing

	// SyncStore carries snapshots between the displays. The primary
	// publishes to it, the secondary reads from it.
	SyncStore syncbus.Store
	SyncKey   string
}

// Controller is one running display. All methods are safe for concurrent
// use.
type Controller struct {
	role     Role
	store    *agenda.Store
	renderer Renderer
	clock    clock.Clock
	loc      *time.Location
	timing   Timing
	sched    *scheduler.Scheduler

	cycler *preevent.Cycler    // primary only
	pub    *syncbus.Publisher  // primary only
	sub    *syncbus.Subscriber // secondary only

	mu           sync.Mutex
	running      bool
	visible      bool
	controls     bool
	day          string
	pinned       bool
	status       model.ScheduleStatus
	mode         Mode
	manualIndex  int
	remotePre    bool
	lastKey      *frameKey
	lastClock    string
	stopListener context.CancelFunc
	restarts     int
}

// New builds a stopped Controller.
func New(opts Options) (*Controller, error) {
	if opts.Agenda == nil {
		return nil, errors.New("display: agenda is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("display: renderer is required")
	}
	switch opts.Role {
	case RolePrimary, RoleSecondary:
	case "":
		opts.Role = RolePrimary
	default:
		return nil, fmt.Errorf("display: unknown role %q", opts.Role)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SyncStore == nil {
		opts.SyncStore = syncbus.NewMemoryStore()
	}
	opts.Timing.normalize()

	c := &Controller{
		role:        opts.Role,
		store:       opts.Agenda,
		renderer:    opts.Renderer,
		clock:       opts.Clock,
		loc:         opts.Location,
		timing:      opts.Timing,
		sched:       scheduler.New(opts.Clock),
		visible:     true,
		mode:        ModeRealTime,
		manualIndex: model.NoEntry,
		status:      model.Idle(),
	}

	if c.role == RolePrimary {
		c.pub = syncbus.NewPublisher(opts.SyncStore, opts.SyncKey, opts.Clock)
		// Highlights go straight to the renderer: the cycler may call back
		// while the controller lock is held.
		c.cycler = preevent.New(preevent.Options{
			Scheduler:   c.sched,
			Interval:    c.timing.Highlight,
			Window:      c.timing.PreEventWindow,
			OnHighlight: c.renderer.Highlight,
			OnClear:     c.renderer.ClearHighlight,
		})
	} else {
		c.sub = syncbus.NewSubscriber(syncbus.SubscriberOptions{
			Store:      opts.SyncStore,
			Key:        opts.SyncKey,
			Clock:      opts.Clock,
			StaleAfter: c.timing.StaleAfter,
			Apply:      c.applySnapshot,
		})
	}
	return c, nil
}

// Role returns the display role.
func (c *Controller) Role() Role { return c.role }

// Agenda returns the agenda store.
func (c *Controller) Agenda() *agenda.Store { return c.store }

// Location returns the display timezone.
func (c *Controller) Location() *time.Location { return c.loc }

// Start performs day detection and an immediate update, then schedules
// the display jobs. On failure the renderer shows a fatal error.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.stopLocked()
	}
	if err := c.initLocked(); err != nil {
		c.stopLocked()
		appLog.Error("display start failed", err, "role", c.role)
		c.renderer.ShowFatal(fmt.Sprintf("The agenda display could not start: %v", err))
		return err
	}
	appLog.Info("display started", "role", c.role, "day", c.day)
	return nil
}

// Stop cancels every job.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	appLog.Info("display stopped", "role", c.role)
}

// Restart cancels every job, returns to real-time mode and starts again.
func (c *Controller) Restart() error {
	c.mu.Lock()
	c.stopLocked()
	c.mode = ModeRealTime
	c.manualIndex = model.NoEntry
	c.pinned = false
	c.restarts++
	c.mu.Unlock()

	appLog.Info("display restarting", "role", c.role)
	return c.Start()
}

func (c *Controller) initLocked() error {
	days := c.store.Days()
	if len(days) == 0 {
		return errors.New("agenda has no days")
	}

	now := c.clock.Now().In(c.loc)
	if !c.pinned || !c.store.HasDay(c.day) {
		c.pinned = false
		c.day = schedule.ResolveActiveDay(model.DateOf(now), c.store.Dates())
	}
	c.status = model.Idle()
	if c.role == RoleSecondary {
		c.status.Message = "Waiting for the primary display"
	}
	c.lastKey = nil
	c.lastClock = ""

	if c.role == RolePrimary {
		if err := c.sched.Cron(JobDay, c.timing.DayCheck, c.dayJob); err != nil {
			return err
		}
		c.sched.Every(JobPublish, c.timing.Publish, c.publishJob)
	} else {
		c.sched.Every(JobPoll, c.timing.Poll, c.pollJob)
		ctx, cancel := context.WithCancel(context.Background())
		c.stopListener = cancel
		go c.sub.Listen(ctx)
	}
	c.sched.Every(JobHealth, c.timing.Health, c.healthJob)
	if c.visible {
		c.sched.Every(JobTick, c.timing.Tick, c.tickJob)
	}
	c.running = true

	c.updateLocked(now)
	if c.role == RolePrimary {
		c.evaluatePreEventLocked(now)
	}
	return nil
}

func (c *Controller) stopLocked() {
	c.sched.CancelAll()
	if c.cycler != nil {
		c.cycler.Stop()
	}
	if c.stopListener != nil {
		c.stopListener()
		c.stopListener = nil
	}
	c.running = false
}

// guard runs one unit of display work. A failure or panic is logged and
// shown as a transient error; it never stops the schedule.
func (c *Controller) guard(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("display job panicked", fmt.Errorf("%v", r), "job", what, "role", c.role)
			c.renderer.ShowError(updateFailedMsg)
		}
	}()
	if err := fn(); err != nil {
		appLog.Error("display job failed", err, "job", what, "role", c.role)
		c.renderer.ShowError(updateFailedMsg)
	}
}

func (c *Controller) tickJob(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guard(JobTick, func() error {
		c.updateLocked(now.In(c.loc))
		return nil
	})
}

// updateLocked refreshes the clock and, on the primary, re-resolves the
// schedule. The frame is redrawn only when something visible changed.
func (c *Controller) updateLocked(now time.Time) {
	text := model.ClockText(now)
	if cr, ok := c.renderer.(ClockRenderer); ok && text != c.lastClock {
		cr.Clock(text)
	}
	c.lastClock = text

	if c.role == RolePrimary && c.mode == ModeRealTime {
		day, err := c.store.Day(c.day)
		if err == nil {
			prev := c.status
			c.status = schedule.ResolveDay(c.day, day.Entries, model.TimeOfDayOf(now), model.DateOf(now), day.Date)
			if c.status != prev {
				appLog.Info("schedule status changed", "day", c.day, "state", c.status.State, "index", c.status.ActiveIndex)
				c.evaluatePreEventLocked(now)
			}
		}
	}
	c.renderLocked(now, false)
}

// renderLocked draws the current frame if it differs from the last one
// drawn, or unconditionally when force is set.
func (c *Controller) renderLocked(now time.Time, force bool) {
	f := c.frameLocked(now)
	k := f.key()
	if !force && c.lastKey != nil && *c.lastKey == k {
		return
	}
	if err := c.renderer.Render(f); err != nil {
		appLog.Error("render failed", err, "role", c.role, "day", f.Day)
		c.renderer.ShowError(displayFailedMsg)
		c.lastKey = nil
		return
	}
	c.lastKey = &k
}

// effectiveLocked returns the status shown, accounting for manual mode.
func (c *Controller) effectiveLocked() model.ScheduleStatus {
	if c.mode == ModeManual {
		if c.manualIndex >= 0 {
			return model.ScheduleStatus{ActiveIndex: c.manualIndex, State: model.StateActive, Message: "Manual control"}
		}
		return model.ScheduleStatus{ActiveIndex: model.NoEntry, State: model.StateManual, Message: "Manual control"}
	}
	return c.status
}

func (c *Controller) frameLocked(now time.Time) Frame {
	day, _ := c.store.Day(c.day)
	st := c.effectiveLocked()
	tod := model.TimeOfDayOf(now)

	f := Frame{
		Role:             c.role,
		Conference:       c.store.Name(),
		Day:              c.day,
		Date:             day.Date,
		Entries:          day.Entries,
		ActiveIndex:      st.ActiveIndex,
		State:            st.State,
		Message:          st.Message,
		MinutesUntilNext: model.NoEntry,
		Clock:            model.ClockText(now),
		Mode:             c.mode,
		ControlsVisible:  c.controls,
		HighlightIndex:   model.NoEntry,
		At:               now,
	}
	if st.ActiveIndex >= 0 && st.ActiveIndex < len(day.Entries) {
		e := day.Entries[st.ActiveIndex]
		f.Current = &e
	}
	if model.DateOf(now).Equal(day.Date) {
		f.ListActive = schedule.ActiveIndices(day.Entries, tod)
		if i, ok := schedule.NextEntry(day.Entries, tod); ok {
			e := day.Entries[i]
			f.Next = &e
			f.MinutesUntilNext = schedule.MinutesUntilNext(day.Entries, tod)
		}
	}
	if c.cycler != nil {
		cs := c.cycler.State()
		f.PreEvent = cs.Active
		f.HighlightIndex = cs.HighlightIndex
	} else {
		f.PreEvent = c.remotePre
	}
	return f
}

func (c *Controller) dayJob(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guard(JobDay, func() error {
		now = now.In(c.loc)
		if !c.pinned {
			detected := schedule.ResolveActiveDay(model.DateOf(now), c.store.Dates())
			if detected != "" && detected != c.day {
				appLog.Info("day change detected", "from", c.day, "to", detected)
				c.switchDayLocked(detected, now)
			}
		}
		c.evaluatePreEventLocked(now)
		return nil
	})
}

// switchDayLocked moves to label and resets everything carried over from
// the previous day.
func (c *Controller) switchDayLocked(label string, now time.Time) {
	c.day = label
	c.status = model.Idle()
	if c.mode == ModeManual {
		c.manualIndex = model.NoEntry
	}
	if c.cycler != nil {
		c.cycler.Stop()
		c.sched.Cancel(JobPreview)
	}
	c.renderLocked(now, true)
	if c.role == RolePrimary {
		c.updateLocked(now)
	}
}

// evaluatePreEventLocked runs the pre-event window check. Cycling only
// happens on the active day's date and in real-time mode.
func (c *Controller) evaluatePreEventLocked(now time.Time) {
	if c.cycler == nil {
		return
	}
	day, err := c.store.Day(c.day)
	var entries []model.AgendaEntry
	if err == nil && c.mode == ModeRealTime && model.DateOf(now).Equal(day.Date) {
		entries = day.Entries
	}
	// No entries means outside the window; a forced preview keeps running.
	was := c.cycler.State().Active
	if c.cycler.Evaluate(entries, model.TimeOfDayOf(now)) != was {
		c.renderLocked(now, false)
	}
}

func (c *Controller) publishJob(now time.Time) {
	c.mu.Lock()
	snap := c.snapshotLocked(now.In(c.loc))
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.pub.Publish(ctx, snap); err != nil {
		appLog.Error("sync publish failed", err, "day", snap.CurrentDay)
	}
}

func (c *Controller) snapshotLocked(now time.Time) syncbus.Snapshot {
	st := c.effectiveLocked()
	pre := false
	if c.cycler != nil {
		pre = c.cycler.State().Active
	}
	return syncbus.Snapshot{
		CurrentEventIndex: st.ActiveIndex,
		ConferenceStatus:  st.State,
		CurrentTime:       model.TimeOfDayOf(now).String(),
		CurrentDay:        c.day,
		PreEventMode:      pre,
	}
}

func (c *Controller) pollJob(time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.sub.Poll(ctx)
}

// applySnapshot mirrors an accepted snapshot. A snapshot for a day this
// display does not know, or with an index past that day's agenda, is
// rejected as a whole.
func (c *Controller) applySnapshot(s syncbus.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	day, err := c.store.Day(s.CurrentDay)
	if err != nil {
		return err
	}
	if s.CurrentEventIndex >= len(day.Entries) {
		return fmt.Errorf("%w: %d on %s", ErrIndexRange, s.CurrentEventIndex, s.CurrentDay)
	}

	if s.CurrentDay != c.day {
		appLog.Info("mirroring day", "from", c.day, "to", s.CurrentDay)
	}
	c.day = s.CurrentDay
	c.status = model.ScheduleStatus{
		ActiveIndex: s.CurrentEventIndex,
		State:       s.ConferenceStatus,
		Message:     mirroredMessage(s),
	}
	c.remotePre = s.PreEventMode
	if c.running {
		c.renderLocked(c.clock.Now().In(c.loc), false)
	}
	return nil
}

func mirroredMessage(s syncbus.Snapshot) string {
	switch s.ConferenceStatus {
	case model.StateActive:
		return "Event in progress"
	case model.StateCompleted:
		return fmt.Sprintf("%s has concluded", s.CurrentDay)
	case model.StateManual:
		return "Manual control"
	}
	if s.PreEventMode {
		return fmt.Sprintf("%s starts soon...", s.CurrentDay)
	}
	return "Waiting"
}

// healthJob restarts the display when its tick died while it should be
// running.
func (c *Controller) healthJob(time.Time) {
	c.mu.Lock()
	dead := c.running && c.visible && !c.sched.Running(JobTick)
	c.mu.Unlock()

	if dead {
		appLog.Warn("health check: update loop not running, restarting", "role", c.role)
		if err := c.Restart(); err != nil {
			appLog.Error("health check restart failed", err, "role", c.role)
		}
	}
}

// SetVisible suspends the tick while hidden. Becoming visible updates
// immediately and resumes the tick.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if visible == c.visible {
		return
	}
	c.visible = visible
	if !c.running {
		return
	}
	if !visible {
		c.sched.Cancel(JobTick)
		appLog.Info("updates paused (display hidden)", "role", c.role)
		return
	}
	c.updateLocked(c.clock.Now().In(c.loc))
	c.sched.Every(JobTick, c.timing.Tick, c.tickJob)
	appLog.Info("updates resumed (display visible)", "role", c.role)
}

// SetDay switches to label and pins it: day detection leaves it alone
// until real-time mode is restored or the display restarts.
func (c *Controller) SetDay(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.HasDay(label) {
		appLog.Warn("day override rejected", "day", label, "available", fmt.Sprint(c.store.Days()))
		return fmt.Errorf("%w: %q", agenda.ErrUnknownDay, label)
	}
	c.pinned = true
	now := c.clock.Now().In(c.loc)
	c.switchDayLocked(label, now)
	c.evaluatePreEventLocked(now)
	appLog.Info("conference day set by operator", "day", label)
	return nil
}

// SetRealTime switches between real-time and manual mode. Entering manual
// mode starts from the current entry, or the first one.
func (c *Controller) SetRealTime(realTime bool) error {
	if c.role != RolePrimary {
		return ErrPrimaryOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRealTimeLocked(realTime)
	return nil
}

// ToggleMode flips between real-time and manual mode.
func (c *Controller) ToggleMode() (Mode, error) {
	if c.role != RolePrimary {
		return "", ErrPrimaryOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setRealTimeLocked(c.mode == ModeManual)
	return c.mode, nil
}

func (c *Controller) setRealTimeLocked(realTime bool) {
	now := c.clock.Now().In(c.loc)
	if realTime {
		if c.mode == ModeRealTime && !c.pinned {
			return
		}
		c.mode = ModeRealTime
		c.manualIndex = model.NoEntry
		c.sched.Cancel(JobManual)
		c.status = model.Idle()
		if c.pinned {
			c.pinned = false
			if detected := schedule.ResolveActiveDay(model.DateOf(now), c.store.Dates()); detected != c.day {
				c.switchDayLocked(detected, now)
			}
		}
		appLog.Info("switched to real-time mode")
		c.updateLocked(now)
		c.evaluatePreEventLocked(now)
		return
	}

	if c.mode == ModeManual {
		return
	}
	c.mode = ModeManual
	c.manualIndex = max(0, c.status.ActiveIndex)
	if n := len(c.store.Entries(c.day)); c.manualIndex >= n {
		c.manualIndex = n - 1
	}
	appLog.Info("switched to manual mode", "index", c.manualIndex)
	c.evaluatePreEventLocked(now)
	c.armManualTimeoutLocked()
	c.renderLocked(now, false)
}

// armManualTimeoutLocked returns to real-time mode after a quiet period
// without operator navigation.
func (c *Controller) armManualTimeoutLocked() {
	c.sched.After(JobManual, c.timing.ManualTimeout, func(time.Time) {
		appLog.Info("manual override timed out")
		c.SetRealTime(true)
	})
}

// Next moves the manual selection forward.
func (c *Controller) Next() error {
	return c.navigate(func(i, n int) int {
		if i < n-1 {
			return i + 1
		}
		return i
	})
}

// Previous moves the manual selection back.
func (c *Controller) Previous() error {
	return c.navigate(func(i, _ int) int {
		if i > 0 {
			return i - 1
		}
		return i
	})
}

// Jump selects entry i in manual mode.
func (c *Controller) Jump(i int) error {
	n := len(c.store.Entries(c.Day()))
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d of %d", ErrIndexRange, i, n)
	}
	return c.navigate(func(int, int) int { return i })
}

func (c *Controller) navigate(step func(i, n int) int) error {
	if c.role != RolePrimary {
		return ErrPrimaryOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeManual {
		return ErrNotManual
	}
	n := len(c.store.Entries(c.day))
	if n == 0 {
		return nil
	}
	c.manualIndex = step(max(c.manualIndex, 0), n)
	c.armManualTimeoutLocked()
	c.renderLocked(c.clock.Now().In(c.loc), false)
	appLog.Debug("manual navigation", "index", c.manualIndex)
	return nil
}

// StartPreview forces pre-event highlighting for a limited time.
func (c *Controller) StartPreview() error {
	if c.cycler == nil {
		return ErrPrimaryOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.store.Entries(c.day)
	if len(entries) == 0 {
		return fmt.Errorf("display: %s has no entries to preview", c.day)
	}
	c.cycler.StartPreview(entries)
	c.sched.After(JobPreview, c.timing.PreviewFor, func(time.Time) {
		c.StopPreview()
	})
	c.renderLocked(c.clock.Now().In(c.loc), false)
	appLog.Info("pre-event preview started", "for", c.timing.PreviewFor.String())
	return nil
}

// StopPreview ends a forced preview.
func (c *Controller) StopPreview() error {
	if c.cycler == nil {
		return ErrPrimaryOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.Cancel(JobPreview)
	c.cycler.StopPreview()
	now := c.clock.Now().In(c.loc)
	c.evaluatePreEventLocked(now)
	c.renderLocked(now, false)
	return nil
}

// SetControlsVisible shows or hides operator controls on the display.
func (c *Controller) SetControlsVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = visible
	c.renderLocked(c.clock.Now().In(c.loc), false)
}

// Day returns the current day label.
func (c *Controller) Day() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

// Frame returns the frame the display would draw now.
func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked(c.clock.Now().In(c.loc))
}
