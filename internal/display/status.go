package display

import (
	"confagenda/internal/model"
	"confagenda/internal/preevent"
	"confagenda/internal/syncbus"
)

// SystemStatus is the operator view of a display.
type SystemStatus struct {
	Running         bool   `json:"running"`
	Role            Role   `json:"role"`
	Mode            Mode   `json:"mode"`
	Visible         bool   `json:"visible"`
	ControlsVisible bool   `json:"controls_visible"`
	Restarts        int    `json:"restarts"`
	CurrentTime     string `json:"current_time"`

	Day       string     `json:"current_day"`
	Date      model.Date `json:"date"`
	DayPinned bool       `json:"day_pinned"`
	Days      []string   `json:"days"`

	State            model.State        `json:"conference_status"`
	Message          string             `json:"message"`
	ActiveIndex      int                `json:"current_index"`
	Current          *model.AgendaEntry `json:"current_event,omitempty"`
	Next             *model.AgendaEntry `json:"next_event,omitempty"`
	MinutesUntilNext int                `json:"time_until_next"`

	PreEvent      preevent.CycleState `json:"pre_event"`
	Sync          *syncbus.SyncState  `json:"sync,omitempty"`
	LastPublished *syncbus.Snapshot   `json:"last_published,omitempty"`
	Jobs          []string            `json:"jobs"`
}

// Status reports the display's current state.
func (c *Controller) Status() SystemStatus {
	c.mu.Lock()
	now := c.clock.Now().In(c.loc)
	f := c.frameLocked(now)
	st := SystemStatus{
		Running:          c.running,
		Role:             c.role,
		Mode:             c.mode,
		Visible:          c.visible,
		ControlsVisible:  c.controls,
		Restarts:         c.restarts,
		CurrentTime:      model.TimeOfDayOf(now).String(),
		Day:              c.day,
		Date:             f.Date,
		DayPinned:        c.pinned,
		Days:             c.store.Days(),
		State:            f.State,
		Message:          f.Message,
		ActiveIndex:      f.ActiveIndex,
		Current:          f.Current,
		Next:             f.Next,
		MinutesUntilNext: f.MinutesUntilNext,
		Jobs:             c.sched.Names(),
	}
	c.mu.Unlock()

	if c.cycler != nil {
		st.PreEvent = c.cycler.State()
	} else {
		st.PreEvent = preevent.CycleState{Active: f.PreEvent, HighlightIndex: model.NoEntry}
	}
	if c.sub != nil {
		s := c.sub.Status()
		st.Sync = &s
	}
	if c.pub != nil {
		if snap, ok := c.pub.Last(); ok {
			st.LastPublished = &snap
		}
	}
	return st
}
