// Package display runs one screen of the agenda: the primary display
// resolves the schedule and publishes it, the secondary mirrors it.
package display

import (
	"fmt"
	"time"

	"confagenda/internal/model"
)

// Role selects which half of the dual-screen setup a Controller drives.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Mode is real-time (follow the clock) or manual (operator navigates).
type Mode string

const (
	ModeRealTime Mode = "real-time"
	ModeManual   Mode = "manual"
)

// Frame is everything a renderer needs to draw one state of the display.
type Frame struct {
	Role       Role
	Conference string
	Day        string
	Date       model.Date
	Entries    []model.AgendaEntry

	ActiveIndex int
	State       model.State
	Message     string
	// ListActive marks every entry running now, parallel tracks included.
	ListActive []int

	Current          *model.AgendaEntry
	Next             *model.AgendaEntry
	MinutesUntilNext int

	Clock           string
	Mode            Mode
	ControlsVisible bool
	PreEvent        bool
	HighlightIndex  int

	At time.Time
}

// Renderer is the presentation side of a display. Implementations must be
// safe for concurrent use: highlights arrive from the rotation job.
type Renderer interface {
	Render(Frame) error
	Highlight(index int, entry model.AgendaEntry)
	ClearHighlight()
	// ShowError reports a transient failure; the next Render replaces it.
	ShowError(msg string)
	// ShowFatal replaces the whole display after an initialization failure.
	ShowFatal(msg string)
}

// ClockRenderer is implemented by renderers that show the running clock.
// It is called every tick, independently of Render.
type ClockRenderer interface {
	Clock(text string)
}

// frameKey holds the fields whose change triggers a redraw.
type frameKey struct {
	day      string
	index    int
	state    model.State
	message  string
	mode     Mode
	minutes  int
	preEvent bool
	controls bool
	listed   string
}

func (f Frame) key() frameKey {
	return frameKey{
		day:      f.Day,
		index:    f.ActiveIndex,
		state:    f.State,
		message:  f.Message,
		mode:     f.Mode,
		minutes:  f.MinutesUntilNext,
		preEvent: f.PreEvent,
		controls: f.ControlsVisible,
		listed:   fmt.Sprint(f.ListActive),
	}
}
