package model

import "time"

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization). ICS-sourced
// agendas are built from occurrences.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}

// AgendaEntry is one scheduled item on a conference day. Identity is the
// entry's position in its day's sequence.
type AgendaEntry struct {
	Start           TimeOfDay `yaml:"time" json:"time"`
	DisplayTime     string    `yaml:"display_time" json:"display_time"`
	Title           string    `yaml:"title" json:"title"`
	Description     string    `yaml:"description" json:"description"`
	DurationMinutes int       `yaml:"duration" json:"duration"`
}

// End returns start+duration. It is not clamped to midnight; the resolver
// applies the clamp where it matters.
func (e AgendaEntry) End() TimeOfDay {
	return e.Start + TimeOfDay(e.DurationMinutes)
}

// Label returns DisplayTime, or the 24h start time when no display form is set.
func (e AgendaEntry) Label() string {
	if e.DisplayTime != "" {
		return e.DisplayTime
	}
	return e.Start.String()
}

// DaySchedule is the agenda of one conference day.
type DaySchedule struct {
	Label   string        `yaml:"label" json:"label"`
	Date    Date          `yaml:"date" json:"date"`
	Entries []AgendaEntry `yaml:"entries" json:"entries"`
}
