// Package agenda holds the conference timetable: one ordered list of
// entries per day, fixed once loaded.
package agenda

import (
	"errors"
	"fmt"
	"strings"

	"confagenda/internal/model"
	"confagenda/internal/schedule"
)

// ErrUnknownDay is returned for a day label that is not in the store.
var ErrUnknownDay = errors.New("agenda: unknown day")

// Store is an immutable set of day schedules.
type Store struct {
	name  string
	days  map[string]model.DaySchedule
	order []string
}

// NewStore validates days and builds a Store. Entries keep their given
// order.
func NewStore(name string, days []model.DaySchedule) (*Store, error) {
	s := &Store{
		name: name,
		days: make(map[string]model.DaySchedule, len(days)),
	}
	dates := make(map[string]model.Date, len(days))

	for _, d := range days {
		label := strings.TrimSpace(d.Label)
		if label == "" {
			return nil, errors.New("agenda: day with empty label")
		}
		if _, dup := s.days[label]; dup {
			return nil, fmt.Errorf("agenda: duplicate day %q", label)
		}
		if d.Date.IsZero() {
			return nil, fmt.Errorf("agenda: day %q has no date", label)
		}
		for i, e := range d.Entries {
			if e.Start < 0 || e.Start >= model.MinutesPerDay {
				return nil, fmt.Errorf("agenda: %s entry %d: start %d out of range", label, i, e.Start)
			}
			if e.DurationMinutes < 0 {
				return nil, fmt.Errorf("agenda: %s entry %d (%s): negative duration", label, i, e.Title)
			}
		}
		d.Label = label
		d.Entries = append([]model.AgendaEntry(nil), d.Entries...)
		s.days[label] = d
		dates[label] = d.Date
	}
	s.order = schedule.SortedDays(dates)
	return s, nil
}

// Name returns the conference name.
func (s *Store) Name() string { return s.name }

// Days returns day labels ordered by date.
func (s *Store) Days() []string {
	return append([]string(nil), s.order...)
}

// HasDay reports whether label is a configured day.
func (s *Store) HasDay(label string) bool {
	_, ok := s.days[label]
	return ok
}

// Day returns the schedule for label.
func (s *Store) Day(label string) (model.DaySchedule, error) {
	d, ok := s.days[label]
	if !ok {
		return model.DaySchedule{}, fmt.Errorf("%w: %q", ErrUnknownDay, label)
	}
	d.Entries = append([]model.AgendaEntry(nil), d.Entries...)
	return d, nil
}

// Entries returns a copy of label's entries, or nil for an unknown day.
func (s *Store) Entries(label string) []model.AgendaEntry {
	d, ok := s.days[label]
	if !ok {
		return nil
	}
	return append([]model.AgendaEntry(nil), d.Entries...)
}

// Dates maps every day label to its calendar date.
func (s *Store) Dates() map[string]model.Date {
	out := make(map[string]model.Date, len(s.days))
	for label, d := range s.days {
		out[label] = d.Date
	}
	return out
}
