// Package schedule decides which agenda entry is active for a given moment.
// Everything here is pure: the same inputs always give the same result.
package schedule

import (
	"fmt"

	"confagenda/internal/model"
)

// Resolve maps an agenda, the current minute and today's date to a status.
//
// Rules, in order:
//   - today before the conference date: waiting
//   - today after the conference date: completed
//   - no entries, or now before the first start: waiting
//   - now at or after the end of the last entry (capped at midnight): completed
//   - the first entry in table order whose [start, end) contains now: active
//   - otherwise, a gap between entries: waiting with no active entry
func Resolve(entries []model.AgendaEntry, now model.TimeOfDay, today, conferenceDate model.Date) model.ScheduleStatus {
	return ResolveDay("", entries, now, today, conferenceDate)
}

// ResolveDay is Resolve with the day label used in status messages.
func ResolveDay(day string, entries []model.AgendaEntry, now model.TimeOfDay, today, conferenceDate model.Date) model.ScheduleStatus {
	name := day
	if name == "" {
		name = "The conference"
	}

	if today.Before(conferenceDate) {
		return model.ScheduleStatus{
			ActiveIndex: model.NoEntry,
			State:       model.StateWaiting,
			Message:     fmt.Sprintf("%s starts tomorrow", name),
		}
	}
	if today.After(conferenceDate) {
		return model.ScheduleStatus{
			ActiveIndex: model.NoEntry,
			State:       model.StateCompleted,
			Message:     fmt.Sprintf("%s has concluded", name),
		}
	}

	if len(entries) == 0 {
		return model.ScheduleStatus{
			ActiveIndex: model.NoEntry,
			State:       model.StateWaiting,
			Message:     fmt.Sprintf("No events for %s", name),
		}
	}

	if now < entries[0].Start {
		return model.ScheduleStatus{
			ActiveIndex: model.NoEntry,
			State:       model.StateWaiting,
			Message:     fmt.Sprintf("%s starts soon...", name),
		}
	}

	last := len(entries) - 1
	if now >= entryEnd(entries, last) {
		return model.ScheduleStatus{
			ActiveIndex: model.NoEntry,
			State:       model.StateCompleted,
			Message:     fmt.Sprintf("%s has concluded", name),
		}
	}

	for i := range entries {
		if now >= entries[i].Start && now < entryEnd(entries, i) {
			return model.ScheduleStatus{
				ActiveIndex: i,
				State:       model.StateActive,
				Message:     "Event in progress",
			}
		}
	}

	return model.ScheduleStatus{
		ActiveIndex: model.NoEntry,
		State:       model.StateWaiting,
		Message:     "Between events",
	}
}

// entryEnd is start+duration; only the last entry is clamped to midnight.
func entryEnd(entries []model.AgendaEntry, i int) model.TimeOfDay {
	end := entries[i].End()
	if i == len(entries)-1 && end > model.MinutesPerDay {
		end = model.MinutesPerDay
	}
	return end
}

// ActiveIndices returns every entry whose interval contains now. Parallel
// tracks can make this return more than one index; list views use it to
// mark all running sessions while Resolve picks a single one.
func ActiveIndices(entries []model.AgendaEntry, now model.TimeOfDay) []int {
	var out []int
	for i := range entries {
		if now >= entries[i].Start && now < entryEnd(entries, i) {
			out = append(out, i)
		}
	}
	return out
}

// NextEntry returns the first entry starting strictly after now.
func NextEntry(entries []model.AgendaEntry, now model.TimeOfDay) (int, bool) {
	for i, e := range entries {
		if e.Start > now {
			return i, true
		}
	}
	return model.NoEntry, false
}

// MinutesUntilNext returns minutes until the next entry starts, or -1 when
// no entry starts later today.
func MinutesUntilNext(entries []model.AgendaEntry, now model.TimeOfDay) int {
	i, ok := NextEntry(entries, now)
	if !ok {
		return -1
	}
	return int(entries[i].Start - now)
}

// MinutesUntilFirst returns minutes from now until the first entry starts.
// The value is zero or negative once the first entry has started.
func MinutesUntilFirst(entries []model.AgendaEntry, now model.TimeOfDay) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	return int(entries[0].Start - now), true
}
