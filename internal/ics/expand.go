package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "confagenda/internal/log"
	"confagenda/internal/model"
)

const defaultMaxPerEvent = 5000

// Window bounds recurrence expansion.
type Window struct {
	// Location is the display timezone occurrences are converted to.
	Location *time.Location
	From     time.Time
	To       time.Time
	// MaxPerEvent caps the instances one RRULE may produce.
	MaxPerEvent int
}

// Expand turns events into concrete occurrences inside w, applying RRULE,
// EXDATE and RECURRENCE-ID overrides. The result is ordered by start.
func Expand(events []Event, w Window) ([]model.Occurrence, error) {
	if w.To.Before(w.From) {
		return nil, errors.New("ics: window ends before it starts")
	}
	if w.Location == nil {
		w.Location = time.Local
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}

	overrides := make(map[string][]Event)
	var bases []Event
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	var out []model.Occurrence
	for _, ev := range bases {
		occs, capped := expandOne(ev, overrides[ev.UID], w)
		if capped {
			appLog.Warn("ics recurrence truncated", "uid", ev.UID, "cap", w.MaxPerEvent)
		}
		out = append(out, occs...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

func expandOne(ev Event, overrides []Event, w Window) ([]model.Occurrence, bool) {
	if ev.RRule == "" {
		if !overlaps(ev.Start, ev.End, w.From, w.To) {
			return nil, false
		}
		return []model.Occurrence{occurrence(ev, overrides, ev.Start, ev.End, w.Location)}, false
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("ics RRULE unreadable", err, "uid", ev.UID, "rrule", ev.RRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(w.From.In(ev.Start.Location()), w.To.In(ev.Start.Location()), true)
	capped := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		capped = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, 1)
		}
		out = append(out, occurrence(ev, overrides, s, e, w.Location))
	}
	return out, capped
}

// occurrence builds one instance, substituting the override whose
// RECURRENCE-ID equals start.
func occurrence(ev Event, overrides []Event, start, end time.Time, loc *time.Location) model.Occurrence {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			ev, start, end = o, o.Start, o.End
			break
		}
	}

	s := start.In(loc)
	return model.Occurrence{
		SourceID:    ev.Feed,
		UID:         ev.UID,
		InstanceKey: s.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       s,
		End:         end.In(loc),
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
