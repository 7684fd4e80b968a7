package agenda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"confagenda/internal/model"
)

// FromOccurrences places timed occurrences on the conference day whose
// date matches their local start date. All-day occurrences and those on
// other dates are dropped. Each day is ordered by start.
func FromOccurrences(occs []model.Occurrence, days []model.DaySchedule, loc *time.Location) []model.DaySchedule {
	out := make([]model.DaySchedule, len(days))
	index := make(map[model.Date]int, len(days))
	for i, d := range days {
		out[i] = model.DaySchedule{Label: d.Label, Date: d.Date}
		index[d.Date] = i
	}

	for _, o := range occs {
		if o.AllDay {
			continue
		}
		start := o.Start.In(loc)
		i, ok := index[model.DateOf(start)]
		if !ok {
			continue
		}
		mins := int(o.End.Sub(o.Start) / time.Minute)
		if mins < 0 {
			mins = 0
		}
		out[i].Entries = append(out[i].Entries, model.AgendaEntry{
			Start:           model.TimeOfDayOf(start),
			DisplayTime:     start.Format("3:04 PM"),
			Title:           o.Summary,
			Description:     describe(o),
			DurationMinutes: mins,
		})
	}

	for i := range out {
		entries := out[i].Entries
		sort.SliceStable(entries, func(a, b int) bool { return entries[a].Start < entries[b].Start })
	}
	return out
}

func describe(o model.Occurrence) string {
	switch {
	case o.Location == "":
		return o.Description
	case o.Description == "":
		return o.Location
	default:
		return o.Description + " at " + o.Location
	}
}

// ExportICS renders the store as an iCalendar feed in loc. stamp is used
// as DTSTAMP on every event.
func ExportICS(s *Store, loc *time.Location, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//confagenda//agenda//EN")
	if s.Name() != "" {
		cal.SetXWRCalName(s.Name())
	}

	for _, label := range s.Days() {
		day, _ := s.Day(label)
		for i, e := range day.Entries {
			ev := cal.AddEvent(fmt.Sprintf("%s-%s-%02d@confagenda", day.Date, slug(label), i))
			ev.SetDtStampTime(stamp.UTC())
			ev.SetStartAt(day.Date.At(e.Start, loc))
			ev.SetEndAt(day.Date.At(e.End(), loc))
			ev.SetSummary(e.Title)
			if e.Description != "" {
				ev.SetDescription(e.Description)
			}
		}
	}
	return []byte(cal.Serialize())
}

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}
