package agenda

import (
	"errors"
	"testing"

	"confagenda/internal/model"
)

func day(label, date string, entries ...model.AgendaEntry) model.DaySchedule {
	return model.DaySchedule{Label: label, Date: model.MustDate(date), Entries: entries}
}

func entry(start string, dur int, title string) model.AgendaEntry {
	return model.AgendaEntry{Start: model.MustTimeOfDay(start), DurationMinutes: dur, Title: title}
}

func TestNewStore_OrdersDaysByDate(t *testing.T) {
	s, err := NewStore("test", []model.DaySchedule{
		day("Day 2", "2025-10-01"),
		day("Day 1", "2025-09-30", entry("09:00", 30, "Opening")),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got := s.Days()
	if len(got) != 2 || got[0] != "Day 1" || got[1] != "Day 2" {
		t.Fatalf("Days = %v", got)
	}
	if !s.HasDay("Day 1") || s.HasDay("Day 3") {
		t.Fatal("HasDay wrong")
	}
	if s.Dates()["Day 2"] != model.MustDate("2025-10-01") {
		t.Fatalf("Dates = %v", s.Dates())
	}
}

func TestNewStore_Validation(t *testing.T) {
	cases := map[string][]model.DaySchedule{
		"empty label":       {day(" ", "2025-09-30")},
		"duplicate":         {day("Day 1", "2025-09-30"), day("Day 1", "2025-10-01")},
		"no date":           {{Label: "Day 1"}},
		"negative duration": {day("Day 1", "2025-09-30", entry("09:00", -1, "x"))},
		"start past midnight": {day("Day 1", "2025-09-30", model.AgendaEntry{
			Start: model.MinutesPerDay, Title: "late",
		})},
	}
	for name, days := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewStore("x", days); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestStore_DayUnknown(t *testing.T) {
	s, err := NewStore("x", []model.DaySchedule{day("Day 1", "2025-09-30")})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := s.Day("Day 9"); !errors.Is(err, ErrUnknownDay) {
		t.Fatalf("err = %v, want ErrUnknownDay", err)
	}
	if s.Entries("Day 9") != nil {
		t.Fatal("Entries for unknown day not nil")
	}
}

func TestStore_EntriesAreCopies(t *testing.T) {
	s, err := NewStore("x", []model.DaySchedule{day("Day 1", "2025-09-30", entry("09:00", 30, "Opening"))})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	e := s.Entries("Day 1")
	e[0].Title = "changed"
	if s.Entries("Day 1")[0].Title != "Opening" {
		t.Fatal("caller mutated the store")
	}
}
