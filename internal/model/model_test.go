package model

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: " 8:05 ", want: 485},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1230", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDateCompare(t *testing.T) {
	d1 := MustDate("2025-09-30")
	d2 := MustDate("2025-10-01")

	if !d1.Before(d2) || d2.Before(d1) {
		t.Fatalf("expected %s before %s", d1, d2)
	}
	if !d2.After(d1) {
		t.Fatalf("expected %s after %s", d2, d1)
	}
	if !d1.Equal(DateOf(time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC))) {
		t.Fatalf("DateOf should ignore time of day")
	}
}

func TestDaySchedule_YAML(t *testing.T) {
	src := `
label: Day 1
date: 2025-09-30
entries:
  - time: "08:30"
    display_time: "8:30 AM"
    title: Registration
    duration: 50
`
	var day DaySchedule
	if err := yaml.Unmarshal([]byte(src), &day); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if day.Date != MustDate("2025-09-30") {
		t.Fatalf("Date=%s, want 2025-09-30", day.Date)
	}
	if len(day.Entries) != 1 {
		t.Fatalf("len(Entries)=%d, want 1", len(day.Entries))
	}
	e := day.Entries[0]
	if e.Start != MustTimeOfDay("08:30") || e.DurationMinutes != 50 {
		t.Fatalf("entry = %+v", e)
	}
	if e.End().String() != "09:20" {
		t.Fatalf("End()=%s, want 09:20", e.End())
	}
}

func TestParseState(t *testing.T) {
	if _, err := ParseState("active"); err != nil {
		t.Fatalf("ParseState(active): %v", err)
	}
	if _, err := ParseState("paused"); err == nil {
		t.Fatalf("ParseState(paused) expected error")
	}
}
