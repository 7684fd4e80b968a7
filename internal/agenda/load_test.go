package agenda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"confagenda/internal/ics"
	"confagenda/internal/model"
	"confagenda/internal/schedule"
)

func TestDefault(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if s.Name() != "Climate Symposium 2025" {
		t.Fatalf("Name = %q", s.Name())
	}
	days := s.Days()
	if len(days) != 2 || days[0] != "Day 1" || days[1] != "Day 2" {
		t.Fatalf("Days = %v", days)
	}
	d1, _ := s.Day("Day 1")
	if d1.Date != model.MustDate("2025-09-30") || len(d1.Entries) != 14 {
		t.Fatalf("Day 1 = %s with %d entries", d1.Date, len(d1.Entries))
	}
	if d1.Entries[0].Title != "Registration - Lobby" || d1.Entries[0].DisplayTime != "8:30 AM" {
		t.Fatalf("first entry = %+v", d1.Entries[0])
	}

	// The dinner runs to midnight, so 23:59 is still active.
	st := schedule.Resolve(d1.Entries, model.MustTimeOfDay("23:59"), d1.Date, d1.Date)
	if st.State != model.StateActive || d1.Entries[st.ActiveIndex].Title != "Conference Dinner" {
		t.Fatalf("23:59 on Day 1 = %+v", st)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.yaml")
	body := `name: Test Summit
days:
  - label: Main
    date: 2026-03-02
    entries:
      - time: "09:00"
        title: Welcome
        duration: 30
      - time: "09:30"
        title: Talk
        duration: 45
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(context.Background(), Source{File: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e := s.Entries("Main")
	if len(e) != 2 || e[1].Start != model.MustTimeOfDay("09:30") || e[1].DurationMinutes != 45 {
		t.Fatalf("entries = %+v", e)
	}
	if e[0].Label() != "09:00" {
		t.Fatalf("Label without display time = %q", e[0].Label())
	}
}

func TestLoad_YAMLRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.yml")
	os.WriteFile(path, []byte("days:\n  - label: A\n    date: 2026-03-02\n    colour: red\n"), 0o600)
	if _, err := Load(context.Background(), Source{File: path}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_JSONCFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.jsonc")
	body := `{
  // single-track workshop
  "name": "Workshop",
  "days": [
    {
      "label": "Day 1",
      "date": "2026-05-10",
      "entries": [
        {"time": "10:00", "title": "Hands-on", "duration": 120}, // trailing comma below
      ],
    },
  ],
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(context.Background(), Source{File: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e := s.Entries("Day 1"); len(e) != 1 || e[0].Title != "Hands-on" {
		t.Fatalf("entries = %+v", e)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.txt")
	os.WriteFile(path, []byte("x"), 0o600)
	if _, err := Load(context.Background(), Source{File: path}); err == nil {
		t.Fatal("expected error")
	}
}

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b@x\r\n" +
	"DTSTART:20250930T040000Z\r\n" +
	"DTEND:20250930T050000Z\r\n" +
	"SUMMARY:Keynote\r\n" +
	"LOCATION:Lotus Hall\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a@x\r\n" +
	"DTSTART:20250930T033000Z\r\n" +
	"DTEND:20250930T040000Z\r\n" +
	"SUMMARY:Registration\r\n" +
	"DESCRIPTION:Badges\r\n" +
	"LOCATION:Lobby\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:c@x\r\n" +
	"DTSTART:20251001T033000Z\r\n" +
	"DTEND:20251001T043000Z\r\n" +
	"SUMMARY:Day two opening\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestLoad_CalendarURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	colombo := time.FixedZone("IST", 5*3600+1800)
	s, err := Load(context.Background(), Source{
		URL:      srv.URL + "/agenda.ics",
		CacheDir: t.TempDir(),
		Client:   srv.Client(),
		Name:     "Symposium",
		Location: colombo,
		Days: []model.DaySchedule{
			{Label: "Day 1", Date: model.MustDate("2025-09-30")},
			{Label: "Day 2", Date: model.MustDate("2025-10-01")},
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	d1 := s.Entries("Day 1")
	if len(d1) != 2 {
		t.Fatalf("Day 1 entries = %+v", d1)
	}
	if d1[0].Title != "Registration" || d1[0].Start != model.MustTimeOfDay("09:00") || d1[0].DurationMinutes != 30 {
		t.Fatalf("first entry = %+v", d1[0])
	}
	if d1[0].Description != "Badges at Lobby" || d1[1].Description != "Lotus Hall" {
		t.Fatalf("descriptions = %q, %q", d1[0].Description, d1[1].Description)
	}
	if d1[0].DisplayTime != "9:00 AM" {
		t.Fatalf("DisplayTime = %q", d1[0].DisplayTime)
	}
	if len(s.Entries("Day 2")) != 1 {
		t.Fatalf("Day 2 entries = %+v", s.Entries("Day 2"))
	}
}

func TestLoad_CalendarNeedsDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.ics")
	os.WriteFile(path, []byte(feed), 0o600)
	if _, err := Load(context.Background(), Source{File: path}); err == nil {
		t.Fatal("expected error without conference days")
	}
}

func TestFromOccurrences_SkipsAllDayAndOtherDates(t *testing.T) {
	loc := time.UTC
	at := func(s string) time.Time {
		v, _ := time.ParseInLocation("2006-01-02 15:04", s, loc)
		return v
	}
	occs := []model.Occurrence{
		{Summary: "late", Start: at("2025-09-30 14:00"), End: at("2025-09-30 15:00")},
		{Summary: "early", Start: at("2025-09-30 09:00"), End: at("2025-09-30 09:45")},
		{Summary: "all day", AllDay: true, Start: at("2025-09-30 00:00"), End: at("2025-10-01 00:00")},
		{Summary: "elsewhere", Start: at("2025-12-01 09:00"), End: at("2025-12-01 10:00")},
		{Summary: "backwards", Start: at("2025-09-30 16:00"), End: at("2025-09-30 15:00")},
	}
	days := FromOccurrences(occs, []model.DaySchedule{{Label: "Day 1", Date: model.MustDate("2025-09-30")}}, loc)

	var titles []string
	for _, e := range days[0].Entries {
		titles = append(titles, e.Title)
	}
	if strings.Join(titles, ",") != "early,late,backwards" {
		t.Fatalf("titles = %v", titles)
	}
	if days[0].Entries[2].DurationMinutes != 0 {
		t.Fatalf("negative duration not clamped: %d", days[0].Entries[2].DurationMinutes)
	}
}

func TestExportICS(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	colombo := time.FixedZone("IST", 5*3600+1800)
	body := ExportICS(s, colombo, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))

	events, err := ics.Parse("export", body)
	if err != nil {
		t.Fatalf("exported feed does not parse: %v", err)
	}
	if len(events) != 27 {
		t.Fatalf("exported %d events, want 27", len(events))
	}

	var found bool
	for _, ev := range events {
		if ev.Summary == "Registration - Lobby" {
			found = true
			want := time.Date(2025, 9, 30, 8, 30, 0, 0, colombo)
			if !ev.Start.Equal(want) || ev.End.Sub(ev.Start) != 50*time.Minute {
				t.Fatalf("registration = %v..%v", ev.Start, ev.End)
			}
		}
	}
	if !found {
		t.Fatal("registration missing from export")
	}
}
