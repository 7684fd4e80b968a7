package render

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"confagenda/internal/display"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
)

func sampleFrame(role display.Role) display.Frame {
	entries := []model.AgendaEntry{
		{Start: model.MustTimeOfDay("09:00"), DisplayTime: "9:00 AM", Title: "Opening", DurationMinutes: 60},
		{Start: model.MustTimeOfDay("10:00"), DisplayTime: "10:00 AM", Title: "Keynote", Description: "Main hall", DurationMinutes: 45},
		{Start: model.MustTimeOfDay("11:00"), DisplayTime: "11:00 AM", Title: "Panel", DurationMinutes: 60},
	}
	cur, next := entries[1], entries[2]
	return display.Frame{
		Role:             role,
		Conference:       "Test Symposium",
		Day:              "Day 1",
		Date:             model.MustDate("2025-09-30"),
		Entries:          entries,
		ActiveIndex:      1,
		State:            model.StateActive,
		Message:          "Event in progress",
		ListActive:       []int{1},
		Current:          &cur,
		Next:             &next,
		MinutesUntilNext: 40,
		Clock:            "10:20:00",
		Mode:             display.ModeRealTime,
		HighlightIndex:   model.NoEntry,
	}
}

type failing struct{ *Latest }

func (*failing) Render(display.Frame) error { return errors.New("boom") }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a, b := NewLatest(), &failing{NewLatest()}
	m := Multi{a, b}

	err := m.Render(sampleFrame(display.RolePrimary))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Render err = %v", err)
	}
	if !a.View().Ready {
		t.Fatal("first renderer skipped after a later one failed")
	}

	m.Highlight(2, model.AgendaEntry{})
	if a.View().Highlight != 2 || b.View().Highlight != 2 {
		t.Fatal("highlight not fanned out")
	}
	m.Clock("10:20:05")
	if a.View().Clock != "10:20:05" {
		t.Fatalf("clock = %q", a.View().Clock)
	}
	m.ShowError("oops")
	if b.View().Error != "oops" {
		t.Fatal("error not fanned out")
	}
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	if v := l.View(); v.Ready || v.Highlight != model.NoEntry {
		t.Fatalf("initial view = %+v", v)
	}

	f := sampleFrame(display.RolePrimary)
	f.PreEvent = true
	l.ShowError("stale")
	l.Render(f)
	l.Highlight(2, f.Entries[2])

	v := l.View()
	if !v.Ready || v.Error != "" || v.Highlight != 2 || v.Clock != "10:20:00" {
		t.Fatalf("view = %+v", v)
	}

	v.Frame.Entries[0].Title = "changed"
	if l.View().Frame.Entries[0].Title != "Opening" {
		t.Fatal("View shares entries with the holder")
	}

	f.PreEvent = false
	l.Render(f)
	if l.View().Highlight != model.NoEntry {
		t.Fatal("highlight kept after pre-event ended")
	}

	l.ShowFatal("no agenda")
	if l.View().Fatal != "no agenda" {
		t.Fatal("fatal not recorded")
	}
}

func TestTermRenderer_PrimaryList(t *testing.T) {
	var buf bytes.Buffer
	r := NewTermRenderer(&buf, 0)

	if err := r.Render(sampleFrame(display.RolePrimary)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Test Symposium", "Day 1", "10:20:00", "▶ 10:00 AM", "Opening", "Panel", "Event in progress"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTermRenderer_SecondaryDetail(t *testing.T) {
	var buf bytes.Buffer
	r := NewTermRenderer(&buf, 0)

	r.Render(sampleFrame(display.RoleSecondary))
	out := buf.String()
	for _, want := range []string{"Keynote", "Main hall", "45 min", "Next in 40 min: Panel"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Opening") {
		t.Error("detail view printed the full list")
	}
}

func TestTermRenderer_HighlightAndErrors(t *testing.T) {
	var buf bytes.Buffer
	r := NewTermRenderer(&buf, 0)

	f := sampleFrame(display.RolePrimary)
	f.ActiveIndex = model.NoEntry
	f.PreEvent = true
	r.Highlight(0, f.Entries[0])
	r.Render(f)
	if !strings.Contains(buf.String(), "Coming up: 9:00 AM Opening") || !strings.Contains(buf.String(), "★ 9:00 AM") {
		t.Fatalf("highlight not shown:\n%s", buf.String())
	}

	buf.Reset()
	r.ShowError("Update failed")
	r.ShowFatal("could not start")
	if !strings.Contains(buf.String(), "! Update failed") || !strings.Contains(buf.String(), "could not start") {
		t.Fatalf("errors not shown:\n%s", buf.String())
	}
}

func TestLogRenderer(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetLevel(appLog.LevelDebug)
	t.Cleanup(func() {
		appLog.SetOutput(os.Stderr)
		appLog.SetLevel(appLog.LevelInfo)
	})

	r := LogRenderer{}
	r.Render(sampleFrame(display.RoleSecondary))
	r.Highlight(0, model.AgendaEntry{Title: "Opening"})
	r.ShowFatal("no days")

	out := buf.String()
	for _, want := range []string{"display frame", "display=secondary", "title=Keynote", "pre-event highlight", "[ERROR] display failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
