package syncbus

import (
	"errors"
	"strings"
	"testing"
	"time"

	"confagenda/internal/model"
)

func TestSnapshot_EncodeUsesWireNames(t *testing.T) {
	s := Snapshot{
		CurrentEventIndex: 2,
		ConferenceStatus:  model.StateActive,
		CurrentTime:       "10:15",
		CurrentDay:        "Day 1",
		PreEventMode:      false,
		Timestamp:         1759219200000,
	}
	b, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, field := range []string{
		`"currentEventIndex":2`,
		`"conferenceStatus":"active"`,
		`"currentTime":"10:15"`,
		`"currentDay":"Day 1"`,
		`"preEventMode":false`,
		`"timestamp":1759219200000`,
	} {
		if !strings.Contains(string(b), field) {
			t.Errorf("encoded %s missing %s", b, field)
		}
	}
	if strings.Contains(string(b), "source") {
		t.Errorf("empty source should be omitted: %s", b)
	}
}

func TestDecode_AcceptsForeignPayload(t *testing.T) {
	payload := `{"currentEventIndex":-1,"conferenceStatus":"waiting","currentTime":"08:30","currentDay":"Day 2","preEventMode":true,"timestamp":1759300000000}`
	s, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.CurrentEventIndex != -1 || s.ConferenceStatus != model.StateWaiting || !s.PreEventMode || s.CurrentDay != "Day 2" {
		t.Fatalf("decoded %+v", s)
	}
}

func TestDecode_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"currentEventIndex":`,
		"unknown status": `{"currentEventIndex":0,"conferenceStatus":"paused","currentDay":"Day 1","timestamp":1}`,
		"index below -1": `{"currentEventIndex":-2,"conferenceStatus":"waiting","currentDay":"Day 1","timestamp":1}`,
		"no index":       `{"conferenceStatus":"waiting","currentDay":"Day 1","timestamp":1}`,
		"no timestamp":   `{"currentEventIndex":0,"conferenceStatus":"active","currentDay":"Day 1"}`,
		"no day":         `{"currentEventIndex":0,"conferenceStatus":"active","timestamp":1}`,
		"wrong types":    `{"currentEventIndex":"0","conferenceStatus":"active","currentDay":"Day 1","timestamp":1}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(payload)); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSnapshot_Fresh(t *testing.T) {
	produced := time.Date(2025, 9, 30, 10, 0, 0, 0, time.UTC)
	s := Snapshot{Timestamp: produced.UnixMilli()}

	cases := []struct {
		age  time.Duration
		want bool
	}{
		{0, true},
		{2999 * time.Millisecond, true},
		{3000 * time.Millisecond, false},
		{10 * time.Second, false},
	}
	for _, tc := range cases {
		if got := s.Fresh(produced.Add(tc.age), DefaultStaleAfter); got != tc.want {
			t.Errorf("Fresh(age=%v) = %v, want %v", tc.age, got, tc.want)
		}
	}
}
