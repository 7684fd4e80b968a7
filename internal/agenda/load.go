package agenda

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"confagenda/internal/ics"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
)

//go:embed default.yaml
var defaultAgenda []byte

// File is the on-disk agenda format shared by YAML and JSON files.
type File struct {
	Name string              `yaml:"name" json:"name"`
	Days []model.DaySchedule `yaml:"days" json:"days"`
}

// Source says where the agenda comes from. With neither File nor URL set
// the built-in timetable is used.
type Source struct {
	File string
	URL  string

	// CacheDir holds the last good copy of URL.
	CacheDir string
	Client   *http.Client

	// Name and Days describe the conference for calendar feeds, which
	// carry neither. Only label and date of each day are used.
	Name     string
	Days     []model.DaySchedule
	Location *time.Location
}

// Load reads the agenda described by src.
func Load(ctx context.Context, src Source) (*Store, error) {
	switch {
	case src.URL != "":
		f, err := ics.NewFetcher(src.CacheDir, src.Client).Fetch(ctx, ics.Feed{Name: "agenda", URL: src.URL})
		if err != nil {
			return nil, fmt.Errorf("agenda: %w", err)
		}
		return fromCalendar(src, f.Body)

	case src.File != "":
		body, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("agenda: read %s: %w", src.File, err)
		}
		switch strings.ToLower(filepath.Ext(src.File)) {
		case ".ics", ".ical":
			return fromCalendar(src, body)
		case ".json", ".jsonc":
			return decodeJSON(body)
		case ".yaml", ".yml":
			return decodeYAML(body)
		default:
			return nil, fmt.Errorf("agenda: %s: unsupported file type", src.File)
		}

	default:
		return Default()
	}
}

// Default returns the built-in two-day symposium timetable.
func Default() (*Store, error) {
	return decodeYAML(defaultAgenda)
}

func decodeYAML(body []byte) (*Store, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("agenda: decode yaml: %w", err)
	}
	return fromFile(f)
}

// decodeJSON accepts JSON with comments and trailing commas.
func decodeJSON(body []byte) (*Store, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("agenda: decode json: %w", err)
	}
	return fromFile(f)
}

func fromFile(f File) (*Store, error) {
	if len(f.Days) == 0 {
		return nil, errors.New("agenda: file defines no days")
	}
	return NewStore(f.Name, f.Days)
}

func fromCalendar(src Source, body []byte) (*Store, error) {
	if len(src.Days) == 0 {
		return nil, errors.New("agenda: calendar agendas need conference days in the config")
	}
	loc := src.Location
	if loc == nil {
		loc = time.Local
	}

	events, err := ics.Parse("agenda", body)
	if err != nil {
		return nil, fmt.Errorf("agenda: %w", err)
	}

	first, last := src.Days[0].Date, src.Days[0].Date
	for _, d := range src.Days[1:] {
		if d.Date.Before(first) {
			first = d.Date
		}
		if d.Date.After(last) {
			last = d.Date
		}
	}
	occs, err := ics.Expand(events, ics.Window{
		Location: loc,
		From:     first.In(loc),
		To:       last.In(loc).AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("agenda: %w", err)
	}

	days := FromOccurrences(occs, src.Days, loc)
	n := 0
	for _, d := range days {
		n += len(d.Entries)
	}
	appLog.Info("agenda loaded from calendar", "events", len(events), "entries", n, "days", len(days))
	return NewStore(src.Name, days)
}
