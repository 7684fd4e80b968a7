package web

import (
	"bytes"
	_ "embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"slices"

	"confagenda/internal/display"
	"confagenda/internal/kiosk"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
	"confagenda/internal/render"
)

//go:embed display.html
var displayHTML string

var displayTemplate = template.Must(template.New("display").Parse(displayHTML))

// displayRefresh is the page's meta refresh in seconds.
const displayRefresh = 5

type displayRow struct {
	Time  string
	Title string
	Class string
}

type displayPage struct {
	Ready      bool
	Refresh    int
	Role       display.Role
	Conference string
	Day        string
	Date       model.Date
	State      model.State
	Message    string
	Clock      string
	Manual     bool
	Error      string
	Fatal      string

	// Detail selects the current-event layout of the secondary screen.
	Detail           bool
	Rows             []displayRow
	Current          *model.AgendaEntry
	Next             *model.AgendaEntry
	MinutesUntilNext int

	Power *kiosk.Power
}

func newDisplayPage(v render.View) displayPage {
	f := v.Frame
	p := displayPage{
		Ready:            v.Ready,
		Refresh:          displayRefresh,
		Role:             f.Role,
		Conference:       f.Conference,
		Day:              f.Day,
		Date:             f.Date,
		State:            f.State,
		Message:          f.Message,
		Clock:            v.Clock,
		Manual:           f.Mode == display.ModeManual,
		Error:            v.Error,
		Fatal:            v.Fatal,
		Detail:           f.Role == display.RoleSecondary,
		Current:          f.Current,
		Next:             f.Next,
		MinutesUntilNext: f.MinutesUntilNext,
	}
	for i, e := range f.Entries {
		row := displayRow{Time: e.Label(), Title: e.Title}
		switch {
		case i == f.ActiveIndex:
			row.Class = "active"
		case i == v.Highlight:
			row.Class = "highlight"
		case slices.Contains(f.ListActive, i):
			row.Class = "listed"
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}

// handleDisplay renders the latest frame of a display as HTML. The root
// element carries data-ready="true" once a frame exists.
//
// GET /display?role=secondary
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	role := display.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = s.operator().Role()
	}
	latest, ok := s.views[role]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_display", "no view for role "+string(role))
		return
	}

	page := newDisplayPage(latest.View())
	if page.Role == "" {
		page.Role = role
	}
	if p, ok := s.cachedPower(); ok {
		page.Power = &p
	}

	var buf bytes.Buffer
	if err := displayTemplate.Execute(&buf, page); err != nil {
		appLog.Error("display page render failed", err, "role", role)
		writeError(w, http.StatusInternalServerError, "internal", "display page failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handlePreviewPNG serves the last capture of the display page.
func (s *Server) handlePreviewPNG(w http.ResponseWriter, r *http.Request) {
	path := ""
	if s.cfg != nil {
		path = s.cfg.Capture.Output
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "no_capture", "capture is not configured")
		return
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "no_capture", "no capture yet")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}
