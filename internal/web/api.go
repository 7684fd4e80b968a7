package web

import (
	"errors"
	"fmt"
	"net/http"

	"confagenda/internal/agenda"
	"confagenda/internal/display"
	"confagenda/internal/kiosk"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
	"confagenda/internal/syncbus"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	d, err := s.pick(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_display", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.Status())
}

// agendaResponse is the JSON shape of /api/agenda.
type agendaResponse struct {
	Conference  string              `json:"conference"`
	Day         string              `json:"day"`
	Date        model.Date          `json:"date"`
	Days        []string            `json:"days"`
	Entries     []model.AgendaEntry `json:"entries"`
	ActiveIndex int                 `json:"current_index"`
}

// handleAgenda returns the entries of a day.
//
// GET /api/agenda?day=Day%202
//   - day: day label, the display's current day when empty
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	d := s.operator()
	store := d.Agenda()

	st := d.Status()
	label := r.URL.Query().Get("day")
	if label == "" {
		label = st.Day
	}
	day, err := store.Day(label)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_day", err.Error())
		return
	}

	resp := agendaResponse{
		Conference:  store.Name(),
		Day:         day.Label,
		Date:        day.Date,
		Days:        store.Days(),
		Entries:     day.Entries,
		ActiveIndex: model.NoEntry,
	}
	if resp.Entries == nil {
		resp.Entries = []model.AgendaEntry{}
	}
	if label == st.Day {
		resp.ActiveIndex = st.ActiveIndex
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgendaICS(w http.ResponseWriter, _ *http.Request) {
	d := s.operator()
	body := agenda.ExportICS(d.Agenda(), d.Location(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agenda.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// syncResponse is the JSON shape of /api/sync.
type syncResponse struct {
	Published *syncbus.Snapshot  `json:"published,omitempty"`
	Received  *syncbus.SyncState `json:"received,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	var resp syncResponse
	for _, d := range s.displays {
		st := d.Status()
		if st.LastPublished != nil {
			resp.Published = st.LastPublished
		}
		if st.Sync != nil {
			resp.Received = st.Sync
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleKiosk(w http.ResponseWriter, r *http.Request) {
	now := s.now()

	s.kioskMu.RLock()
	kc := s.kioskCache
	s.kioskMu.RUnlock()
	if kc != nil && now.Sub(kc.updatedAt) < kioskCacheTTL {
		writeJSON(w, http.StatusOK, kc.power)
		return
	}

	p, err := s.kiosk.Read(r.Context())
	if err != nil {
		appLog.Error("kiosk power read failed", err)
		writeError(w, http.StatusInternalServerError, "kiosk_unavailable", "failed to read kiosk power")
		return
	}

	s.kioskMu.Lock()
	s.kioskCache = &kioskCache{power: p, updatedAt: now}
	s.kioskMu.Unlock()
	writeJSON(w, http.StatusOK, p)
}

// writeControlError maps controller errors to HTTP responses.
func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agenda.ErrUnknownDay):
		writeError(w, http.StatusBadRequest, "unknown_day", err.Error())
	case errors.Is(err, display.ErrIndexRange):
		writeError(w, http.StatusBadRequest, "index_out_of_range", err.Error())
	case errors.Is(err, display.ErrNotManual):
		writeError(w, http.StatusConflict, "not_manual", err.Error())
	case errors.Is(err, display.ErrPrimaryOnly):
		writeError(w, http.StatusConflict, "primary_only", err.Error())
	default:
		appLog.Error("operator command failed", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// respond writes the operator display's status, or the command error.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeControlError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.operator().Status())
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day string `json:"day"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	appLog.Info("operator day override", "day", req.Day, "remote", r.RemoteAddr)
	s.respond(w, s.operator().SetDay(req.Day))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	appLog.Info("operator restart", "remote", r.RemoteAddr)
	var errs []error
	for _, d := range s.displays {
		if err := d.Restart(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Role(), err))
		}
	}
	s.respond(w, errors.Join(errs...))
}

// handleMode sets real-time or manual mode. Without "real_time" it toggles.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RealTime *bool `json:"real_time"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d := s.operator()
	if req.RealTime == nil {
		_, err := d.ToggleMode()
		s.respond(w, err)
		return
	}
	s.respond(w, d.SetRealTime(*req.RealTime))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		Index  int    `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d := s.operator()
	var err error
	switch req.Action {
	case "next":
		err = d.Next()
	case "previous", "prev":
		err = d.Previous()
	case "jump":
		err = d.Jump(req.Index)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	s.respond(w, err)
}

func (s *Server) handlePreviewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	d := s.operator()
	switch req.Action {
	case "start":
		s.respond(w, d.StartPreview())
	case "stop":
		s.respond(w, d.StopPreview())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown action %q", req.Action))
	}
}

type visibleRequest struct {
	Visible *bool `json:"visible"`
}

func (s *Server) decodeVisible(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req visibleRequest
	if !decodeBody(w, r, &req) {
		return false, false
	}
	if req.Visible == nil {
		writeError(w, http.StatusBadRequest, "bad_request", `"visible" is required`)
		return false, false
	}
	return *req.Visible, true
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	visible, ok := s.decodeVisible(w, r)
	if !ok {
		return
	}
	for _, d := range s.displays {
		d.SetVisible(visible)
	}
	s.respond(w, nil)
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	visible, ok := s.decodeVisible(w, r)
	if !ok {
		return
	}
	for _, d := range s.displays {
		d.SetControlsVisible(visible)
	}
	s.respond(w, nil)
}

// cachedPower returns the last kiosk reading without touching the reader.
func (s *Server) cachedPower() (kiosk.Power, bool) {
	s.kioskMu.RLock()
	defer s.kioskMu.RUnlock()
	if s.kioskCache == nil {
		return kiosk.Power{}, false
	}
	return s.kioskCache.power, true
}
