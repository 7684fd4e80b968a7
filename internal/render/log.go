package render

import (
	"errors"

	"confagenda/internal/display"
	appLog "confagenda/internal/log"
	"confagenda/internal/model"
)

// LogRenderer writes frame transitions to the application log. It is the
// renderer of a headless display.
type LogRenderer struct {
	Name string
}

func (l LogRenderer) Render(f display.Frame) error {
	title := ""
	if f.Current != nil {
		title = f.Current.Title
	}
	appLog.Info("display frame",
		"display", l.name(f.Role),
		"day", f.Day,
		"state", f.State,
		"index", f.ActiveIndex,
		"title", title,
		"message", f.Message,
		"mode", f.Mode,
		"pre_event", f.PreEvent,
	)
	return nil
}

func (l LogRenderer) Highlight(i int, e model.AgendaEntry) {
	appLog.Debug("pre-event highlight", "display", l.Name, "index", i, "time", e.Label(), "title", e.Title)
}

func (l LogRenderer) ClearHighlight() {
	appLog.Debug("pre-event highlight cleared", "display", l.Name)
}

func (l LogRenderer) ShowError(msg string) {
	appLog.Warn("display error shown", "display", l.Name, "message", msg)
}

func (l LogRenderer) ShowFatal(msg string) {
	appLog.Error("display failed", errors.New(msg), "display", l.Name)
}

func (l LogRenderer) name(role display.Role) string {
	if l.Name != "" {
		return l.Name
	}
	return string(role)
}
