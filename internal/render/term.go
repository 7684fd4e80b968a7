package render

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"confagenda/internal/display"
	"confagenda/internal/model"
)

// DefaultWidth is the terminal view width in cells.
const DefaultWidth = 72

type termStyles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	active   lipgloss.Style
	listed   lipgloss.Style
	marked   lipgloss.Style
	panel    lipgloss.Style
	errStyle lipgloss.Style
}

func newTermStyles(r *lipgloss.Renderer, width int) termStyles {
	return termStyles{
		title:    r.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		active:   r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		listed:   r.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		marked:   r.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
		panel:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#374151")).Padding(0, 1).Width(width),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
}

// TermRenderer prints each frame to a terminal. The primary display shows
// the day's list, the secondary the current-event detail.
type TermRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles termStyles
	frame  display.Frame
	mark   int
}

// NewTermRenderer writes to out. width <= 0 uses DefaultWidth.
func NewTermRenderer(out io.Writer, width int) *TermRenderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &TermRenderer{
		out:    out,
		styles: newTermStyles(lipgloss.NewRenderer(out), width),
		mark:   model.NoEntry,
	}
}

func (t *TermRenderer) Render(f display.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = f
	if !f.PreEvent {
		t.mark = model.NoEntry
	}
	var body string
	if f.Role == display.RoleSecondary {
		body = t.detail(f)
	} else {
		body = t.list(f)
	}
	_, err := fmt.Fprintln(t.out, t.styles.panel.Render(body))
	return err
}

func (t *TermRenderer) header(f display.Frame) string {
	head := t.styles.title.Render(f.Conference)
	sub := fmt.Sprintf("%s · %s · %s", f.Day, f.Date, f.Clock)
	if f.Mode == display.ModeManual {
		sub += " · manual"
	}
	return lipgloss.JoinVertical(lipgloss.Left, head, t.styles.muted.Render(sub))
}

func (t *TermRenderer) list(f display.Frame) string {
	lines := []string{t.header(f), ""}
	for i, e := range f.Entries {
		row := fmt.Sprintf("%-9s %s", e.Label(), e.Title)
		switch {
		case i == f.ActiveIndex:
			lines = append(lines, t.styles.active.Render("▶ "+row))
		case i == t.mark:
			lines = append(lines, t.styles.marked.Render("★ "+row))
		case slices.Contains(f.ListActive, i):
			lines = append(lines, t.styles.listed.Render("• "+row))
		default:
			lines = append(lines, "  "+row)
		}
	}
	lines = append(lines, "", t.styles.muted.Render(f.Message))
	return strings.Join(lines, "\n")
}

func (t *TermRenderer) detail(f display.Frame) string {
	lines := []string{t.header(f), ""}
	if f.Current != nil {
		lines = append(lines,
			t.styles.active.Render(f.Current.Title),
			t.styles.muted.Render(fmt.Sprintf("%s · %d min", f.Current.Label(), f.Current.DurationMinutes)),
		)
		if f.Current.Description != "" {
			lines = append(lines, f.Current.Description)
		}
	} else {
		lines = append(lines, t.styles.title.Render(f.Message))
	}
	if f.Next != nil && f.MinutesUntilNext >= 0 {
		lines = append(lines, "", t.styles.muted.Render(fmt.Sprintf("Next in %d min: %s", f.MinutesUntilNext, f.Next.Title)))
	}
	return strings.Join(lines, "\n")
}

func (t *TermRenderer) Highlight(i int, e model.AgendaEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mark = i
	fmt.Fprintln(t.out, t.styles.marked.Render(fmt.Sprintf("★ Coming up: %s %s", e.Label(), e.Title)))
}

func (t *TermRenderer) ClearHighlight() {
	t.mu.Lock()
	t.mark = model.NoEntry
	t.mu.Unlock()
}

func (t *TermRenderer) ShowError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.errStyle.Render("! "+msg))
}

func (t *TermRenderer) ShowFatal(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.styles.panel.Render(t.styles.errStyle.Render(msg)))
}
