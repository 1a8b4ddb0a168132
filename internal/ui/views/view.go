package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"pickpoint/internal/mapkit"
	"pickpoint/internal/ui/services/mapsync"
	"pickpoint/internal/ui/services/selection"
)

// DropdownTop is the screen row where the suggestion list starts; the
// query input occupies the single row above it. Mouse hit-testing in the
// model depends on this.
const DropdownTop = 1

// Frame carries everything the renderer needs for one draw.
type Frame struct {
	Width      int
	Height     int
	Input      string
	Selection  *selection.State
	MapState   *mapsync.State
	Map        *mapkit.Map
	MapFocused bool
	Loading    bool
	Spinner    string
	Notice     string
}

// Renderer handles view rendering
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render draws the full widget: query input, suggestion dropdown, map
// pane and status bar.
func (r *Renderer) Render(f Frame) string {
	if f.Width <= 0 || f.Height <= 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(f.Input)
	b.WriteString("\n")

	dropdown := r.renderDropdown(f)
	if dropdown != "" {
		b.WriteString(dropdown)
	}

	usedRows := 1 + dropdownRows(f.Selection)
	mapHeight := f.Height - usedRows - 1 // one row reserved for status
	if mapHeight > 2 {
		b.WriteString(r.renderMapPane(f, f.Width, mapHeight))
		b.WriteString("\n")
	}

	b.WriteString(r.renderStatus(f))
	return b.String()
}

func dropdownRows(st *selection.State) int {
	if !st.DropdownVisible {
		return 0
	}
	return len(st.Results)
}

// renderDropdown draws one row per suggestion, highlighting the active
// index.
func (r *Renderer) renderDropdown(f Frame) string {
	st := f.Selection
	if !st.DropdownVisible {
		return ""
	}

	var b strings.Builder
	for i, p := range st.Results {
		line := fmt.Sprintf("%s - %s", p.Code, p.Name)
		meta := " " + suggestionMetaStyle.Render(p.AddressFull)
		if !p.Mappable() {
			meta += suggestionMetaStyle.Render(" [no map]")
		}
		if i == st.ActiveIndex {
			b.WriteString(activeSuggestionStyle.Render("▸ " + line))
		} else {
			b.WriteString(suggestionStyle.Render("  " + line))
		}
		b.WriteString(truncate(meta, f.Width-len(line)-4))
		b.WriteString("\n")
	}
	return b.String()
}

// renderStatus draws the bottom bar: notice, bound selection and hints.
func (r *Renderer) renderStatus(f Frame) string {
	if f.Notice != "" {
		return noticeStyle.Render(truncate(f.Notice, f.Width))
	}

	var parts []string
	if f.Loading {
		parts = append(parts, f.Spinner+"searching")
	}
	if f.Selection.BoundPointID != nil {
		parts = append(parts, boundStyle.Render("✓ "+f.Selection.DisplaySummary))
	}
	parts = append(parts, statusStyle.Render("tab: map · enter: select · ctrl+x: clear · ctrl+o: details · ctrl+c: quit"))
	return truncate(strings.Join(parts, "  "), f.Width)
}

// truncate clips a rendered line to the given width without breaking
// ANSI escape sequences mid-stream.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
