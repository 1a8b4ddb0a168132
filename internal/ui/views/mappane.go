package views

import (
	"fmt"
	"math"
	"strings"
)

// renderMapPane projects the marker set onto a character grid around the
// viewport center. Rendering fidelity is not the point; the pane exists
// so the marker lifecycle is visible and navigable.
func (r *Renderer) renderMapPane(f Frame, width, height int) string {
	style := mapBorderStyle
	if f.MapFocused {
		style = mapFocusedBorderStyle
	}

	innerW := width - 2
	innerH := height - 2
	if innerW < 10 || innerH < 3 {
		return ""
	}

	if f.MapState.MapError {
		return style.Width(innerW).Height(innerH).Render(
			mapDisabledStyle.Render("map unavailable"))
	}
	if f.Map == nil {
		return style.Width(innerW).Height(innerH).Render(
			mapDisabledStyle.Render("loading map…"))
	}

	grid := make([][]rune, innerH)
	for y := range grid {
		grid[y] = make([]rune, innerW)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	center := f.Map.Center()
	// Width of the viewport in degrees of longitude, halved per zoom step.
	lonSpan := 360 / math.Pow(2, float64(f.Map.Zoom()))
	lonPerCell := lonSpan / float64(innerW)
	// Terminal cells are roughly twice as tall as wide.
	latPerCell := lonPerCell * 2

	type placed struct {
		x, y   int
		cursor bool
	}
	var callout string
	marks := f.Map.Placemarks()
	cells := make([]placed, 0, len(marks))
	for i, mark := range marks {
		dx := (mark.Coords.Longitude - center.Longitude) / lonPerCell
		dy := (center.Latitude - mark.Coords.Latitude) / latPerCell
		x := innerW/2 + int(math.Round(dx))
		y := innerH/2 + int(math.Round(dy))
		if x < 0 || x >= innerW || y < 0 || y >= innerH {
			continue
		}
		cells = append(cells, placed{x: x, y: y, cursor: i == f.MapState.Cursor})
		if mark.CalloutOpen() {
			callout = fmt.Sprintf("%s %s", mark.Code, mark.Hint)
		}
	}

	var b strings.Builder
	for y := 0; y < innerH; y++ {
		if y > 0 {
			b.WriteString("\n")
		}
		x := 0
		for x < innerW {
			drawn := false
			for _, c := range cells {
				if c.y == y && c.x == x {
					if c.cursor {
						b.WriteString(markerCursorStyle.Render("◉"))
					} else {
						b.WriteString(markerStyle.Render("●"))
					}
					drawn = true
					break
				}
			}
			if !drawn {
				b.WriteRune(grid[y][x])
			}
			x++
		}
	}

	pane := b.String()
	if callout != "" {
		lines := strings.SplitN(pane, "\n", 2)
		lines[0] = calloutStyle.Render(truncate(callout, innerW))
		pane = strings.Join(lines, "\n")
	}

	return style.Width(innerW).Render(pane)
}
