package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noborus/ov/oviewer"

	"pickpoint/internal/domain"
)

// DetailOps shows the full point card in a pager
type DetailOps struct {
	program *tea.Program // reference to Bubble Tea program for terminal management
}

// NewDetailOps creates a new details operations instance
func NewDetailOps(program *tea.Program) *DetailOps {
	return &DetailOps{program: program}
}

// ShowPointDetails renders the point card and pages it with ov
func (d *DetailOps) ShowPointDetails(p domain.Point) error {
	if d.program == nil {
		return fmt.Errorf("program not set")
	}

	// Release terminal control to run ov
	if err := d.program.ReleaseTerminal(); err != nil {
		return err
	}

	// Ensure terminal is restored even if ov fails
	defer func() {
		// Small delay to ensure ov has fully exited before restoring terminal
		time.Sleep(100 * time.Millisecond)
		_ = d.program.RestoreTerminal() // Ignore error as we're in defer context
	}()

	reader := strings.NewReader(renderPointCard(p))

	root, err := oviewer.NewRoot(reader)
	if err != nil {
		return err
	}

	// Configure ov to not write on exit (to avoid messing with our screen)
	config := oviewer.NewConfig()
	config.IsWriteOnExit = false
	config.IsWriteOriginal = false
	root.SetConfig(config)

	// Run the oviewer (this will take over the terminal)
	return root.Run()
}

// renderPointCard formats one point's full record as plain text.
func renderPointCard(p domain.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.Summary())
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len(p.Summary())))
	fmt.Fprintf(&b, "Code:     %s\n", p.Code)
	fmt.Fprintf(&b, "Type:     %s\n", p.Type)
	fmt.Fprintf(&b, "City:     %s", p.CityName)
	if p.RegionName != "" {
		fmt.Fprintf(&b, " (%s)", p.RegionName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Address:  %s\n", p.AddressFull)
	if p.WorkTime != "" {
		fmt.Fprintf(&b, "Hours:    %s\n", p.WorkTime)
	}
	if p.Phone != "" {
		fmt.Fprintf(&b, "Phone:    %s\n", p.Phone)
	}
	if p.Coords != nil {
		fmt.Fprintf(&b, "Location: %.6f, %.6f\n", p.Coords.Latitude, p.Coords.Longitude)
	} else {
		b.WriteString("Location: not mapped\n")
	}
	if p.Note != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Note)
	}
	return b.String()
}
