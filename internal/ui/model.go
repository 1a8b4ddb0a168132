package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"pickpoint/internal/config"
	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/record"
	"pickpoint/internal/ui/services/contextwatch"
	"pickpoint/internal/ui/services/mapsync"
	"pickpoint/internal/ui/services/selection"
	"pickpoint/internal/ui/views"
)

// focusArea tracks which pane receives navigation keys.
type focusArea int

const (
	focusQuery focusArea = iota
	focusMap
)

const noticeDuration = 4 * time.Second

// Model represents the UI state
type Model struct {
	bus    eventbus.EventBus
	config *config.Config

	selection *selection.Service
	mapSync   *mapsync.Service
	watcher   *contextwatch.Service
	store     *record.Store

	input    textinput.Model
	spin     spinner.Model
	renderer *views.Renderer

	focus    focusArea
	width    int
	height   int
	notice   string
	noticeID int
	quitting bool

	details *DetailOps
}

// NewModel creates a new UI model
func NewModel(bus eventbus.EventBus, cfg *config.Config, sel *selection.Service, ms *mapsync.Service, watcher *contextwatch.Service, store *record.Store) *Model {
	input := textinput.New()
	input.Placeholder = "Search pickup points (min 2 characters)"
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &Model{
		bus:       bus,
		config:    cfg,
		selection: sel,
		mapSync:   ms,
		watcher:   watcher,
		store:     store,
		input:     input,
		spin:      spin,
		renderer:  views.NewRenderer(),
		details:   NewDetailOps(nil),
	}
}

// SetProgram wires the running program in for terminal handover to the
// details pager.
func (m *Model) SetProgram(p *tea.Program) {
	m.details.program = p
}

// Init starts the SDK load and seeds the widget from the order record.
func (m *Model) Init() tea.Cmd {
	m.mapSync.Init()
	m.watcher.OnSnapshot(m.store.Context())
	m.selection.ExternalValueChanged(m.store.ReadCurrentValue())
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case EventMsg:
		return m.handleEvent(msg.Event)

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case detailsPagerMsg:
		if msg.err != nil {
			return m, m.showNotice("Details view failed: " + msg.err.Error())
		}
		return m, nil

	case quitMsg:
		m.quitting = true
		m.teardown()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

// handleKey routes keys: navigation and commit keys drive the state
// machine, everything else falls through to the text input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.selection.State()

	switch msg.String() {
	case "ctrl+c":
		return m, func() tea.Msg { return quitMsg{} }

	case "tab":
		// Focus change dismisses the dropdown, like clicking elsewhere.
		m.selection.Dismiss()
		if m.focus == focusQuery {
			m.focus = focusMap
			m.input.Blur()
		} else {
			m.focus = focusQuery
			m.input.Focus()
		}
		return m, nil

	case "esc":
		if st.DropdownVisible {
			m.selection.Dismiss()
			return m, nil
		}
		if m.focus == focusMap {
			m.focus = focusQuery
			m.input.Focus()
			return m, nil
		}
		return m, nil

	case "up":
		if m.focus == focusQuery && st.DropdownVisible {
			m.selection.Navigate(-1)
		} else if m.focus == focusMap {
			m.mapSync.CursorMove(-1)
		}
		return m, nil

	case "down":
		if m.focus == focusQuery && st.DropdownVisible {
			m.selection.Navigate(1)
		} else if m.focus == focusMap {
			m.mapSync.CursorMove(1)
		}
		return m, nil

	case "enter":
		if m.focus == focusQuery {
			m.selection.CommitActive()
		} else {
			m.mapSync.ClickCursor()
		}
		return m, nil

	case "ctrl+x":
		m.selection.Clear()
		return m, nil

	case "ctrl+o":
		return m, m.showDetails()
	}

	if m.focus != focusQuery {
		return m, nil
	}
	return m.updateInput(msg)
}

// handleMouse implements click-outside dismissal and dropdown clicks.
func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	st := m.selection.State()
	if !st.DropdownVisible {
		return m, nil
	}
	// The dropdown starts right under the input line.
	row := msg.Y - views.DropdownTop
	if row >= 0 && row < len(st.Results) {
		m.selection.CommitPoint(st.Results[row])
		return m, nil
	}
	m.selection.Dismiss()
	return m, nil
}

// updateInput feeds the message to the text input and forwards edits to
// the state machine.
func (m *Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.selection.OnInput(after)
	}
	return m, cmd
}

// handleEvent routes domain events back into the services. Everything
// here runs on the update loop, which is what keeps state mutation
// single-threaded.
func (m *Model) handleEvent(ev eventbus.DomainEvent) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case eventbus.SearchCompletedEvent:
		if m.selection.ApplySearchCompleted(ev) {
			// Fresh search results become the relevant point set.
			m.mapSync.ReplaceMarkers(m.selection.State().Results)
		}

	case eventbus.SearchFailedEvent:
		m.selection.ApplySearchFailed(ev)

	case eventbus.LookupCompletedEvent:
		m.selection.ApplyLookupCompleted(ev)

	case eventbus.LookupFailedEvent:
		m.selection.ApplyLookupFailed(ev)

	case eventbus.PointBoundEvent:
		m.input.SetValue(ev.Summary)
		m.input.CursorEnd()
		if ev.Persist {
			if err := m.store.Update(&domain.BoundValue{ID: ev.Point.ID, DisplayLabel: ev.Summary}); err != nil {
				return m, m.showNotice("Saving selection failed: " + err.Error())
			}
		}
		if ev.Point.Mappable() {
			m.mapSync.ReplaceMarkers([]domain.Point{ev.Point})
			m.mapSync.CenterAndHighlight(ev.Point)
		}

	case eventbus.SelectionClearedEvent:
		m.input.SetValue("")
		if ev.Persist {
			if err := m.store.Update(nil); err != nil {
				return m, m.showNotice("Clearing selection failed: " + err.Error())
			}
		}
		// Fall back to the ambient city listing.
		if ctx := m.watcher.Current(); ctx.CityName != "" {
			m.mapSync.ShowCityListing(ctx.CityName, ctx.CountryCode)
		} else {
			m.mapSync.ClearAmbient()
		}

	case eventbus.ContextChangedEvent:
		m.watcher.ApplyChange(ev)

	case eventbus.AmbientUpdatedEvent:
		m.mapSync.ApplyAmbient(ev)

	case eventbus.GeocodeResolvedEvent:
		m.mapSync.ApplyGeocodeResolved(ev)

	case eventbus.GeocodeFailedEvent:
		m.mapSync.ApplyGeocodeFailed(ev)

	case eventbus.RecordChangedEvent:
		m.watcher.OnSnapshot(ev.Context)
		m.selection.ExternalValueChanged(ev.BoundID)

	case eventbus.MapReadyEvent:
		m.mapSync.ApplyMapReady()

	case eventbus.MapLoadFailedEvent:
		m.mapSync.ApplyMapLoadFailed(ev)

	case eventbus.MarkerPickedEvent:
		m.selection.CommitPoint(ev.Point)

	case eventbus.ErrorEvent:
		return m, m.showNotice(ev.Message)
	}
	return m, nil
}

// showNotice displays a transient status-bar notice.
func (m *Model) showNotice(text string) tea.Cmd {
	m.notice = text
	m.noticeID++
	id := m.noticeID
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

// showDetails opens the full point card in the pager: the bound point
// when the query pane has focus, the cursor marker's point otherwise.
func (m *Model) showDetails() tea.Cmd {
	st := m.selection.State()
	var point *domain.Point
	if m.focus == focusQuery {
		if st.ActiveIndex >= 0 && st.ActiveIndex < len(st.Results) {
			point = &st.Results[st.ActiveIndex]
		}
	} else if mp := m.mapSync.Map(); mp != nil && m.mapSync.State().Cursor >= 0 {
		marks := mp.Placemarks()
		if m.mapSync.State().Cursor < len(marks) {
			code := marks[m.mapSync.State().Cursor].Code
			for i := range st.Results {
				if st.Results[i].Code == code {
					point = &st.Results[i]
					break
				}
			}
		}
	}
	if point == nil {
		return m.showNotice("No point selected for details")
	}
	p := *point
	return func() tea.Msg {
		return detailsPagerMsg{err: m.details.ShowPointDetails(p)}
	}
}

// teardown runs the single exit path: cancel pending debounces, detach
// the record watcher, dispose the map. Nothing may write state after it.
func (m *Model) teardown() {
	m.selection.Close()
	m.watcher.Close()
	m.mapSync.Close()
	m.store.Close()
}

// View renders the widget
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderer.Render(views.Frame{
		Width:      m.width,
		Height:     m.height,
		Input:      m.input.View(),
		Selection:  m.selection.State(),
		MapState:   m.mapSync.State(),
		Map:        m.mapSync.Map(),
		MapFocused: m.focus == focusMap,
		Loading:    m.selection.State().Loading,
		Spinner:    m.spin.View(),
		Notice:     m.notice,
	})
}
