// Package selection is the widget's central state machine: it reconciles
// keystrokes, asynchronous search results, marker picks and externally
// changed record values into one consistent selection state. Every search
// and lookup dispatch is tagged with a monotonically increasing sequence
// number; a completion whose tag is no longer current is discarded, so a
// slow stale response can never clobber fresher state.
package selection

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"pickpoint/internal/directory"
	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/invoke"
	"pickpoint/internal/logging"
)

// ContextFunc supplies the current delivery context for scoping searches.
type ContextFunc func() domain.ContextSnapshot

// Service handles the selection state machine. All methods must be called
// from the UI event loop; completions arrive as domain events and are fed
// back in through the Apply methods.
type Service struct {
	state   *State
	bus     eventbus.EventBus
	dir     directory.Directory
	invoker *invoke.Invoker
	ctxFn   ContextFunc
	limit   int

	searchSeq atomic.Uint64 // tag of the most recently dispatched search
	lookupSeq atomic.Uint64 // tag of the most recently dispatched lookup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new selection service.
func NewService(bus eventbus.EventBus, dir directory.Directory, invoker *invoke.Invoker, ctxFn ContextFunc, limit int) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		state:   newState(),
		bus:     bus,
		dir:     dir,
		invoker: invoker,
		ctxFn:   ctxFn,
		limit:   limit,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the live state. Callers must not mutate it.
func (s *Service) State() *State {
	return s.state
}

// OnInput updates the query text and drives the typing transitions: empty
// and sub-threshold queries clear the result set, longer ones schedule a
// debounced search. The bound point is untouched; clearing it is an
// explicit separate action.
func (s *Service) OnInput(text string) {
	s.state.QueryText = text
	s.state.Err = ""

	if len([]rune(text)) < MinQueryLen {
		s.state.Results = nil
		s.state.DropdownVisible = false
		s.state.ActiveIndex = -1
		s.state.Loading = false
		// Invalidate any in-flight search so its late response is stale.
		s.searchSeq.Add(1)
		return
	}

	// Show the dropdown optimistically; results replace the old set when
	// the debounced search lands. The tag is allocated now, not when the
	// timer fires: if the query shrinks below the threshold before then,
	// the invalidating bump above makes this run's completion stale.
	s.state.DropdownVisible = true
	s.state.Loading = true
	seq := s.searchSeq.Add(1)
	s.invoker.Schedule(func() {
		s.dispatchSearch(text, seq)
	})
}

// dispatchSearch launches one directory search under a tag allocated at
// schedule time. Runs on the debounce timer goroutine.
func (s *Service) dispatchSearch(query string, seq uint64) {
	snap := s.ctxFn()
	go func() {
		points, err := s.dir.SearchPoints(s.ctx, snap.CityName, snap.CountryCode, query, s.limit)
		if err != nil {
			s.bus.Publish(eventbus.SearchFailedEvent{Seq: seq, Query: query, Err: err})
			return
		}
		s.bus.Publish(eventbus.SearchCompletedEvent{Seq: seq, Query: query, Points: points})
	}()
}

// ApplySearchCompleted replaces the result set and reports whether the
// response was applied; stale responses are discarded.
func (s *Service) ApplySearchCompleted(ev eventbus.SearchCompletedEvent) bool {
	if ev.Seq != s.searchSeq.Load() {
		logging.GetLogger().Debug("discarding stale search response",
			zap.Uint64("seq", ev.Seq), zap.String("query", ev.Query))
		return false
	}
	s.state.Loading = false
	s.state.Err = ""
	s.state.Results = ev.Points
	s.state.ActiveIndex = -1
	s.state.DropdownVisible = len(ev.Points) > 0
	return true
}

// ApplySearchFailed clears the affected results and records the error.
// Failure is non-fatal; the widget stays interactive.
func (s *Service) ApplySearchFailed(ev eventbus.SearchFailedEvent) {
	if ev.Seq != s.searchSeq.Load() {
		return
	}
	s.state.Loading = false
	s.state.Results = nil
	s.state.DropdownVisible = false
	s.state.ActiveIndex = -1
	s.state.Err = domain.ErrSearchFailed
	s.bus.Publish(eventbus.ErrorEvent{
		Kind:    domain.ErrSearchFailed,
		Message: "Point search failed",
		Err:     ev.Err,
	})
}

// Navigate moves the highlight through the dropdown with wraparound.
// Valid only while the dropdown is visible and non-empty.
func (s *Service) Navigate(direction int) {
	n := len(s.state.Results)
	if !s.state.DropdownVisible || n == 0 {
		return
	}
	s.state.ActiveIndex = (s.state.ActiveIndex + direction + n) % n
}

// CommitActive binds the highlighted suggestion. No-op when nothing is
// highlighted.
func (s *Service) CommitActive() {
	if s.state.ActiveIndex < 0 || s.state.ActiveIndex >= len(s.state.Results) {
		return
	}
	s.CommitPoint(s.state.Results[s.state.ActiveIndex])
}

// CommitPoint binds an explicit point (list click, marker click) and emits
// the persistence side effect.
func (s *Service) CommitPoint(p domain.Point) {
	s.bind(p, true)
}

// bind runs the shared binding logic. persist is false when the binding
// mirrors an external value change, to avoid the write-back feedback loop.
func (s *Service) bind(p domain.Point, persist bool) {
	id := p.ID
	s.state.BoundPointID = &id
	s.state.DisplaySummary = p.Summary()
	s.state.QueryText = p.Summary()
	s.state.DropdownVisible = false
	s.state.ActiveIndex = -1
	s.state.Loading = false
	s.state.Err = ""

	s.bus.Publish(eventbus.PointBoundEvent{Point: p, Summary: p.Summary(), Persist: persist})
}

// Dismiss hides the dropdown without touching the bound value or query.
func (s *Service) Dismiss() {
	s.state.DropdownVisible = false
	s.state.ActiveIndex = -1
}

// Clear resets the query and unbinds the selection, emitting the clear
// side effect.
func (s *Service) Clear() {
	s.reset()
	s.bus.Publish(eventbus.SelectionClearedEvent{Persist: true})
}

// ExternalValueChanged mirrors a record value that changed from outside:
// a present id is looked up and bound without re-persisting; an absent one
// clears without re-persisting.
func (s *Service) ExternalValueChanged(id *domain.PointID) {
	if id == nil {
		s.reset()
		s.bus.Publish(eventbus.SelectionClearedEvent{Persist: false})
		return
	}
	if s.state.BoundPointID != nil && *s.state.BoundPointID == *id {
		return
	}

	seq := s.lookupSeq.Add(1)
	lookupID := *id
	s.state.Loading = true
	go func() {
		point, err := s.dir.FetchPointByID(s.ctx, lookupID)
		if err != nil {
			s.bus.Publish(eventbus.LookupFailedEvent{Seq: seq, ID: lookupID, Err: err})
			return
		}
		s.bus.Publish(eventbus.LookupCompletedEvent{Seq: seq, ID: lookupID, Point: point})
	}()
}

// ApplyLookupCompleted binds the fetched point, unless the response is
// stale or the directory no longer knows the id.
func (s *Service) ApplyLookupCompleted(ev eventbus.LookupCompletedEvent) {
	if ev.Seq != s.lookupSeq.Load() {
		return
	}
	s.state.Loading = false
	if ev.Point == nil {
		s.state.Err = domain.ErrLookupFailed
		s.bus.Publish(eventbus.ErrorEvent{
			Kind:    domain.ErrLookupFailed,
			Message: "Persisted point no longer exists in the directory",
		})
		return
	}
	s.bind(*ev.Point, false)
}

// ApplyLookupFailed records a failed by-id fetch.
func (s *Service) ApplyLookupFailed(ev eventbus.LookupFailedEvent) {
	if ev.Seq != s.lookupSeq.Load() {
		return
	}
	s.state.Loading = false
	s.state.Err = domain.ErrLookupFailed
	s.bus.Publish(eventbus.ErrorEvent{
		Kind:    domain.ErrLookupFailed,
		Message: "Point lookup failed",
		Err:     ev.Err,
	})
}

// reset returns the state to idle and unbound.
func (s *Service) reset() {
	s.searchSeq.Add(1)
	s.lookupSeq.Add(1)
	s.state.QueryText = ""
	s.state.Results = nil
	s.state.DropdownVisible = false
	s.state.ActiveIndex = -1
	s.state.BoundPointID = nil
	s.state.DisplaySummary = ""
	s.state.Loading = false
	s.state.Err = ""
}

// Close cancels pending debounced searches and in-flight fetches so they
// cannot mutate state after teardown.
func (s *Service) Close() {
	s.invoker.Stop()
	s.cancel()
	s.searchSeq.Add(1)
	s.lookupSeq.Add(1)
}
