// Package contextwatch detects changes to the externally supplied
// delivery context and re-triggers the city-scoped ambient listing.
package contextwatch

import (
	"sync"

	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/invoke"
	"pickpoint/internal/ui/services/mapsync"
)

// Service handles context change detection. OnSnapshot and ApplyChange
// run on the UI event loop; the debounce timer only republishes onto the
// bus, so map work stays on the loop. Current is also read from search
// dispatch goroutines, so the snapshot itself is mutex-guarded.
type Service struct {
	bus     eventbus.EventBus
	mapsvc  *mapsync.Service
	invoker *invoke.Invoker

	mu   sync.Mutex
	last domain.ContextSnapshot
}

// NewService creates a new context watcher.
func NewService(bus eventbus.EventBus, mapsvc *mapsync.Service, invoker *invoke.Invoker) *Service {
	return &Service{bus: bus, mapsvc: mapsvc, invoker: invoker}
}

// Current returns the last seen context snapshot. Safe to call from any
// goroutine.
func (s *Service) Current() domain.ContextSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// OnSnapshot compares the snapshot by value against the previous one and,
// on change, schedules a debounced context-change announcement. Repeated
// identical snapshots are ignored.
func (s *Service) OnSnapshot(snap domain.ContextSnapshot) {
	s.mu.Lock()
	if snap.Equal(s.last) {
		s.mu.Unlock()
		return
	}
	prev := s.last
	s.last = snap
	s.mu.Unlock()
	s.invoker.Schedule(func() {
		s.bus.Publish(eventbus.ContextChangedEvent{Previous: prev, Current: snap})
	})
}

// ApplyChange reacts to a settled context change: an empty city clears
// the ambient set and recenters to the default, anything else loads the
// city-wide listing.
func (s *Service) ApplyChange(ev eventbus.ContextChangedEvent) {
	if ev.Current.CityName == "" {
		s.mapsvc.ClearAmbient()
		return
	}
	s.mapsvc.ShowCityListing(ev.Current.CityName, ev.Current.CountryCode)
}

// Close cancels any pending debounced announcement.
func (s *Service) Close() {
	s.invoker.Stop()
}
