package eventbus

import (
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"pickpoint/internal/domain"
	"pickpoint/internal/logging"
)

// Re-export domain types for convenience
type DomainEvent = domain.DomainEvent
type EventType = domain.EventType

// Event type constants
const (
	EventSearchCompleted  = domain.EventSearchCompleted
	EventSearchFailed     = domain.EventSearchFailed
	EventLookupCompleted  = domain.EventLookupCompleted
	EventLookupFailed     = domain.EventLookupFailed
	EventPointBound       = domain.EventPointBound
	EventSelectionCleared = domain.EventSelectionCleared
	EventContextChanged   = domain.EventContextChanged
	EventAmbientUpdated   = domain.EventAmbientUpdated
	EventGeocodeResolved  = domain.EventGeocodeResolved
	EventGeocodeFailed    = domain.EventGeocodeFailed
	EventRecordChanged    = domain.EventRecordChanged
	EventMapReady         = domain.EventMapReady
	EventMapLoadFailed    = domain.EventMapLoadFailed
	EventMarkerPicked     = domain.EventMarkerPicked
	EventError            = domain.EventError
	EventConfigLoaded     = domain.EventConfigLoaded
	EventConfigSaved      = domain.EventConfigSaved
)

// Re-export domain event types
type SearchCompletedEvent = domain.SearchCompletedEvent
type SearchFailedEvent = domain.SearchFailedEvent
type LookupCompletedEvent = domain.LookupCompletedEvent
type LookupFailedEvent = domain.LookupFailedEvent
type PointBoundEvent = domain.PointBoundEvent
type SelectionClearedEvent = domain.SelectionClearedEvent
type ContextChangedEvent = domain.ContextChangedEvent
type AmbientUpdatedEvent = domain.AmbientUpdatedEvent
type GeocodeResolvedEvent = domain.GeocodeResolvedEvent
type GeocodeFailedEvent = domain.GeocodeFailedEvent
type RecordChangedEvent = domain.RecordChangedEvent
type MapReadyEvent = domain.MapReadyEvent
type MapLoadFailedEvent = domain.MapLoadFailedEvent
type MarkerPickedEvent = domain.MarkerPickedEvent
type ErrorEvent = domain.ErrorEvent
type ConfigLoadedEvent = domain.ConfigLoadedEvent
type ConfigSavedEvent = domain.ConfigSavedEvent

// EventHandler is a function that handles domain events
type EventHandler func(DomainEvent)

// EventBus is the interface for the event bus
type EventBus interface {
	Publish(event DomainEvent)
	Subscribe(eventType EventType, handler EventHandler) func()
	Close()
}

// subscriber pairs a handler with a registration id so unsubscribe can
// find it again.
type subscriber struct {
	id      uint64
	handler EventHandler
}

// bus is the concrete implementation of EventBus
type bus struct {
	mu        sync.RWMutex
	nextID    uint64
	handlers  map[EventType][]subscriber
	eventChan chan DomainEvent
	wg        sync.WaitGroup
	quit      chan struct{}
	once      sync.Once
}

// New creates a new event bus
func New() EventBus {
	b := &bus{
		handlers:  make(map[EventType][]subscriber),
		eventChan: make(chan DomainEvent, 256),
		quit:      make(chan struct{}),
	}

	// Start the event dispatcher
	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish publishes an event to all subscribers
func (b *bus) Publish(event DomainEvent) {
	select {
	case b.eventChan <- event:
	case <-b.quit:
		// Bus closed, drop the event
	default:
		// Channel full, log and drop
		logging.GetLogger().Warn("event bus channel full, dropping event",
			zap.String("type", string(event.Type())))
	}
}

// Subscribe subscribes to events of a specific type
// Returns an unsubscribe function
func (b *bus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close shuts the dispatcher down. Events still in flight are discarded;
// Publish after Close is a no-op. Safe to call more than once.
func (b *bus) Close() {
	b.once.Do(func() {
		close(b.quit)
	})
	b.wg.Wait()
}

// dispatch handles event distribution to subscribers
func (b *bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.mu.RLock()
			subs := b.handlers[event.Type()]
			subsCopy := make([]subscriber, len(subs))
			copy(subsCopy, subs)
			b.mu.RUnlock()

			for _, s := range subsCopy {
				func(h EventHandler) {
					defer func() {
						if r := recover(); r != nil {
							logging.GetLogger().Error("event handler panic",
								zap.String("type", string(event.Type())),
								zap.String("stack", string(debug.Stack())))
						}
					}()
					h(event)
				}(s.handler)
			}

		case <-b.quit:
			// Drain remaining events
			for {
				select {
				case <-b.eventChan:
					// Discard event
				default:
					return
				}
			}
		}
	}
}
