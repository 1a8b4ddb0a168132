package domain

// EventType represents the type of domain event
type EventType string

// Event types
const (
	EventSearchCompleted  EventType = "SearchCompleted"
	EventSearchFailed     EventType = "SearchFailed"
	EventLookupCompleted  EventType = "LookupCompleted"
	EventLookupFailed     EventType = "LookupFailed"
	EventPointBound       EventType = "PointBound"
	EventSelectionCleared EventType = "SelectionCleared"
	EventContextChanged   EventType = "ContextChanged"
	EventAmbientUpdated   EventType = "AmbientUpdated"
	EventGeocodeResolved  EventType = "GeocodeResolved"
	EventGeocodeFailed    EventType = "GeocodeFailed"
	EventRecordChanged    EventType = "RecordChanged"
	EventMapReady         EventType = "MapReady"
	EventMapLoadFailed    EventType = "MapLoadFailed"
	EventMarkerPicked     EventType = "MarkerPicked"
	EventError            EventType = "Error"
	EventConfigLoaded     EventType = "ConfigLoaded"
	EventConfigSaved      EventType = "ConfigSaved"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// SearchCompletedEvent is emitted when a directory search resolves. Seq is
// the dispatch tag used to discard stale responses.
type SearchCompletedEvent struct {
	Seq    uint64
	Query  string
	Points []Point
}

func (e SearchCompletedEvent) Type() EventType { return EventSearchCompleted }

// SearchFailedEvent is emitted when a directory search errors out.
type SearchFailedEvent struct {
	Seq   uint64
	Query string
	Err   error
}

func (e SearchFailedEvent) Type() EventType { return EventSearchFailed }

// LookupCompletedEvent is emitted when a by-id fetch resolves.
type LookupCompletedEvent struct {
	Seq   uint64
	ID    PointID
	Point *Point // nil when the directory has no such point
}

func (e LookupCompletedEvent) Type() EventType { return EventLookupCompleted }

// LookupFailedEvent is emitted when a by-id fetch errors out.
type LookupFailedEvent struct {
	Seq uint64
	ID  PointID
	Err error
}

func (e LookupFailedEvent) Type() EventType { return EventLookupFailed }

// PointBoundEvent is emitted when a point is committed as the selection.
// Persist is false when the binding came from an external value change,
// so no write-back happens (avoids the feedback loop).
type PointBoundEvent struct {
	Point   Point
	Summary string
	Persist bool
}

func (e PointBoundEvent) Type() EventType { return EventPointBound }

// SelectionClearedEvent is emitted when the bound selection is removed.
type SelectionClearedEvent struct {
	Persist bool
}

func (e SelectionClearedEvent) Type() EventType { return EventSelectionCleared }

// ContextChangedEvent is emitted when the delivery city/country changes.
type ContextChangedEvent struct {
	Previous ContextSnapshot
	Current  ContextSnapshot
}

func (e ContextChangedEvent) Type() EventType { return EventContextChanged }

// AmbientUpdatedEvent carries the city-wide point listing for the map.
type AmbientUpdatedEvent struct {
	Seq      uint64
	CityName string
	Points   []Point
}

func (e AmbientUpdatedEvent) Type() EventType { return EventAmbientUpdated }

// GeocodeResolvedEvent carries the resolved center for a city.
type GeocodeResolvedEvent struct {
	Seq      uint64
	CityName string
	Center   Coordinates
}

func (e GeocodeResolvedEvent) Type() EventType { return EventGeocodeResolved }

// GeocodeFailedEvent is emitted when city resolution fails; listing still
// proceeds without recentring.
type GeocodeFailedEvent struct {
	Seq      uint64
	CityName string
	Err      error
}

func (e GeocodeFailedEvent) Type() EventType { return EventGeocodeFailed }

// RecordChangedEvent is emitted when the order record's persisted value
// changes from outside the widget.
type RecordChangedEvent struct {
	BoundID *PointID // nil when the record holds no selection
	Context ContextSnapshot
}

func (e RecordChangedEvent) Type() EventType { return EventRecordChanged }

// MapReadyEvent is emitted once the mapping SDK finished loading.
type MapReadyEvent struct{}

func (e MapReadyEvent) Type() EventType { return EventMapReady }

// MapLoadFailedEvent is emitted when the mapping SDK cannot initialize;
// the map pane stays inert for the rest of the mount.
type MapLoadFailedEvent struct {
	Err error
}

func (e MapLoadFailedEvent) Type() EventType { return EventMapLoadFailed }

// MarkerPickedEvent is emitted when a map marker is activated; it closes
// the loop back into the selection state machine.
type MarkerPickedEvent struct {
	Point Point
}

func (e MarkerPickedEvent) Type() EventType { return EventMarkerPicked }

// ErrorEvent is emitted when a recoverable error occurs.
type ErrorEvent struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e ErrorEvent) Type() EventType { return EventError }

// ConfigLoadedEvent is emitted when configuration is loaded
type ConfigLoadedEvent struct {
	Path string
}

func (e ConfigLoadedEvent) Type() EventType { return EventConfigLoaded }

// ConfigSavedEvent is emitted when configuration is saved
type ConfigSavedEvent struct{}

func (e ConfigSavedEvent) Type() EventType { return EventConfigSaved }
