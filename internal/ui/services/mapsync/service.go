// Package mapsync maintains the marker-per-point invariant between the
// currently relevant point set and the map pane. Marker replacements are
// tagged with a monotonically increasing instruction number allocated at
// dispatch time; an instruction that completes after a newer one is
// discarded instead of overwriting it. If the mapping SDK fails to load,
// the synchronizer goes permanently inert for the mount and the rest of
// the widget keeps working without a map.
package mapsync

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"pickpoint/internal/directory"
	"pickpoint/internal/domain"
	"pickpoint/internal/eventbus"
	"pickpoint/internal/logging"
	"pickpoint/internal/mapkit"
)

// Service handles map marker synchronization. Apply methods and
// instructions run on the UI event loop; only sequence allocation is
// shared with dispatch goroutines.
type Service struct {
	state *State
	bus   eventbus.EventBus
	dir   directory.Directory

	sdkOpts       mapkit.Options
	defaultCenter domain.Coordinates
	defaultZoom   int
	ambientLimit  int

	sdk atomic.Pointer[mapkit.SDK] // written by the load goroutine
	m   *mapkit.Map

	nextInstr   atomic.Uint64
	lastApplied uint64
	buffered    *instruction // latest replacement seen while the map was absent

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new map synchronizer.
func NewService(bus eventbus.EventBus, dir directory.Directory, sdkOpts mapkit.Options, defaultCenter domain.Coordinates, defaultZoom, ambientLimit int) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		state:         &State{Cursor: -1},
		bus:           bus,
		dir:           dir,
		sdkOpts:       sdkOpts,
		defaultCenter: defaultCenter,
		defaultZoom:   defaultZoom,
		ambientLimit:  ambientLimit,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// State returns the live view state. Callers must not mutate it.
func (s *Service) State() *State { return s.state }

// Map returns the underlying map instance, nil until ready.
func (s *Service) Map() *mapkit.Map { return s.m }

// Init starts the one-time SDK load in the background. Completion comes
// back as MapReady or MapLoadFailed.
func (s *Service) Init() {
	go func() {
		sdk, err := mapkit.Load(s.ctx, s.sdkOpts)
		if err != nil {
			s.bus.Publish(eventbus.MapLoadFailedEvent{Err: err})
			return
		}
		s.sdk.Store(sdk)
		s.bus.Publish(eventbus.MapReadyEvent{})
	}()
}

// ApplyMapReady constructs the map and replays the marker instruction
// that arrived while the SDK was still loading.
func (s *Service) ApplyMapReady() {
	sdk := s.sdk.Load()
	if s.state.MapError || s.m != nil || sdk == nil {
		return
	}
	s.m = sdk.NewMap(s.defaultCenter, s.defaultZoom)
	s.state.Ready = true
	if s.buffered != nil {
		s.applyReplace(s.buffered.seq, s.buffered.points)
		s.buffered = nil
	}
}

// ApplyMapLoadFailed disables the map pane for the remainder of the
// mount. Search and selection keep working.
func (s *Service) ApplyMapLoadFailed(ev eventbus.MapLoadFailedEvent) {
	s.state.MapError = true
	s.state.Ready = false
	s.bus.Publish(eventbus.ErrorEvent{
		Kind:    domain.ErrMapLoadFailed,
		Message: "Map is unavailable",
		Err:     ev.Err,
	})
}

// ReplaceMarkers replaces the whole marker set with one marker per
// mappable point, then fits the viewport to the new bounds. Points
// without coordinates stay valid in the suggestion list but never reach
// the map.
func (s *Service) ReplaceMarkers(points []domain.Point) {
	s.applyReplace(s.nextInstr.Add(1), points)
}

// NextSeq allocates an instruction tag for an asynchronous flow that will
// call ApplyAmbient later. Allocate at dispatch time, not completion time.
func (s *Service) NextSeq() uint64 {
	return s.nextInstr.Add(1)
}

// ShowCityListing resolves the city's center and loads its ambient point
// set. Geocode failure skips recentring but the listing still proceeds.
func (s *Service) ShowCityListing(cityName, countryCode string) {
	if s.state.MapError {
		return
	}
	seq := s.NextSeq()
	sdk := s.sdk.Load()
	go func() {
		if sdk != nil {
			coords, err := sdk.Geocode(s.ctx, cityName)
			switch {
			case err != nil:
				s.bus.Publish(eventbus.GeocodeFailedEvent{Seq: seq, CityName: cityName, Err: err})
			case len(coords) == 0:
				s.bus.Publish(eventbus.GeocodeFailedEvent{Seq: seq, CityName: cityName})
			default:
				s.bus.Publish(eventbus.GeocodeResolvedEvent{Seq: seq, CityName: cityName, Center: coords[0]})
			}
		}

		points, err := s.dir.SearchPoints(s.ctx, cityName, countryCode, "", s.ambientLimit)
		if err != nil {
			s.bus.Publish(eventbus.SearchFailedEvent{Seq: seq, Query: "", Err: err})
			return
		}
		s.bus.Publish(eventbus.AmbientUpdatedEvent{Seq: seq, CityName: cityName, Points: points})
	}()
}

// ClearAmbient empties the marker set and recenters on the configured
// default. Used when the contextual city becomes empty.
func (s *Service) ClearAmbient() {
	seq := s.nextInstr.Add(1)
	s.applyReplace(seq, nil)
	if s.m != nil {
		s.m.SetCenter(s.defaultCenter, s.defaultZoom)
	}
}

// ApplyAmbient installs a completed city listing, unless a newer
// instruction already replaced the markers.
func (s *Service) ApplyAmbient(ev eventbus.AmbientUpdatedEvent) {
	s.applyReplace(ev.Seq, ev.Points)
}

// ApplyGeocodeResolved recenters on the city, unless superseded.
func (s *Service) ApplyGeocodeResolved(ev eventbus.GeocodeResolvedEvent) {
	if s.state.MapError || s.m == nil {
		return
	}
	if ev.Seq < s.lastApplied {
		return
	}
	s.m.SetCenter(ev.Center, s.defaultZoom)
}

// ApplyGeocodeFailed surfaces the failure; listing continues regardless.
func (s *Service) ApplyGeocodeFailed(ev eventbus.GeocodeFailedEvent) {
	s.bus.Publish(eventbus.ErrorEvent{
		Kind:    domain.ErrGeocodeFailed,
		Message: "Could not locate city " + ev.CityName,
		Err:     ev.Err,
	})
}

// applyReplace is the single write path for the marker set.
func (s *Service) applyReplace(seq uint64, points []domain.Point) {
	if s.state.MapError {
		return
	}
	if seq <= s.lastApplied {
		logging.GetLogger().Debug("discarding superseded marker instruction",
			zap.Uint64("seq", seq), zap.Uint64("applied", s.lastApplied))
		return
	}
	s.lastApplied = seq

	if s.m == nil {
		// Map still loading: remember only the newest instruction and
		// replay it on ready. No map operations are queued.
		s.buffered = &instruction{seq: seq, points: points}
		return
	}

	s.m.RemoveAll()
	for _, p := range points {
		if !p.Mappable() {
			continue
		}
		point := p
		s.m.Add(&mapkit.Placemark{
			Coords: *p.Coords,
			Code:   p.Code,
			Hint:   p.Name,
			OnClick: func() {
				s.bus.Publish(eventbus.MarkerPickedEvent{Point: point})
			},
		})
	}
	s.m.FitBounds()
	s.clampCursor()
}

// CenterAndHighlight centers on a single point at close zoom and opens
// its callout. A point without coordinates leaves the map untouched.
func (s *Service) CenterAndHighlight(p domain.Point) {
	if s.state.MapError || s.m == nil || !p.Mappable() {
		return
	}
	s.m.SetCenter(*p.Coords, mapkit.CloseZoom)
	s.m.OpenCallout(p.Code)
	s.moveCursorTo(p.Code)
}

// HighlightByCode pans to the marker with the given code without
// replacing the set. No-op if absent.
func (s *Service) HighlightByCode(code string) {
	if s.state.MapError || s.m == nil {
		return
	}
	mark := s.m.Find(code)
	if mark == nil {
		return
	}
	s.m.SetCenter(mark.Coords, s.m.Zoom())
	s.moveCursorTo(code)
}

// CursorMove shifts the keyboard marker cursor with wraparound.
func (s *Service) CursorMove(direction int) {
	if s.m == nil {
		return
	}
	n := len(s.m.Placemarks())
	if n == 0 {
		return
	}
	s.state.Cursor = (s.state.Cursor + direction + n) % n
}

// ClickCursor activates the marker under the cursor, routing the pick
// back into the selection state machine.
func (s *Service) ClickCursor() {
	if s.m == nil || s.state.Cursor < 0 {
		return
	}
	marks := s.m.Placemarks()
	if s.state.Cursor >= len(marks) {
		return
	}
	marks[s.state.Cursor].Click()
}

func (s *Service) moveCursorTo(code string) {
	for i, mark := range s.m.Placemarks() {
		if mark.Code == code {
			s.state.Cursor = i
			return
		}
	}
}

func (s *Service) clampCursor() {
	if s.m == nil || s.state.Cursor >= len(s.m.Placemarks()) {
		s.state.Cursor = -1
	}
}

// Close disposes the map instance and cancels in-flight listing fetches.
func (s *Service) Close() {
	s.cancel()
	if s.m != nil {
		s.m.Destroy()
		s.m = nil
	}
	s.state.Ready = false
}
