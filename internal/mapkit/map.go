package mapkit

import "pickpoint/internal/domain"

// CloseZoom is the fixed zoom level used when centring on a single point.
const CloseZoom = 16

// Placemark is one clickable marker on a Map.
type Placemark struct {
	Coords  domain.Coordinates
	Code    string // unique within the map's marker set
	Hint    string
	OnClick func()

	calloutOpen bool
}

// Click fires the marker's click handler, if any.
func (p *Placemark) Click() {
	if p.OnClick != nil {
		p.OnClick()
	}
}

// CalloutOpen reports whether the marker's info callout is showing.
func (p *Placemark) CalloutOpen() bool { return p.calloutOpen }

// Map holds a viewport and a marker collection. It is exclusively owned
// by one mounted widget instance and must only be used from its event
// loop; destroyed maps ignore all further calls.
type Map struct {
	center    domain.Coordinates
	zoom      int
	marks     []*Placemark
	destroyed bool
}

// Center returns the current viewport center.
func (m *Map) Center() domain.Coordinates { return m.center }

// Zoom returns the current zoom level.
func (m *Map) Zoom() int { return m.zoom }

// SetCenter moves the viewport.
func (m *Map) SetCenter(center domain.Coordinates, zoom int) {
	if m.destroyed {
		return
	}
	m.center = center
	if zoom > 0 {
		m.zoom = zoom
	}
}

// Add appends a placemark. Duplicate codes are a caller error; the map
// does not police them.
func (m *Map) Add(p *Placemark) {
	if m.destroyed {
		return
	}
	m.marks = append(m.marks, p)
}

// RemoveAll drops every placemark.
func (m *Map) RemoveAll() {
	if m.destroyed {
		return
	}
	m.marks = nil
}

// Placemarks returns the current marker collection in insertion order.
func (m *Map) Placemarks() []*Placemark { return m.marks }

// Find returns the placemark with the given code, or nil.
func (m *Map) Find(code string) *Placemark {
	for _, p := range m.marks {
		if p.Code == code {
			return p
		}
	}
	return nil
}

// FitBounds recenters the viewport on the bounding box of the current
// markers. No-op when the collection is empty.
func (m *Map) FitBounds() {
	if m.destroyed || len(m.marks) == 0 {
		return
	}
	minLat, maxLat := m.marks[0].Coords.Latitude, m.marks[0].Coords.Latitude
	minLon, maxLon := m.marks[0].Coords.Longitude, m.marks[0].Coords.Longitude
	for _, p := range m.marks[1:] {
		if p.Coords.Latitude < minLat {
			minLat = p.Coords.Latitude
		}
		if p.Coords.Latitude > maxLat {
			maxLat = p.Coords.Latitude
		}
		if p.Coords.Longitude < minLon {
			minLon = p.Coords.Longitude
		}
		if p.Coords.Longitude > maxLon {
			maxLon = p.Coords.Longitude
		}
	}
	m.center = domain.Coordinates{
		Latitude:  (minLat + maxLat) / 2,
		Longitude: (minLon + maxLon) / 2,
	}
	m.zoom = zoomForSpan(maxLat-minLat, maxLon-minLon)
}

// OpenCallout opens the info callout on the marker with the given code
// and closes all others. No-op when the code is absent.
func (m *Map) OpenCallout(code string) {
	if m.destroyed {
		return
	}
	target := m.Find(code)
	if target == nil {
		return
	}
	for _, p := range m.marks {
		p.calloutOpen = p == target
	}
}

// Destroy releases the map; every later call on it is ignored.
func (m *Map) Destroy() {
	m.marks = nil
	m.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (m *Map) Destroyed() bool { return m.destroyed }

// zoomForSpan picks a zoom level that keeps the given degree span in view.
func zoomForSpan(latSpan, lonSpan float64) int {
	span := latSpan
	if lonSpan > span {
		span = lonSpan
	}
	switch {
	case span > 10:
		return 4
	case span > 5:
		return 6
	case span > 1:
		return 8
	case span > 0.3:
		return 10
	case span > 0.05:
		return 12
	default:
		return 14
	}
}
