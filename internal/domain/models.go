package domain

// PointID identifies a pickup point in the directory service.
type PointID string

// PointType distinguishes the kinds of pickup locations the directory serves.
type PointType string

const (
	PointTypePVZ      PointType = "PVZ"
	PointTypePostamat PointType = "POSTAMAT"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Point is an immutable snapshot of a pickup location as returned by the
// directory service. The widget never mutates a Point, only replaces its
// working set.
type Point struct {
	ID          PointID
	Code        string // human short code, unique within the active set
	Name        string
	Type        PointType
	AddressFull string
	CityName    string
	CityCode    string
	RegionName  string
	CountryCode string
	Coords      *Coordinates // nil means "not mappable"
	WorkTime    string
	Phone       string
	Note        string
}

// Mappable reports whether the point carries coordinates.
func (p Point) Mappable() bool {
	return p.Coords != nil
}

// Summary renders the human-readable recap used as the display label and
// committed query text: "<code> - <name> (<address>)".
func (p Point) Summary() string {
	return p.Code + " - " + p.Name + " (" + p.AddressFull + ")"
}

// ContextSnapshot is the externally supplied delivery context read from the
// order record. Changes are detected by value inequality.
type ContextSnapshot struct {
	CityName    string
	CountryCode string
}

// Equal compares two snapshots by value.
func (c ContextSnapshot) Equal(other ContextSnapshot) bool {
	return c.CityName == other.CityName && c.CountryCode == other.CountryCode
}

// ErrorKind classifies the recoverable failures the widget surfaces.
type ErrorKind string

const (
	ErrSearchFailed  ErrorKind = "SearchFailed"
	ErrLookupFailed  ErrorKind = "LookupFailed"
	ErrGeocodeFailed ErrorKind = "GeocodeFailed"
	ErrMapLoadFailed ErrorKind = "MapLoadFailed"
)

// BoundValue is the value written to the persistence collaborator when a
// point is committed.
type BoundValue struct {
	ID           PointID
	DisplayLabel string
}
