package selection

import "pickpoint/internal/domain"

// MinQueryLen is the minimum query length that triggers a search.
const MinQueryLen = 2

// State holds the selection state machine's data. It is owned exclusively
// by the Service and mutated only on the UI event loop.
type State struct {
	QueryText       string
	Results         []domain.Point // insertion order = relevance order
	DropdownVisible bool
	ActiveIndex     int // -1 = none, else 0..len(Results)-1
	BoundPointID    *domain.PointID
	DisplaySummary  string
	Loading         bool
	Err             domain.ErrorKind // "" when healthy
}

// newState returns the initial (idle, unbound) state.
func newState() *State {
	return &State{ActiveIndex: -1}
}
