package mapsync

import "pickpoint/internal/domain"

// State holds the synchronizer's view state for rendering.
type State struct {
	Ready    bool // SDK loaded and map constructed
	MapError bool // SDK load failed; synchronizer is inert for this mount
	Cursor   int  // marker cursor for keyboard navigation, -1 = none
}

// instruction is a buffered marker replacement waiting for the map to
// finish initializing.
type instruction struct {
	seq    uint64
	points []domain.Point
}
