package ui

import (
	"pickpoint/internal/eventbus"
)

// EventMsg wraps a domain event for the UI
type EventMsg struct {
	Event eventbus.DomainEvent
}

// noticeExpiredMsg clears the transient status-bar notice
type noticeExpiredMsg struct {
	id int
}

// detailsPagerMsg contains the result of the point-details pager
type detailsPagerMsg struct {
	err error
}

// quitMsg signals that the application should quit
type quitMsg struct{}
