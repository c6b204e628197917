package models

import "time"

// RelayStatus is a point-in-time view of the relay for the status endpoint.
type RelayStatus struct {
	Topic         string
	Endpoint      string
	State         ConnectionState
	Subscribers   int
	Reconnects    int64
	LastError     string
	LastEventAt   time.Time
	EventsRelayed int64
}
