package domain

import (
	"encoding/json"
	"time"
)

// Notification is an inbox entry recorded from a realtime event.
type Notification struct {
	ID          string
	Type        string
	Destination string
	Payload     json.RawMessage
	ReceivedAt  time.Time
	ReadAt      *time.Time
}

// Unread reports whether the entry has not been acknowledged yet.
func (n Notification) Unread() bool { return n.ReadAt == nil }
