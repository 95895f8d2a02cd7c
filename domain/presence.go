package domain

import "time"

// Presence is one record per user, never deleted, updated on every
// connect (online) and disconnect (offline + last seen).
type Presence struct {
	UserID   string
	Online   bool
	LastSeen time.Time
}
