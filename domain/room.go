// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type RoomID string

type RoomKind string

const (
	KindDirect  RoomKind = "direct"
	KindGroup   RoomKind = "group"
	KindChannel RoomKind = "channel"
)

func (k RoomKind) Valid() bool {
	return k == KindDirect || k == KindGroup || k == KindChannel
}

// Room is the authorization boundary of the system: a connection may join
// and receive broadcasts for a room iff its user is in Members at admission time.
type Room struct {
	ID        RoomID
	Name      string
	Kind      RoomKind
	Members   []string
	CreatedBy string
	CreatedAt time.Time
	Active    bool
}

func (r Room) HasMember(userID string) bool {
	return lo.Contains(r.Members, userID)
}
