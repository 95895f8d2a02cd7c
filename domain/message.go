package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a chat event. It is immutable once persisted,
// except for the append-only growth of ReadBy.
// Edited and EditedAt are carried for wire compatibility but never set.
type Message struct {
	ID        uuid.UUID
	RoomID    RoomID
	SenderID  string
	Sender    string
	Content   string
	CreatedAt time.Time
	ReadBy    []string
	Edited    bool
	EditedAt  *time.Time
}
