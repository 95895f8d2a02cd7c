package repositories

import (
	"log/slog"
	"testing"

	"chat-rooms/domain"
	"chat-rooms/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStoreErr_Passes_Domain_Sentinels_Through(t *testing.T) {
	req := require.New(t)

	req.NoError(storeErr(nil))
	req.Equal(errors.ErrRoomNotFound, storeErr(errors.ErrRoomNotFound))
	req.Equal(errors.ErrUserAlreadyExists, storeErr(errors.ErrUserAlreadyExists))
}

func TestRepositories_Surface_Store_Unavailable_When_The_DB_Is_Down(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice", "bob")

	rooms := NewRoomRepository(db)
	messages := NewMessageRepository(db, slog.Default(), nil)
	presence := NewPresenceRepository(db)
	users := NewUserRepository(db)

	// With the store gone, every path reports unavailability instead of a
	// misleading not-found.
	req.NoError(db.Close())

	_, err := messages.Append(roomID, domain.Identity{UserID: "alice", Username: "Alice"}, "hello")
	req.ErrorIs(err, errors.ErrStoreUnavailable)

	err = messages.MarkRead(uuid.New(), "bob")
	req.ErrorIs(err, errors.ErrStoreUnavailable)

	_, err = rooms.Get(roomID)
	req.ErrorIs(err, errors.ErrStoreUnavailable)

	err = rooms.AddMember(roomID, "carol")
	req.ErrorIs(err, errors.ErrStoreUnavailable)

	err = presence.SetOnline("alice", true)
	req.ErrorIs(err, errors.ErrStoreUnavailable)

	_, err = users.GetUserByEmail("alice@example.com")
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
