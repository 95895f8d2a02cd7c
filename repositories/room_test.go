package repositories

import (
	"testing"
	"time"

	"chat-rooms/domain"
	"chat-rooms/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_Create_Then_Get(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	room := domain.Room{
		ID:        "room-1",
		Name:      "General",
		Kind:      domain.KindGroup,
		Members:   []string{"alice", "bob"},
		CreatedBy: "alice",
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	req.NoError(repo.Create(room))

	got, err := repo.Get(room.ID)
	req.NoError(err)
	req.Equal(room.Name, got.Name)
	req.Equal(room.Kind, got.Kind)
	req.Equal(room.Members, got.Members)
	req.Equal(room.CreatedBy, got.CreatedBy)
}

func TestRoomRepository_Get_Unknown_Room_Fails(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)

	_, err := repo.Get("ghost")

	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_IsMember(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	seedRoom(t, db, "room-1", "alice")

	member, err := repo.IsMember("room-1", "alice")
	req.NoError(err)
	req.True(member)

	member, err = repo.IsMember("room-1", "mallory")
	req.NoError(err)
	req.False(member)
}

func TestRoomRepository_AddMember_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	seedRoom(t, db, "room-1", "alice")

	// When the same user is added twice
	req.NoError(repo.AddMember("room-1", "bob"))
	req.NoError(repo.AddMember("room-1", "bob"))

	// Then the member set holds them exactly once
	members, err := repo.ListMembers("room-1")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)
}

func TestRoomRepository_RemoveMember_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	seedRoom(t, db, "room-1", "alice", "bob")

	req.NoError(repo.RemoveMember("room-1", "bob"))
	req.NoError(repo.RemoveMember("room-1", "bob"))

	members, err := repo.ListMembers("room-1")
	req.NoError(err)
	req.Equal([]string{"alice"}, members)
}

func TestRoomRepository_ListForUser_Newest_First(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	base := time.Now().UTC()

	req.NoError(repo.Create(domain.Room{
		ID: "old", Name: "Old", Kind: domain.KindGroup,
		Members: []string{"alice"}, CreatedAt: base.Add(-time.Hour), Active: true,
	}))
	req.NoError(repo.Create(domain.Room{
		ID: "new", Name: "New", Kind: domain.KindGroup,
		Members: []string{"alice"}, CreatedAt: base, Active: true,
	}))
	req.NoError(repo.Create(domain.Room{
		ID: "other", Name: "Other", Kind: domain.KindGroup,
		Members: []string{"bob"}, CreatedAt: base, Active: true,
	}))

	rooms, err := repo.ListForUser("alice")

	req.NoError(err)
	req.Equal([]domain.RoomID{"new", "old"},
		lo.Map(rooms, func(r domain.Room, _ int) domain.RoomID { return r.ID }))
}
