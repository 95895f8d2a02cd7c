package repositories

import (
	"log/slog"
	"testing"
	"time"

	"chat-rooms/domain"
	"chat-rooms/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedRoom(t *testing.T, db *badger.DB, roomID domain.RoomID, members ...string) {
	t.Helper()
	repo := NewRoomRepository(db)
	require.NoError(t, repo.Create(domain.Room{
		ID:        roomID,
		Name:      "test room",
		Kind:      domain.KindGroup,
		Members:   members,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}))
}

func TestMessageRepository_Append_Then_Recent(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice", "bob")
	repo := NewMessageRepository(db, slog.Default(), nil)
	alice := domain.Identity{UserID: "alice", Username: "Alice"}

	// Given three persisted messages
	for _, content := range []string{"first", "second", "third"} {
		_, err := repo.Append(roomID, alice, content)
		req.NoError(err)
	}

	// When loading the recent window
	messages, err := repo.Recent(roomID, 50)

	// Then all of them come back oldest first
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal([]string{"first", "second", "third"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestMessageRepository_Recent_Honors_The_Limit(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice")
	repo := NewMessageRepository(db, slog.Default(), nil)
	alice := domain.Identity{UserID: "alice", Username: "Alice"}

	for _, content := range []string{"first", "second", "third", "fourth"} {
		_, err := repo.Append(roomID, alice, content)
		req.NoError(err)
	}

	// When the window is smaller than the room's history
	messages, err := repo.Recent(roomID, 2)

	// Then only the newest messages survive, still oldest first
	req.NoError(err)
	req.Equal([]string{"third", "fourth"},
		lo.Map(messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestMessageRepository_Append_Unknown_Room_Fails(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	_, err := repo.Append(domain.RoomID("ghost"), domain.Identity{UserID: "alice"}, "hello")

	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestMessageRepository_Append_Assigns_ID_And_Timestamp(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice")
	repo := NewMessageRepository(db, slog.Default(), nil)

	before := time.Now().UTC()
	message, err := repo.Append(roomID, domain.Identity{UserID: "alice", Username: "Alice"}, "hello")

	req.NoError(err)
	req.NotEqual(uuid.Nil, message.ID)
	req.Equal("alice", message.SenderID)
	req.Equal("Alice", message.Sender)
	req.False(message.CreatedAt.Before(before))
}

func TestMessageRepository_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice", "bob")
	repo := NewMessageRepository(db, slog.Default(), nil)

	message, err := repo.Append(roomID, domain.Identity{UserID: "alice", Username: "Alice"}, "hello")
	req.NoError(err)

	// When marking the same message read twice for the same user
	req.NoError(repo.MarkRead(message.ID, "bob"))
	req.NoError(repo.MarkRead(message.ID, "bob"))

	// Then the reader appears exactly once
	messages, err := repo.Recent(roomID, 1)
	req.NoError(err)
	req.Equal([]string{"bob"}, messages[0].ReadBy)
}

func TestMessageRepository_MarkRead_Unknown_Message_Fails(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	err := repo.MarkRead(uuid.New(), "bob")

	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestMessageRepository_History_Pages_Through_A_Room(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice")
	repo := NewMessageRepository(db, slog.Default(), lo.ToPtr(2))
	alice := domain.Identity{UserID: "alice", Username: "Alice"}

	for _, content := range []string{"one", "two", "three", "four", "five"} {
		_, err := repo.Append(roomID, alice, content)
		req.NoError(err)
	}

	// When paging from the newest message
	page1, cursor, err := repo.History(roomID, nil)
	req.NoError(err)
	req.Equal([]string{"five", "four"},
		lo.Map(page1, func(m domain.Message, _ int) string { return m.Content }))
	req.NotNil(cursor)

	page2, cursor, err := repo.History(roomID, cursor)
	req.NoError(err)
	req.Equal([]string{"three", "two"},
		lo.Map(page2, func(m domain.Message, _ int) string { return m.Content }))

	// Then the last page holds the oldest message
	page3, _, err := repo.History(roomID, cursor)
	req.NoError(err)
	req.Equal([]string{"one"},
		lo.Map(page3, func(m domain.Message, _ int) string { return m.Content }))
}

func TestMessageRepository_UnreadCount_Ignores_Read_Messages(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice", "bob")
	repo := NewMessageRepository(db, slog.Default(), nil)
	alice := domain.Identity{UserID: "alice", Username: "Alice"}

	first, err := repo.Append(roomID, alice, "first")
	req.NoError(err)
	_, err = repo.Append(roomID, alice, "second")
	req.NoError(err)
	_, err = repo.Append(roomID, alice, "third")
	req.NoError(err)

	req.NoError(repo.MarkRead(first.ID, "bob"))

	count, err := repo.UnreadCount(roomID, "bob")

	req.NoError(err)
	req.Equal(2, count)
}

func TestMessageRepository_UnreadIDs_Snapshot(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	roomID := domain.RoomID("room-1")
	seedRoom(t, db, roomID, "alice", "bob")
	repo := NewMessageRepository(db, slog.Default(), nil)

	message, err := repo.Append(roomID, domain.Identity{UserID: "alice", Username: "Alice"}, "hello")
	req.NoError(err)

	ids, err := repo.UnreadIDs(roomID, "bob")
	req.NoError(err)
	req.Equal([]uuid.UUID{message.ID}, ids)

	// Once read, the snapshot no longer includes it
	req.NoError(repo.MarkRead(message.ID, "bob"))
	ids, err = repo.UnreadIDs(roomID, "bob")
	req.NoError(err)
	req.Empty(ids)
}
