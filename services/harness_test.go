package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/moderation"
	"chat-rooms/repositories"
	"chat-rooms/search"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// fakeRegistry records broadcasts and lets a test observe the exact moment
// an event is fanned out, which is how the store-before-broadcast ordering
// gets asserted.
type fakeRegistry struct {
	broadcasts  []event.DomainEvent
	onBroadcast func(event.DomainEvent)
}

func (f *fakeRegistry) Join(domain.RoomID, string, contract.EventSink) {}
func (f *fakeRegistry) Leave(domain.RoomID, string)                   {}
func (f *fakeRegistry) Gauge() (int, int)                             { return 0, 0 }

func (f *fakeRegistry) Broadcast(_ context.Context, _ domain.RoomID, e event.DomainEvent) {
	if f.onBroadcast != nil {
		f.onBroadcast(e)
	}
	f.broadcasts = append(f.broadcasts, e)
}

type harness struct {
	chat     *ChatService
	room     *RoomService
	auth     IAuthService
	registry *fakeRegistry
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	users    repositories.IUserRepository
	presence repositories.PresenceRepository
	index    *search.UserIndex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	words, err := moderation.DefaultWords()
	req.NoError(err)
	moderator, err := moderation.NewModerator(words, '*')
	req.NoError(err)

	log := slog.Default()
	registry := &fakeRegistry{}
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	users := repositories.NewUserRepository(db)
	presence := repositories.NewPresenceRepository(db)
	index := search.NewUserIndex(writer, log)

	return &harness{
		chat:     NewChatService(log, registry, rooms, messages, users, presence, moderator),
		room:     NewRoomService(log, rooms, messages, users, index),
		auth:     NewAuthService(users, index, time.Hour, log),
		registry: registry,
		rooms:    rooms,
		messages: messages,
		users:    users,
		presence: presence,
		index:    index,
	}
}

// newUser registers an account through the repository and returns its identity.
func (h *harness) newUser(t *testing.T, email, username string) domain.Identity {
	t.Helper()
	user, err := h.users.CreateUser(email, username, "hash")
	require.NoError(t, err)
	require.NoError(t, h.index.Index(user))
	return domain.Identity{UserID: user.ID, Username: user.Username}
}

// newRoom creates a room whose member set is exactly the given identities.
func (h *harness) newRoom(t *testing.T, name string, members ...domain.Identity) domain.Room {
	t.Helper()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	room := domain.Room{
		ID:        domain.RoomID("room-" + name),
		Name:      name,
		Kind:      domain.KindGroup,
		Members:   ids,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	require.NoError(t, h.rooms.Create(room))
	return room
}
