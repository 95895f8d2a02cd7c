//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/moderation"
	"chat-rooms/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IChatService backs the per-connection session: admission, registry
// membership, presence, snapshots, and the dispatching of inbound events
// into persistence and fan-out.
type IChatService interface {
	Admit(ident domain.Identity, roomID domain.RoomID) error
	Register(roomID domain.RoomID, connID string, sink contract.EventSink)
	Unregister(roomID domain.RoomID, connID string)
	SetPresence(userID string, online bool) error
	RoomInfo(roomID domain.RoomID) (event.RoomInfo, error)
	RecentMessages(roomID domain.RoomID, limit int) (event.RecentMessages, error)
	PostMessage(ctx context.Context, ident domain.Identity, roomID domain.RoomID, content string) error
	Typing(ctx context.Context, ident domain.Identity, roomID domain.RoomID, typing bool)
	MarkRead(ctx context.Context, ident domain.Identity, roomID domain.RoomID, messageID string) error
	AnnounceJoin(ctx context.Context, ident domain.Identity, roomID domain.RoomID)
	AnnounceLeave(ctx context.Context, ident domain.Identity, roomID domain.RoomID)
}

type ChatService struct {
	log       *slog.Logger
	registry  contract.IRegistry
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	users     repositories.IUserRepository
	presence  repositories.IPresenceRepository
	moderator moderation.Moderator
}

func NewChatService(log *slog.Logger, registry contract.IRegistry,
	rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	users repositories.IUserRepository, presence repositories.IPresenceRepository,
	moderator moderation.Moderator) *ChatService {
	return &ChatService{
		log:       log,
		registry:  registry,
		rooms:     rooms,
		messages:  messages,
		users:     users,
		presence:  presence,
		moderator: moderator,
	}
}

// Admit gates a verified identity against the room's member set, the sole
// authorization boundary. Membership is checked at admission time only;
// later membership changes never evict an already active session.
func (s *ChatService) Admit(ident domain.Identity, roomID domain.RoomID) error {
	ok, err := s.rooms.IsMember(roomID, ident.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrForbidden
	}
	return nil
}

func (s *ChatService) Register(roomID domain.RoomID, connID string, sink contract.EventSink) {
	s.registry.Join(roomID, connID, sink)
}

func (s *ChatService) Unregister(roomID domain.RoomID, connID string) {
	s.registry.Leave(roomID, connID)
}

func (s *ChatService) SetPresence(userID string, online bool) error {
	return s.presence.SetOnline(userID, online)
}

// RoomInfo assembles the member snapshot, annotated with presence. Callers
// set their own presence before requesting the snapshot, so a connection
// always sees itself online in its own room info.
func (s *ChatService) RoomInfo(roomID domain.RoomID) (event.RoomInfo, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return event.RoomInfo{}, err
	}

	accounts, err := s.users.GetUsersByID(room.Members)
	if err != nil {
		return event.RoomInfo{}, err
	}
	statuses, err := s.presence.GetMany(room.Members)
	if err != nil {
		return event.RoomInfo{}, err
	}

	return event.RoomInfo{
		Type: event.RoomInfoType,
		Room: event.RoomSnapshot{
			RoomID:   string(room.ID),
			RoomName: room.Name,
			RoomType: string(room.Kind),
			Participants: lo.Map(room.Members, func(userID string, _ int) event.Participant {
				username := userID
				if account, ok := accounts[userID]; ok {
					username = account.Username
				}
				return event.Participant{
					ID:       userID,
					Username: username,
					IsOnline: statuses[userID].Online,
				}
			}),
		},
	}, nil
}

func (s *ChatService) RecentMessages(roomID domain.RoomID, limit int) (event.RecentMessages, error) {
	messages, err := s.messages.Recent(roomID, limit)
	if err != nil {
		return event.RecentMessages{}, err
	}
	return event.NewRecentMessages(messages), nil
}

// PostMessage censors, persists, then broadcasts, in that order. The message
// is durable before any peer can observe the broadcast, so a reader reacting
// to the event can always fetch it from the store. A persistence failure
// aborts the operation: peers never see a broadcast for a message that was
// not stored.
func (s *ChatService) PostMessage(ctx context.Context, ident domain.Identity, roomID domain.RoomID, content string) error {
	censored := s.moderator.Censor(content)

	message, err := s.messages.Append(roomID, ident, censored)
	if err != nil {
		return err
	}

	s.registry.Broadcast(ctx, roomID, event.NewChatMessage(message))
	return nil
}

// Typing indicators are transient: no persistence, broadcast only.
func (s *ChatService) Typing(ctx context.Context, ident domain.Identity, roomID domain.RoomID, typing bool) {
	s.registry.Broadcast(ctx, roomID, event.NewUserTyping(ident, typing))
}

// MarkRead records the receipt first, then tells the room. Same
// store-before-broadcast ordering as PostMessage.
func (s *ChatService) MarkRead(ctx context.Context, ident domain.Identity, roomID domain.RoomID, messageID string) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return errors.ErrMessageNotFound
	}
	if err = s.messages.MarkRead(id, ident.UserID); err != nil {
		return err
	}

	s.registry.Broadcast(ctx, roomID, event.NewReadReceipt(messageID, ident))
	return nil
}

func (s *ChatService) AnnounceJoin(ctx context.Context, ident domain.Identity, roomID domain.RoomID) {
	s.registry.Broadcast(ctx, roomID, event.NewUserJoined(ident))
}

func (s *ChatService) AnnounceLeave(ctx context.Context, ident domain.Identity, roomID domain.RoomID) {
	s.registry.Broadcast(ctx, roomID, event.NewUserLeft(ident))
}
