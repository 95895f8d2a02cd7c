//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/repositories"
	"chat-rooms/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const userSearchLimit = 10

// IRoomService is the request/response surface around rooms, history and
// read state. Every operation is gated on the caller's room membership.
type IRoomService interface {
	CreateRoom(ident domain.Identity, name string, kind domain.RoomKind, memberIDs []string) (domain.Room, error)
	ListRooms(ident domain.Identity) ([]domain.Room, error)
	AddParticipant(ident domain.Identity, roomID domain.RoomID, userID string) error
	LeaveRoom(ident domain.Identity, roomID domain.RoomID) error
	History(ident domain.Identity, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	MarkMessageRead(ident domain.Identity, messageID string) error
	UnreadCount(ident domain.Identity, roomID domain.RoomID) (int, error)
	MarkAllRead(ident domain.Identity, roomID domain.RoomID) (int, error)
	SearchUsers(ctx context.Context, ident domain.Identity, query string) ([]search.UserHit, error)
}

type RoomService struct {
	log       *slog.Logger
	rooms     repositories.IRoomRepository
	messages  repositories.IMessageRepository
	users     repositories.IUserRepository
	userIndex *search.UserIndex
}

func NewRoomService(log *slog.Logger, rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	userIndex *search.UserIndex) *RoomService {
	return &RoomService{
		log:       log,
		rooms:     rooms,
		messages:  messages,
		users:     users,
		userIndex: userIndex,
	}
}

// CreateRoom persists a new room with the creator always part of the member
// set, plus any extra members supplied up front.
func (s *RoomService) CreateRoom(ident domain.Identity, name string, kind domain.RoomKind, memberIDs []string) (domain.Room, error) {
	if name == "" || !kind.Valid() {
		return domain.Room{}, errors.ErrInvalidRoom
	}

	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		Kind:      kind,
		Members:   lo.Uniq(append([]string{ident.UserID}, memberIDs...)),
		CreatedBy: ident.UserID,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	if err := s.rooms.Create(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *RoomService) ListRooms(ident domain.Identity) ([]domain.Room, error) {
	return s.rooms.ListForUser(ident.UserID)
}

// AddParticipant grows the member set; only an existing member may invite.
// The change is visible to the very next admission check.
func (s *RoomService) AddParticipant(ident domain.Identity, roomID domain.RoomID, userID string) error {
	if err := s.requireMember(roomID, ident.UserID); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(userID); err != nil {
		return err
	}
	return s.rooms.AddMember(roomID, userID)
}

func (s *RoomService) LeaveRoom(ident domain.Identity, roomID domain.RoomID) error {
	return s.rooms.RemoveMember(roomID, ident.UserID)
}

func (s *RoomService) History(ident domain.Identity, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	if err := s.requireMember(roomID, ident.UserID); err != nil {
		return nil, nil, err
	}
	return s.messages.History(roomID, cursor)
}

func (s *RoomService) MarkMessageRead(ident domain.Identity, messageID string) error {
	id, err := uuid.Parse(messageID)
	if err != nil {
		return errors.ErrMessageNotFound
	}
	return s.messages.MarkRead(id, ident.UserID)
}

func (s *RoomService) UnreadCount(ident domain.Identity, roomID domain.RoomID) (int, error) {
	if err := s.requireMember(roomID, ident.UserID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(roomID, ident.UserID)
}

// MarkAllRead walks a snapshot of the caller's unread messages and marks
// them one at a time. Best effort: messages arriving mid-walk stay unread,
// and a failure partway leaves earlier marks in place.
func (s *RoomService) MarkAllRead(ident domain.Identity, roomID domain.RoomID) (int, error) {
	if err := s.requireMember(roomID, ident.UserID); err != nil {
		return 0, err
	}

	ids, err := s.messages.UnreadIDs(roomID, ident.UserID)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		if err := s.messages.MarkRead(id, ident.UserID); err != nil {
			s.log.Warn("Mark-all-read skipped a message", "message_id", id, "error", err)
			continue
		}
		marked++
	}
	return marked, nil
}

func (s *RoomService) SearchUsers(ctx context.Context, ident domain.Identity, query string) ([]search.UserHit, error) {
	return s.userIndex.Search(ctx, query, ident.UserID, userSearchLimit)
}

func (s *RoomService) requireMember(roomID domain.RoomID, userID string) error {
	ok, err := s.rooms.IsMember(roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrForbidden
	}
	return nil
}
