//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"sort"
	"time"

	"chat-rooms/domain"
	"chat-rooms/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// IRoomRepository is the room membership authority. Membership mutations are
// immediately visible to subsequent reads: there is no cache in front of it,
// because admission checks must never act on stale membership.
type IRoomRepository interface {
	Create(room domain.Room) error
	Get(roomID domain.RoomID) (domain.Room, error)
	IsMember(roomID domain.RoomID, userID string) (bool, error)
	ListMembers(roomID domain.RoomID) ([]string, error)
	AddMember(roomID domain.RoomID, userID string) error
	RemoveMember(roomID domain.RoomID, userID string) error
	ListForUser(userID string) ([]domain.Room, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID        domain.RoomID   `json:"id"`
	Name      string          `json:"name"`
	Kind      domain.RoomKind `json:"kind"`
	Members   []string        `json:"members"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	Active    bool            `json:"active"`
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

func (r RoomRepository) Create(room domain.Room) error {
	bytes, err := json.Marshal(fromRoom(room))
	if err != nil {
		return err
	}
	return storeErr(r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), bytes)
	}))
}

func (r RoomRepository) Get(roomID domain.RoomID) (domain.Room, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrRoomNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		})
	})
	if err != nil {
		return domain.Room{}, storeErr(err)
	}
	return toRoom(dr), nil
}

func (r RoomRepository) IsMember(roomID domain.RoomID, userID string) (bool, error) {
	room, err := r.Get(roomID)
	if err != nil {
		return false, err
	}
	return room.HasMember(userID), nil
}

func (r RoomRepository) ListMembers(roomID domain.RoomID) ([]string, error) {
	room, err := r.Get(roomID)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

// AddMember is idempotent: adding an existing member is a no-op, not an error.
func (r RoomRepository) AddMember(roomID domain.RoomID, userID string) error {
	return r.mutateMembers(roomID, func(members []string) []string {
		if lo.Contains(members, userID) {
			return members
		}
		return append(members, userID)
	})
}

// RemoveMember is idempotent: removing an absent member is a no-op.
func (r RoomRepository) RemoveMember(roomID domain.RoomID, userID string) error {
	return r.mutateMembers(roomID, func(members []string) []string {
		return lo.Without(members, userID)
	})
}

// mutateMembers applies a set mutation inside a single transaction, so the
// new member set is visible atomically to the next admission check.
func (r RoomRepository) mutateMembers(roomID domain.RoomID, mutate func([]string) []string) error {
	return storeErr(r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrRoomNotFound
			}
			return err
		}
		var dr diskRoom
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		}); err != nil {
			return err
		}

		dr.Members = mutate(dr.Members)

		bytes, err := json.Marshal(dr)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(roomID), bytes)
	}))
}

// ListForUser scans all rooms and keeps the ones the user belongs to,
// newest first. Room cardinality is small enough that a prefix scan beats
// maintaining a per-user index.
func (r RoomRepository) ListForUser(userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				var dr diskRoom
				if err := json.Unmarshal(val, &dr); err != nil {
					return err
				}
				if lo.Contains(dr.Members, userID) {
					rooms = append(rooms, toRoom(dr))
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func fromRoom(room domain.Room) diskRoom {
	return diskRoom{
		ID:        room.ID,
		Name:      room.Name,
		Kind:      room.Kind,
		Members:   room.Members,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
		Active:    room.Active,
	}
}

func toRoom(dr diskRoom) domain.Room {
	return domain.Room{
		ID:        dr.ID,
		Name:      dr.Name,
		Kind:      dr.Kind,
		Members:   dr.Members,
		CreatedBy: dr.CreatedBy,
		CreatedAt: dr.CreatedAt,
		Active:    dr.Active,
	}
}
