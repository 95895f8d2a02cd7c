//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/domain"
	"chat-rooms/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Append(roomID domain.RoomID, sender domain.Identity, content string) (domain.Message, error)
	MarkRead(messageID uuid.UUID, userID string) error
	Recent(roomID domain.RoomID, limit int) ([]domain.Message, error)
	History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	UnreadCount(roomID domain.RoomID, userID string) (int, error)
	UnreadIDs(roomID domain.RoomID, userID string) ([]uuid.UUID, error)
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	pageSize *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, pageSize *int) MessageRepository {
	return MessageRepository{db: db, log: log, pageSize: pageSize}
}

// diskMessage is the storage-level representation of a message.
type diskMessage struct {
	ID       uuid.UUID     `json:"id"`
	Room     domain.RoomID `json:"room"`
	SenderID string        `json:"sender_id"`
	Sender   string        `json:"sender"`
	Content  string        `json:"content"`
	At       time.Time     `json:"at"`
	ReadBy   []string      `json:"read_by"`
	Edited   bool          `json:"edited"`
	EditedAt *time.Time    `json:"edited_at,omitempty"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(roomID domain.RoomID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomID, at.UnixNano(), id))
}

// messageIndexKey maps a message id back to its primary key, so read
// receipts can locate a message without knowing its timestamp.
func messageIndexKey(id uuid.UUID) []byte {
	return []byte("msgidx:" + id.String())
}

// Append persists a new message with a server-assigned id and timestamp.
// The room must exist; the whole write is one transaction, so the message
// and its id index become visible together.
func (m MessageRepository) Append(roomID domain.RoomID, sender domain.Identity, content string) (domain.Message, error) {
	dm := diskMessage{
		ID:       uuid.New(),
		Room:     roomID,
		SenderID: sender.UserID,
		Sender:   sender.Username,
		Content:  content,
		At:       time.Now().UTC(),
	}
	bytes, err := json.Marshal(dm)
	if err != nil {
		return domain.Message{}, err
	}

	key := messageKey(roomID, dm.At, dm.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(roomID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrRoomNotFound
			}
			return err
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(dm.ID), key)
	})
	if err != nil {
		return domain.Message{}, storeErr(err)
	}
	return toMessage(dm), nil
}

// MarkRead adds the user to the message's read-by set. Idempotent: marking
// twice leaves the set with the user exactly once.
func (m MessageRepository) MarkRead(messageID uuid.UUID, userID string) error {
	return storeErr(m.db.Update(func(txn *badger.Txn) error {
		idx, err := txn.Get(messageIndexKey(messageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrMessageNotFound
			}
			return err
		}
		var key []byte
		if key, err = idx.ValueCopy(nil); err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrMessageNotFound
			}
			return err
		}
		var dm diskMessage
		if err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		}); err != nil {
			return err
		}

		if lo.Contains(dm.ReadBy, userID) {
			return nil
		}
		dm.ReadBy = append(dm.ReadBy, userID)

		bytes, err := json.Marshal(dm)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	}))
}

// Recent returns the most recent messages for a room, oldest first,
// bounded by limit. Used to seed a freshly admitted connection.
func (m MessageRepository) Recent(roomID domain.RoomID, limit int) ([]domain.Message, error) {
	newestFirst, _, err := m.scanReverse(roomID, nil, limit)
	if err != nil {
		return nil, err
	}
	return lo.Reverse(newestFirst), nil
}

// History returns one page of messages, newest first, plus an opaque cursor
// for the next page. A nil cursor starts from the latest message.
func (m MessageRepository) History(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	limit := 0
	if m.pageSize != nil {
		limit = *m.pageSize
	}
	return m.scanReverse(roomID, cursor, limit)
}

// scanReverse iterates a room's messages from the newest downwards.
// Thanks to the padded timestamp in the key, messages are naturally sorted
// by time; limit <= 0 means unbounded.
func (m MessageRepository) scanReverse(roomID domain.RoomID, cursor *string, limit int) ([]domain.Message, *string, error) {
	var raw [][]byte
	var lastKey string

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			if err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, storeErr(err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, nil, storeErr(err)
		}
		messages = append(messages, toMessage(dm))
	}
	return messages, &lastKey, nil
}

// UnreadCount counts the room's messages whose read-by set lacks the user.
func (m MessageRepository) UnreadCount(roomID domain.RoomID, userID string) (int, error) {
	ids, err := m.UnreadIDs(roomID, userID)
	return len(ids), err
}

// UnreadIDs snapshots the ids of the room's messages not yet read by the
// user. Callers marking them read do so one at a time: mark-all-read is
// best effort over this snapshot, not a single atomic operation.
func (m MessageRepository) UnreadIDs(roomID domain.RoomID, userID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(val, &dm); err != nil {
					return err
				}
				if !lo.Contains(dm.ReadBy, userID) {
					ids = append(ids, dm.ID)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return ids, storeErr(err)
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		RoomID:    dm.Room,
		SenderID:  dm.SenderID,
		Sender:    dm.Sender,
		Content:   dm.Content,
		CreatedAt: dm.At,
		ReadBy:    dm.ReadBy,
		Edited:    dm.Edited,
		EditedAt:  dm.EditedAt,
	}
}
