//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"chat-rooms/domain"

	"github.com/dgraph-io/badger/v4"
)

// IPresenceRepository tracks one record per user. Records are upserted on
// every connect and disconnect and never deleted.
type IPresenceRepository interface {
	SetOnline(userID string, online bool) error
	Get(userID string) (domain.Presence, error)
	GetMany(userIDs []string) (map[string]domain.Presence, error)
}

type PresenceRepository struct {
	db *badger.DB
}

func NewPresenceRepository(db *badger.DB) PresenceRepository {
	return PresenceRepository{db: db}
}

type diskPresence struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

func presenceKey(userID string) []byte {
	return []byte("presence:" + userID)
}

// SetOnline upserts the record and stamps last-seen with the current time.
// Idempotent by construction: the write is a plain overwrite.
func (p PresenceRepository) SetOnline(userID string, online bool) error {
	bytes, err := json.Marshal(diskPresence{Online: online, LastSeen: time.Now().UTC()})
	if err != nil {
		return err
	}
	return storeErr(p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(presenceKey(userID), bytes)
	}))
}

// Get returns the user's presence. A user who never connected is simply
// offline, not an error.
func (p PresenceRepository) Get(userID string) (domain.Presence, error) {
	presence := domain.Presence{UserID: userID}
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(presenceKey(userID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var dp diskPresence
			if err := json.Unmarshal(val, &dp); err != nil {
				return err
			}
			presence.Online = dp.Online
			presence.LastSeen = dp.LastSeen
			return nil
		})
	})
	return presence, storeErr(err)
}

// GetMany resolves presence for a set of users in one read transaction,
// used to annotate room-info snapshots.
func (p PresenceRepository) GetMany(userIDs []string) (map[string]domain.Presence, error) {
	result := make(map[string]domain.Presence, len(userIDs))
	err := p.db.View(func(txn *badger.Txn) error {
		for _, userID := range userIDs {
			presence := domain.Presence{UserID: userID}
			item, err := txn.Get(presenceKey(userID))
			if err == nil {
				if err = item.Value(func(val []byte) error {
					var dp diskPresence
					if err := json.Unmarshal(val, &dp); err != nil {
						return err
					}
					presence.Online = dp.Online
					presence.LastSeen = dp.LastSeen
					return nil
				}); err != nil {
					return err
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			result[userID] = presence
		}
		return nil
	})
	return result, storeErr(err)
}
