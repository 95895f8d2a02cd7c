//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"chat-rooms/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, username, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id string) (User, error)
	GetUsersByID(ids []string) (map[string]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account.
// The core only ever sees it through domain.Identity.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

// userIDKey maps a user id back to the email key, since login is by email
// but everything else references users by id.
func userIDKey(id string) []byte {
	return []byte("userid:" + id)
}

// CreateUser persists the account and its id index in one transaction.
// The email is the uniqueness boundary.
func (u UserRepository) CreateUser(email, username, hashedPassword string) (User, error) {
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(email), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.ID), []byte(email))
	})
	if err != nil {
		return User{}, storeErr(err)
	}
	return user, nil
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		return getUserByEmail(txn, email, &user)
	})
	if err != nil {
		return User{}, storeErr(err)
	}
	return user, nil
}

func (u UserRepository) GetUserByID(id string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		email, err := resolveEmail(txn, id)
		if err != nil {
			return err
		}
		return getUserByEmail(txn, email, &user)
	})
	if err != nil {
		return User{}, storeErr(err)
	}
	return user, nil
}

// GetUsersByID resolves a batch of ids in a single read transaction.
// Unknown ids are skipped rather than failing the whole snapshot.
func (u UserRepository) GetUsersByID(ids []string) (map[string]User, error) {
	result := make(map[string]User, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			email, err := resolveEmail(txn, id)
			if err != nil {
				if err == errors.ErrUserNotFound {
					continue
				}
				return err
			}
			var user User
			if err := getUserByEmail(txn, email, &user); err != nil {
				if err == errors.ErrUserNotFound {
					continue
				}
				return err
			}
			result[id] = user
		}
		return nil
	})
	return result, storeErr(err)
}

func resolveEmail(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get(userIDKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", errors.ErrUserNotFound
		}
		return "", err
	}
	email, err := item.ValueCopy(nil)
	return string(email), err
}

func getUserByEmail(txn *badger.Txn, email string, user *User) error {
	item, err := txn.Get(userKey(email))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, user)
	})
}
