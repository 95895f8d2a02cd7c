// Package search maintains the full-text index used by the user-search API.
package search

import (
	"context"
	"log/slog"
	"strings"

	"chat-rooms/repositories"

	"github.com/blugelabs/bluge"
)

// UserIndex indexes accounts by username and email. Writes happen at
// registration time; searches open a point-in-time reader per query.
type UserIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewUserIndex(writer *bluge.Writer, log *slog.Logger) *UserIndex {
	return &UserIndex{writer: writer, log: log}
}

type UserHit struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Index upserts one account document, keyed by user id.
func (i *UserIndex) Index(user repositories.User) error {
	doc := bluge.NewDocument(user.ID)
	doc.AddField(bluge.NewTextField("username", user.Username).StoreValue())
	doc.AddField(bluge.NewTextField("email", user.Email).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search matches the query against usernames and emails as a substring,
// excluding the calling user, bounded by limit.
func (i *UserIndex) Search(ctx context.Context, query, excludeUserID string, limit int) ([]UserHit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	pattern := "*" + strings.ToLower(query) + "*"
	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewWildcardQuery(pattern).SetField("username")).
		AddShould(bluge.NewWildcardQuery(pattern).SetField("email"))

	// One extra slot in case the caller matches their own query.
	request := bluge.NewTopNSearch(limit+1, q)
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []UserHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit UserHit
		if err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case "username":
				hit.Username = string(value)
			case "email":
				hit.Email = string(value)
			}
			return true
		}); err != nil {
			return nil, err
		}

		if hit.ID == excludeUserID {
			continue
		}
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}
