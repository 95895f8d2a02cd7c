package repositories

import (
	stderrors "errors"
	"fmt"

	"chat-rooms/errors"
)

var sentinels = []error{
	errors.ErrRoomNotFound,
	errors.ErrMessageNotFound,
	errors.ErrUserNotFound,
	errors.ErrUserAlreadyExists,
}

// storeErr classifies a repository failure: domain sentinels pass through
// untouched, anything else is a store availability problem and is wrapped
// so upper layers can map it without inspecting badger internals.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}
