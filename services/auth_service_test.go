package services

import (
	"testing"

	"chat-rooms/errors"

	"github.com/stretchr/testify/require"
)

const strongPassword = "Sup3r$ecretPass"

func TestAuthService_Register_Then_Verify(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	token, err := h.auth.Register("alice@example.com", "alice", strongPassword)
	req.NoError(err)
	req.NotEmpty(token)

	identity, err := h.auth.Verify(token.String())
	req.NoError(err)
	req.Equal("alice", identity.Username)
	req.NotEmpty(identity.UserID)
}

func TestAuthService_Register_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	_, err := h.auth.Register("alice@example.com", "alice", strongPassword)
	req.NoError(err)

	_, err = h.auth.Register("alice@example.com", "impostor", strongPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAuthService_Register_Weak_Password(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	_, err := h.auth.Register("alice@example.com", "alice", "alllowercasepassword")

	req.Error(err)
}

func TestAuthService_Login(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	_, err := h.auth.Register("alice@example.com", "alice", strongPassword)
	req.NoError(err)

	token, err := h.auth.Login("alice@example.com", strongPassword)
	req.NoError(err)
	req.NotEmpty(token)

	_, err = h.auth.Login("alice@example.com", "wrong-password")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, err = h.auth.Login("ghost@example.com", strongPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestAuthService_Verify_Garbage_Token(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	_, err := h.auth.Verify("not.a.token")

	req.ErrorIs(err, errors.ErrUnauthorized)
}
