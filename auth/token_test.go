package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken_Then_Validate(t *testing.T) {
	req := require.New(t)

	// Given a freshly issued token
	token, err := GenerateToken("user-1", "alice", []string{"user"}, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	// When validating it
	claims, err := ValidateToken(token)

	// Then the embedded identity comes back intact
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("alice", claims.Username)
	req.Equal([]string{"user"}, claims.Roles)

	identity := claims.Identity()
	req.Equal("user-1", identity.UserID)
	req.Equal("alice", identity.Username)
}

func TestValidateToken_Expired_Fails(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-1", "alice", []string{"user"}, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestValidateToken_Garbage_Fails(t *testing.T) {
	req := require.New(t)

	_, err := ValidateToken("not.a.token")
	req.Error(err)
}

func TestValidateToken_Tampered_Fails(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-1", "alice", []string{"user"}, time.Hour)
	req.NoError(err)

	_, err = ValidateToken(token + "a")
	req.Error(err)
}
