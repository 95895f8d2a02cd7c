//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"time"

	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/repositories"
	"chat-rooms/search"
)

// IAuthService is the authentication collaborator: it issues tokens on the
// account surface and resolves them into verified identities at connection
// establishment. Verify has no side effects.
type IAuthService interface {
	Register(email, username, password string) (Token, error)
	Login(email, password string) (Token, error)
	Verify(token string) (domain.Identity, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	userIndex      *search.UserIndex
	tokenDuration  time.Duration
	log            *slog.Logger
}

func NewAuthService(repo repositories.IUserRepository, userIndex *search.UserIndex,
	tokenDuration time.Duration, log *slog.Logger) IAuthService {
	return &AuthService{
		userRepository: repo,
		userIndex:      userIndex,
		tokenDuration:  tokenDuration,
		log:            log,
	}
}

func (s *AuthService) Register(email, username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer to keep the repository unaware
	// of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(email, username, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the email is taken
	}

	// Indexing failures must not roll back the account: the search index is
	// a convenience, the store is the source of truth.
	if err = s.userIndex.Index(user); err != nil {
		s.log.Warn("Failed to index new user", "user_id", user.ID, "error", err)
	}

	return s.issueToken(user)
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		if err == errors.ErrUserNotFound {
			return "", errors.ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// Verify resolves a connection token into a trusted identity, or fails with
// ErrUnauthorized. This must run to completion before any other component
// touches the connection.
func (s *AuthService) Verify(token string) (domain.Identity, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	return claims.Identity(), nil
}

func (s *AuthService) issueToken(user repositories.User) (Token, error) {
	signed, err := auth.GenerateToken(user.ID, user.Username, user.Roles, s.tokenDuration)
	if err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}
	return Token(signed), nil
}
