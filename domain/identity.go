package domain

// Identity is a verified user identity, resolved from a connection token.
// It is owned by the authentication subsystem and never mutated by the core.
type Identity struct {
	UserID   string
	Username string
}
