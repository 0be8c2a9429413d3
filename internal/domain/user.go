package domain

import (
	"log/slog"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64     // Assigned by the store, immutable
	Username     string    // Case-sensitive, unique
	PasswordHash string    // Self-describing digest, never the plaintext
	CreatedAt    time.Time // Time of registration
}

var _ slog.LogValuer = User{}

// LogValue implements slog.LogValuer. The password digest is never logged.
func (u User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", u.ID),
		slog.String("username", u.Username),
	)
}

// UserResponse is the public representation of a user handed to the rendering layer.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// NewUserResponse converts u into its public representation. A nil user yields nil.
func NewUserResponse(u *User) *UserResponse {
	if u == nil {
		return nil
	}

	return &UserResponse{ID: u.ID, Username: u.Username}
}
