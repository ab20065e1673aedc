package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
)

var (
	ErrInvalidUsername      = fmt.Errorf("%w: username", occupancy.ErrInvalidInput)
	ErrInvalidPassword      = fmt.Errorf("%w: password", occupancy.ErrInvalidInput)
	ErrInvalidServiceConfig = errors.New("invalid accounts service config")
)

// User is a stored account.
type User struct {
	ID             occupancy.UserID
	Username       string
	DisplayName    string
	PasswordHash   string
	IsAdmin        bool
	CreatedUnixUTC int64
}

// Principal converts the user into the request principal.
func (user User) Principal() occupancy.Principal {
	return occupancy.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
	}
}

// UserInput describes a user to persist.
type UserInput struct {
	Username     string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
}

// Session is a persisted login.
type Session struct {
	ID             string
	UserID         occupancy.UserID
	ExpiresUnixUTC int64
	Revoked        bool
}

// SessionInput describes a session to persist.
type SessionInput struct {
	UserID         occupancy.UserID
	ExpiresUnixUTC int64
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token   string
	Session Session
	User    User
}

// PromotionResult reports the outcome of PromoteUser.
type PromotionResult struct {
	User         User
	AlreadyAdmin bool
}

// Store is the persistence contract used by Service.
type Store interface {
	CreateUser(ctx context.Context, input UserInput) (User, error)
	GetUser(ctx context.Context, userID occupancy.UserID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	PromoteUser(ctx context.Context, userID occupancy.UserID) (bool, error)

	CreateSession(ctx context.Context, input SessionInput) (Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
}
