package identity

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("identity: not found")

// User is a human agent using the softphone. The provider addresses a
// user's browser leg as "client:<user id>".
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	TeamID    string    `json:"team_id,omitempty" db:"team_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Team owns a provider phone number; inbound calls to that number fan out
// to the team's users.
type Team struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Repository is the user/team lookup store.
type Repository interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListTeamUsers(ctx context.Context, teamID string) ([]User, error)
	UpdateUserTeam(ctx context.Context, userID, teamID string) error

	GetTeam(ctx context.Context, id string) (Team, error)
	GetTeamByPhone(ctx context.Context, phoneNumber string) (Team, error)
}
