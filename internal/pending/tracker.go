// Package pending tracks outbound dial intents between "user clicked call"
// and the provider's first status webhook, which carries no user context.
package pending

import (
	"context"
	"time"
)

// Call is a short-lived record of an outbound dial intent.
type Call struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ToNumber  string    `json:"to_number"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultWindow bounds how long a dial intent stays matchable. An entry
// older than the window is stale and must not attribute a call.
const DefaultWindow = 5 * time.Minute

// Tracker stores and consumes dial intents keyed by destination number.
//
// Consume is destructive: at most one caller ever receives a given entry,
// which prevents duplicate attribution when status webhooks race.
type Tracker interface {
	Create(ctx context.Context, userID, toNumber string) error
	Consume(ctx context.Context, toNumber string) (Call, bool, error)
}
