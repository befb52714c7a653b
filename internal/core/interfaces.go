package core

import (
	"context"
	"time"

	"tutorgate-backend-go/internal/models"
)

// Gatekeeper resolves a user id to an authorization decision.
type Gatekeeper interface {
	// Authorize returns the normalized profile of an approved user (or any
	// admin). Pending and banned users both get ErrForbidden.
	Authorize(ctx context.Context, userID string) (*models.UserProfile, error)
	// Invalidate drops the cached profile so the next Authorize reads the store.
	Invalidate(ctx context.Context, userID string) error
}

// QuotaAccountant bounds usage per user per calendar day.
type QuotaAccountant interface {
	Charge(ctx context.Context, userID string, profile *models.UserProfile, day string) (QuotaDecision, error)
	Peek(ctx context.Context, userID string, profile *models.UserProfile, day string) (QuotaDecision, error)
	// Day returns the ledger day for t.
	Day(t time.Time) string
	Today() string
}

// TurnOrchestrator fans one turn out to its providers.
type TurnOrchestrator interface {
	// Validate checks the turn shape and provider set without calling anyone.
	Validate(turn *models.Turn) error
	Dispatch(ctx context.Context, turn *models.Turn) (map[string]*StreamHandle, error)
}

// TurnService admits and dispatches turns.
type TurnService interface {
	// Submit authorizes, charges and dispatches a turn. The context cancels
	// every provider stream of the turn.
	Submit(ctx context.Context, turn *models.Turn) (map[string]*StreamHandle, QuotaDecision, error)
	// Quota reports the caller's usage without charging.
	Quota(ctx context.Context, userID string) (QuotaDecision, error)
}

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate returns the profile for userID, creating a pending one on
	// first sign-in. The bool reports whether it was created.
	GetOrCreate(ctx context.Context, userID, email, displayName string) (*models.UserProfile, bool, error)
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.UserProfile, error)
}

// ResponseStore persists the final text of a provider stream.
type ResponseStore interface {
	Save(ctx context.Context, resp *models.ProviderResponse) error
}

// Recorder accepts responses for background persistence.
type Recorder interface {
	Record(resp *models.ProviderResponse)
}
