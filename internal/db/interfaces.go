package db

import (
	"context"
	"errors"

	"tutorgate-backend-go/internal/models"
)

// Repository errors.
var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// ProfileRepository is the durable Profile Store.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	Update(ctx context.Context, userID string, update models.ProfileUpdate) error
}

// ResponseRepository stores final provider texts.
type ResponseRepository interface {
	Save(ctx context.Context, resp *models.ProviderResponse) error
}
