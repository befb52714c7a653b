package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tutorgate-backend-go/internal/models"
)

const usersCollection = "users"

type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository returns a ProfileRepository backed by the
// "users" collection. The document id is the Firebase Auth UID.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	return &firestoreProfileRepository{client: client}
}

func (r *firestoreProfileRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	snap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile '%s': %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile '%s': %w", userID, err)
	}

	var p models.UserProfile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile '%s': %w", userID, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

func (r *firestoreProfileRepository) Create(ctx context.Context, p *models.UserProfile) error {
	if p.ID == "" {
		return errors.New("profile ID cannot be empty")
	}
	_, err := r.client.Collection(usersCollection).Doc(p.ID).Create(ctx, p)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("profile '%s': %w", p.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create profile '%s': %w", p.ID, err)
	}
	return nil
}

// Update applies field-level changes so untouched fields and createdAt keep
// their stored values.
func (r *firestoreProfileRepository) Update(ctx context.Context, userID string, u models.ProfileUpdate) error {
	updates := profileUpdates(u)
	if len(updates) == 0 {
		return nil
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("profile '%s': %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update profile '%s': %w", userID, err)
	}
	return nil
}

func profileUpdates(u models.ProfileUpdate) []firestore.Update {
	var updates []firestore.Update
	if u.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: *u.Status})
	}
	if u.Role != nil {
		updates = append(updates, firestore.Update{Path: "role", Value: *u.Role})
	}
	if u.Tier != nil {
		updates = append(updates, firestore.Update{Path: "tier", Value: *u.Tier})
	}
	switch {
	case u.ClearQuota:
		updates = append(updates, firestore.Update{Path: "dailyQuota", Value: firestore.Delete})
	case u.DailyQuota != nil:
		updates = append(updates, firestore.Update{Path: "dailyQuota", Value: *u.DailyQuota})
	}
	if len(updates) > 0 {
		updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	}
	return updates
}
