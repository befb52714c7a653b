package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tutorgate-backend-go/internal/db"
	"tutorgate-backend-go/internal/models"
)

type userService struct {
	profiles   db.ProfileRepository
	gatekeeper Gatekeeper
	logger     *zap.Logger
}

// NewUserService creates a new UserService instance. Profile updates
// invalidate the gatekeeper's cached copy.
func NewUserService(profiles db.ProfileRepository, g Gatekeeper, logger *zap.Logger) UserService {
	return &userService{profiles: profiles, gatekeeper: g, logger: logger}
}

func (s *userService) GetOrCreate(ctx context.Context, userID, email, displayName string) (*models.UserProfile, bool, error) {
	if userID == "" {
		return nil, false, ErrUnauthenticated
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get profile '%s': %w", userID, err)
	}

	now := time.Now().UTC()
	p = &models.UserProfile{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		Status:      models.StatusPending,
		Role:        models.RoleUser,
		Tier:        models.TierFree,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		// Lost a race with a concurrent first sign-in.
		if errors.Is(err, db.ErrAlreadyExists) {
			existing, getErr := s.profiles.GetByID(ctx, userID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to get profile '%s' after create conflict: %w", userID, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create profile '%s': %w", userID, err)
	}
	s.logger.Info("profile created", zap.String("userId", userID))
	return p, true, nil
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile '%s': %w", userID, err)
	}
	return p, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, u models.ProfileUpdate) (*models.UserProfile, error) {
	if err := validateUpdate(u); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, userID, u); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to update profile '%s': %w", userID, err)
	}
	// A stale cached profile would keep a banned user approved until TTL.
	if err := s.gatekeeper.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate cached profile", zap.String("userId", userID), zap.Error(err))
	}
	s.logger.Info("profile updated", zap.String("userId", userID))
	return s.GetByID(ctx, userID)
}

func validateUpdate(u models.ProfileUpdate) error {
	if u.Status != nil {
		switch *u.Status {
		case models.StatusPending, models.StatusApproved, models.StatusBanned:
		default:
			return fmt.Errorf("%w: status %q", ErrInvalidInput, *u.Status)
		}
	}
	if u.Role != nil {
		switch *u.Role {
		case models.RoleUser, models.RoleAdmin:
		default:
			return fmt.Errorf("%w: role %q", ErrInvalidInput, *u.Role)
		}
	}
	if u.Tier != nil {
		switch *u.Tier {
		case models.TierFree, models.TierPro:
		default:
			return fmt.Errorf("%w: tier %q", ErrInvalidInput, *u.Tier)
		}
	}
	if u.DailyQuota != nil && *u.DailyQuota < 0 {
		return fmt.Errorf("%w: dailyQuota must not be negative", ErrInvalidInput)
	}
	return nil
}
