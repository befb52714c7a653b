package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/db"
	"tutorgate-backend-go/internal/models"
)

// DefaultDailyQuota applies to free-tier profiles without an override.
const DefaultDailyQuota = 50

func profileKey(userID string) string { return "profile:" + userID }

// GatekeeperConfig tunes a gatekeeper.
type GatekeeperConfig struct {
	CacheTTL     time.Duration
	DefaultQuota int
}

type gatekeeper struct {
	cache        cache.Cache
	profiles     db.ProfileRepository
	ttl          time.Duration
	defaultQuota int
	logger       *zap.Logger
	loads        singleflight.Group
}

// NewGatekeeper returns a Gatekeeper that reads profiles through the cache.
func NewGatekeeper(c cache.Cache, profiles db.ProfileRepository, cfg GatekeeperConfig, logger *zap.Logger) Gatekeeper {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DefaultQuota <= 0 {
		cfg.DefaultQuota = DefaultDailyQuota
	}
	return &gatekeeper{
		cache:        c,
		profiles:     profiles,
		ttl:          cfg.CacheTTL,
		defaultQuota: cfg.DefaultQuota,
		logger:       logger,
	}
}

func (g *gatekeeper) Authorize(ctx context.Context, userID string) (*models.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}

	if p, ok := g.cached(ctx, userID); ok {
		return decide(p)
	}

	// Concurrent misses for one user share a single store read. The load is
	// detached from the first caller's cancellation so it cannot fail the others.
	v, err, _ := g.loads.Do(userID, func() (interface{}, error) {
		// A flight that finished between our miss and this call has filled the cache.
		if p, ok := g.cached(ctx, userID); ok {
			return p, nil
		}
		return g.load(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*models.UserProfile)
	return decide(&p)
}

func (g *gatekeeper) Invalidate(ctx context.Context, userID string) error {
	if err := g.cache.Delete(ctx, profileKey(userID)); err != nil {
		return fmt.Errorf("invalidate profile %s: %w", userID, err)
	}
	return nil
}

func (g *gatekeeper) cached(ctx context.Context, userID string) (*models.UserProfile, bool) {
	raw, err := g.cache.Get(ctx, profileKey(userID))
	if err != nil {
		g.logger.Warn("profile cache read failed, falling back to store", zap.String("userId", userID), zap.Error(err))
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var p models.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		g.logger.Warn("discarding undecodable cached profile", zap.String("userId", userID), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (g *gatekeeper) load(ctx context.Context, userID string) (*models.UserProfile, error) {
	p, err := g.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrForbidden
		}
		g.logger.Error("profile store read failed", zap.String("userId", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: profile lookup failed", ErrSystem)
	}
	g.normalize(p)

	if raw, err := json.Marshal(p); err != nil {
		g.logger.Warn("failed to encode profile for cache", zap.String("userId", userID), zap.Error(err))
	} else if err := g.cache.Set(ctx, profileKey(userID), string(raw), g.ttl); err != nil {
		g.logger.Warn("profile cache write failed", zap.String("userId", userID), zap.Error(err))
	}
	return p, nil
}

// normalize fills the tier and quota defaults of a stored profile.
func (g *gatekeeper) normalize(p *models.UserProfile) {
	if p.Tier == "" {
		p.Tier = models.TierFree
	}
	if p.DailyQuota == nil && !p.Unbounded() {
		q := g.defaultQuota
		p.DailyQuota = &q
	}
}

func decide(p *models.UserProfile) (*models.UserProfile, error) {
	if p.Status != models.StatusApproved && !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return p, nil
}
