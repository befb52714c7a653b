package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/db"
	"tutorgate-backend-go/internal/models"
)

func newGatekeeperForTest(c cache.Cache, repo db.ProfileRepository) Gatekeeper {
	return NewGatekeeper(c, repo, GatekeeperConfig{CacheTTL: 5 * time.Minute, DefaultQuota: 50}, zap.NewNop())
}

func approvedProfile(id string) *models.UserProfile {
	return &models.UserProfile{ID: id, Status: models.StatusApproved, Role: models.RoleUser}
}

func TestAuthorizeRejectsEmptyID(t *testing.T) {
	repo := new(MockProfileRepository)
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	for _, id := range []string{"", "   "} {
		_, err := g.Authorize(context.Background(), id)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuthorizeConcurrentCallsReadStoreOnce(t *testing.T) {
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u1").
		After(50*time.Millisecond).
		Return(approvedProfile("u1"), nil)

	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	const n = 50
	var wg sync.WaitGroup
	results := make([]*models.UserProfile, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Authorize(context.Background(), "u1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "u1", results[i].ID)
		assert.Equal(t, models.TierFree, results[i].Tier)
	}
	repo.AssertNumberOfCalls(t, "GetByID", 1)

	// Later calls in the same window are served from the cache.
	_, err := g.Authorize(context.Background(), "u1")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestAuthorizeNormalizesDefaults(t *testing.T) {
	pro := &models.UserProfile{ID: "p", Status: models.StatusApproved, Role: models.RoleUser, Tier: models.TierPro}
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "f").Return(approvedProfile("f"), nil)
	repo.On("GetByID", mock.Anything, "p").Return(pro, nil)
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	free, err := g.Authorize(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, free.Tier)
	require.NotNil(t, free.DailyQuota)
	assert.Equal(t, 50, *free.DailyQuota)

	p, err := g.Authorize(context.Background(), "p")
	require.NoError(t, err)
	assert.Nil(t, p.DailyQuota)
}

func TestAuthorizeKeepsCustomQuota(t *testing.T) {
	prof := approvedProfile("u")
	prof.DailyQuota = intPtr(2)
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(prof, nil)
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	p, err := g.Authorize(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, 2, *p.DailyQuota)
}

func TestAuthorizeForbidsPendingAndBannedAlike(t *testing.T) {
	tests := []struct {
		name    string
		profile *models.UserProfile
		wantErr error
	}{
		{"pending", &models.UserProfile{Status: models.StatusPending, Role: models.RoleUser}, ErrForbidden},
		{"banned", &models.UserProfile{Status: models.StatusBanned, Role: models.RoleUser}, ErrForbidden},
		{"approved", &models.UserProfile{Status: models.StatusApproved, Role: models.RoleUser}, nil},
		{"pending admin", &models.UserProfile{Status: models.StatusPending, Role: models.RoleAdmin}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockProfileRepository)
			repo.On("GetByID", mock.Anything, "u").Return(tc.profile, nil)
			g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

			_, err := g.Authorize(context.Background(), "u")
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, "not approved", err.Error())
		})
	}
}

func TestAuthorizeMissingProfileIsForbidden(t *testing.T) {
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "ghost").Return(nil, db.ErrNotFound)
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	_, err := g.Authorize(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeStoreFailureIsSystemError(t *testing.T) {
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(nil, errors.New("deadline exceeded"))
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	_, err := g.Authorize(context.Background(), "u")
	assert.ErrorIs(t, err, ErrSystem)
	assert.NotContains(t, err.Error(), "deadline")
}

func TestAuthorizeSurvivesBrokenCache(t *testing.T) {
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(approvedProfile("u"), nil)
	g := newGatekeeperForTest(brokenCache{}, repo)

	p, err := g.Authorize(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "u", p.ID)
}

func TestAuthorizeIgnoresCorruptCacheEntry(t *testing.T) {
	c := cache.NewMemoryCache(0)
	require.NoError(t, c.Set(context.Background(), profileKey("u"), "{not json", time.Minute))
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(approvedProfile("u"), nil)
	g := newGatekeeperForTest(c, repo)

	_, err := g.Authorize(context.Background(), "u")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestCachedApprovalExpiresAfterTTL(t *testing.T) {
	clock := newTestClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	c := cache.NewMemoryCache(0, cache.WithClock(clock.Now))

	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(approvedProfile("u"), nil).Once()
	repo.On("GetByID", mock.Anything, "u").Return(&models.UserProfile{ID: "u", Status: models.StatusBanned}, nil).Once()
	g := newGatekeeperForTest(c, repo)

	_, err := g.Authorize(context.Background(), "u")
	require.NoError(t, err)

	// The ban is not visible until the cached copy expires.
	clock.Advance(4 * time.Minute)
	_, err = g.Authorize(context.Background(), "u")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = g.Authorize(context.Background(), "u")
	assert.ErrorIs(t, err, ErrForbidden)
	repo.AssertNumberOfCalls(t, "GetByID", 2)
}

func TestInvalidateForcesStoreRead(t *testing.T) {
	repo := new(MockProfileRepository)
	repo.On("GetByID", mock.Anything, "u").Return(approvedProfile("u"), nil).Once()
	repo.On("GetByID", mock.Anything, "u").Return(&models.UserProfile{ID: "u", Status: models.StatusBanned}, nil).Once()
	g := newGatekeeperForTest(cache.NewMemoryCache(0), repo)

	_, err := g.Authorize(context.Background(), "u")
	require.NoError(t, err)

	require.NoError(t, g.Invalidate(context.Background(), "u"))
	_, err = g.Authorize(context.Background(), "u")
	assert.ErrorIs(t, err, ErrForbidden)
}
