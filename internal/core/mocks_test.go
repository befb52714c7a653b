package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/models"
	"tutorgate-backend-go/internal/providers"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.UserProfile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) Create(ctx context.Context, p *models.UserProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileRepository) Update(ctx context.Context, userID string, u models.ProfileUpdate) error {
	args := m.Called(ctx, userID, u)
	return args.Error(0)
}

type MockResponseStore struct {
	mock.Mock
}

func (m *MockResponseStore) Save(ctx context.Context, resp *models.ProviderResponse) error {
	args := m.Called(ctx, resp)
	return args.Error(0)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (string, error) { return "", errCacheDown }
func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errCacheDown
}
func (brokenCache) Delete(context.Context, string) error { return errCacheDown }
func (brokenCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, errCacheDown
}
func (brokenCache) Close() error { return nil }

var _ cache.Cache = brokenCache{}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedAdapter replays a fixed list of chunks, then ends as configured.
type scriptedAdapter struct {
	name      string
	chunks    []string
	streamErr error // returned by Stream itself
	endErr    error // returned after the chunks instead of io.EOF
	hang      bool  // after the chunks, block until the context ends
	delay     time.Duration

	calls    atomic.Int32
	mu       sync.Mutex
	requests []providers.Request
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) Stream(ctx context.Context, req providers.Request) (providers.Stream, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	if a.streamErr != nil {
		return nil, a.streamErr
	}
	return &scriptedStream{ctx: ctx, a: a}, nil
}

func (a *scriptedAdapter) lastRequest(t *testing.T) providers.Request {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.requests)
	return a.requests[len(a.requests)-1]
}

type scriptedStream struct {
	ctx context.Context
	a   *scriptedAdapter
	i   int
}

func (s *scriptedStream) Next() (string, error) {
	if s.i < len(s.a.chunks) {
		if s.a.delay > 0 {
			select {
			case <-time.After(s.a.delay):
			case <-s.ctx.Done():
				return "", s.ctx.Err()
			}
		}
		c := s.a.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.a.hang {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.a.endErr != nil {
		return "", s.a.endErr
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// captureRecorder collects recorded responses.
type captureRecorder struct {
	mu  sync.Mutex
	got []*models.ProviderResponse
}

func (r *captureRecorder) Record(resp *models.ProviderResponse) {
	r.mu.Lock()
	r.got = append(r.got, resp)
	r.mu.Unlock()
}

func (r *captureRecorder) responses() []*models.ProviderResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ProviderResponse(nil), r.got...)
}

func waitTerminal(t *testing.T, h *StreamHandle) StreamState {
	t.Helper()
	select {
	case <-h.Done():
		return h.State()
	case <-time.After(2 * time.Second):
		t.Fatalf("handle %s did not finish", h.Provider)
		return h.State()
	}
}

func collect(t *testing.T, h *StreamHandle) []string {
	t.Helper()
	var out []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-h.Chunks():
			if !ok {
				return out
			}
			out = append(out, c)
		case <-timeout:
			t.Fatalf("handle %s did not close its chunk channel", h.Provider)
			return out
		}
	}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
