package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/config"
	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/db"
	"tutorgate-backend-go/internal/models"
	"tutorgate-backend-go/internal/providers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenVerifier accepts "tok-<uid>".
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := strings.CutPrefix(idToken, "tok-")
	if !ok || uid == "" {
		return nil, io.ErrUnexpectedEOF
	}
	return &auth.Token{UID: uid, Claims: map[string]interface{}{"email": uid + "@example.com", "name": strings.ToUpper(uid)}}, nil
}

// memoryProfiles is an in-memory db.ProfileRepository.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
}

func (m *memoryProfiles) GetByID(_ context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

func (m *memoryProfiles) Create(_ context.Context, p *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return db.ErrAlreadyExists
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *memoryProfiles) Update(_ context.Context, userID string, u models.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return db.ErrNotFound
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.Tier != nil {
		p.Tier = *u.Tier
	}
	if u.ClearQuota {
		p.DailyQuota = nil
	} else if u.DailyQuota != nil {
		q := *u.DailyQuota
		p.DailyQuota = &q
	}
	m.profiles[userID] = p
	return nil
}

// fakeAdapter streams chunks, then ends with err (io.EOF when nil). With
// hang set it blocks after the chunks until cancelled.
type fakeAdapter struct {
	name   string
	chunks []string
	err    error
	hang   bool
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Stream(ctx context.Context, _ providers.Request) (providers.Stream, error) {
	return &fakeStream{ctx: ctx, a: a}, nil
}

type fakeStream struct {
	ctx context.Context
	a   *fakeAdapter
	i   int
}

func (s *fakeStream) Next() (string, error) {
	if s.i < len(s.a.chunks) {
		s.i++
		return s.a.chunks[s.i-1], nil
	}
	if s.a.hang {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.a.err != nil {
		return "", s.a.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error { return nil }

type nopRecorder struct{}

func (nopRecorder) Record(*models.ProviderResponse) {}

type testEnv struct {
	router   *gin.Engine
	profiles *memoryProfiles
	table    *providers.Table
	adapters map[string]providers.Adapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	table, err := providers.NewTable([]providers.Capability{
		{ID: "gemini", Kind: providers.KindGemini, Model: "gemini-test", Multimodal: true},
		{ID: "openai", Kind: providers.KindOpenAI, Model: "gpt-test", Multimodal: true},
		{ID: "deepseek", Kind: providers.KindOpenAI, Model: "ds-test", ContextBudget: providers.ContextSmall},
	})
	require.NoError(t, err)

	env := &testEnv{
		profiles: &memoryProfiles{profiles: map[string]models.UserProfile{
			"alice": {ID: "alice", Email: "alice@example.com", Status: models.StatusApproved, Role: models.RoleUser, Tier: models.TierFree},
			"bob":   {ID: "bob", Email: "bob@example.com", Status: models.StatusPending, Role: models.RoleUser, Tier: models.TierFree},
			"root":  {ID: "root", Email: "root@example.com", Status: models.StatusApproved, Role: models.RoleAdmin},
		}},
		table: table,
		adapters: map[string]providers.Adapter{
			"gemini":   &fakeAdapter{name: "gemini", chunks: []string{"Hel", "lo"}},
			"openai":   &fakeAdapter{name: "openai", chunks: []string{"Hi", " there"}},
			"deepseek": &fakeAdapter{name: "deepseek", chunks: []string{"x"}, err: &providers.StatusError{Provider: "deepseek", StatusCode: http.StatusTooManyRequests}},
		},
	}

	logger := zap.NewNop()
	c := cache.NewMemoryCache(0)
	gatekeeper := core.NewGatekeeper(c, env.profiles, core.GatekeeperConfig{CacheTTL: time.Minute, DefaultQuota: 50}, logger)
	quota := core.NewQuotaAccountant(c, time.UTC, 50, logger)
	orchestrator := core.NewOrchestrator(providers.NewStaticRegistry(table, env.adapters), nopRecorder{}, core.OrchestratorConfig{}, logger)
	turns := core.NewTurnService(gatekeeper, quota, orchestrator, logger)
	users := core.NewUserService(env.profiles, gatekeeper, logger)

	env.router = gin.New()
	SetupRoutes(env.router, &config.Config{}, logger, tokenVerifier{}, gatekeeper, turns, users, table)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer tok-"+uid)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type sseEvent struct {
	Name string
	Data StreamEvent
}

// readSSE parses a complete event stream body.
func readSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	var (
		events  []sseEvent
		current sseEvent
		hasData bool
	)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if hasData {
				events = append(events, current)
			}
			current, hasData = sseEvent{}, false
		case strings.HasPrefix(line, "event:"):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &current.Data))
			hasData = true
		}
	}
	require.NoError(t, scanner.Err())
	if hasData {
		events = append(events, current)
	}
	return events
}
