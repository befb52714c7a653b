package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tutorgate-backend-go/internal/models"
)

// RecorderConfig sizes a ResponseRecorder.
type RecorderConfig struct {
	Workers     int
	Buffer      int
	SaveTimeout time.Duration
}

// ResponseRecorder persists provider responses on background workers.
// Record never blocks the stream; failures are only logged.
type ResponseRecorder struct {
	store   ResponseStore
	jobs    chan *models.ProviderResponse
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewResponseRecorder(store ResponseStore, cfg RecorderConfig, logger *zap.Logger) *ResponseRecorder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	r := &ResponseRecorder{
		store:   store,
		jobs:    make(chan *models.ProviderResponse, cfg.Buffer),
		timeout: cfg.SaveTimeout,
		logger:  logger,
	}
	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	return r
}

// Record queues resp for persistence. When the queue is full or the
// recorder is closed the response is dropped and logged.
func (r *ResponseRecorder) Record(resp *models.ProviderResponse) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("recorder closed, dropping response", zap.String("turnId", resp.TurnID), zap.String("provider", resp.Provider))
		return
	}
	select {
	case r.jobs <- resp:
	default:
		r.logger.Warn("recorder queue full, dropping response", zap.String("turnId", resp.TurnID), zap.String("provider", resp.Provider))
	}
}

// Close stops accepting work and waits for queued responses to be saved.
func (r *ResponseRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *ResponseRecorder) worker() {
	defer r.wg.Done()
	for resp := range r.jobs {
		r.save(resp)
	}
}

func (r *ResponseRecorder) save(resp *models.ProviderResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Save(ctx, resp); err != nil {
		r.logger.Error("failed to persist provider response",
			zap.String("turnId", resp.TurnID),
			zap.String("provider", resp.Provider),
			zap.Bool("partial", resp.Partial),
			zap.Error(err))
		return
	}
	r.logger.Debug("provider response persisted", zap.String("turnId", resp.TurnID), zap.String("provider", resp.Provider))
}

// MultiStore saves to every store and joins their errors.
type MultiStore []ResponseStore

func (m MultiStore) Save(ctx context.Context, resp *models.ProviderResponse) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, resp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
