package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"tutorgate-backend-go/internal/models"
	"tutorgate-backend-go/internal/providers"
)

// OrchestratorConfig tunes the orchestrator.
type OrchestratorConfig struct {
	ChunkBuffer int
}

type orchestrator struct {
	registry *providers.Registry
	recorder Recorder
	buffer   int
	logger   *zap.Logger
}

// NewOrchestrator fans turns out to the adapters of registry. Finished
// streams are handed to recorder.
func NewOrchestrator(registry *providers.Registry, recorder Recorder, cfg OrchestratorConfig, logger *zap.Logger) TurnOrchestrator {
	return &orchestrator{registry: registry, recorder: recorder, buffer: cfg.ChunkBuffer, logger: logger}
}

type route struct {
	provider string
	backend  providers.Capability
	blocked  bool
}

// Dispatch starts one stream per requested provider and returns their
// handles keyed by provider id. ctx cancels every stream of the turn.
func (o *orchestrator) Dispatch(ctx context.Context, turn *models.Turn) (map[string]*StreamHandle, error) {
	routes, contexts, err := o.plan(turn)
	if err != nil {
		return nil, err
	}

	handles := make(map[string]*StreamHandle, len(routes))
	for _, r := range routes {
		h := newStreamHandle(r.provider, r.backend.ID, o.buffer)
		handles[r.provider] = h

		if r.blocked {
			h.finish(StateFailed, fmt.Errorf("%w: %s is under maintenance", ErrProviderUnavailable, r.provider))
			continue
		}
		adapter, ok := o.registry.Adapter(r.backend.ID)
		if !ok {
			h.finish(StateFailed, fmt.Errorf("%w: %s is not configured", ErrProviderUnavailable, r.backend.ID))
			continue
		}
		msgs := contexts[r.provider]
		if !usable(msgs) {
			h.finish(StateFailed, fmt.Errorf("%w: no usable messages for %s", ErrInvalidInput, r.provider))
			continue
		}

		req := providers.Request{
			Model:       r.backend.Model,
			Messages:    msgs,
			Temperature: r.backend.Temperature,
			MaxTokens:   r.backend.MaxTokens,
		}
		go o.run(ctx, turn, h, adapter, req)
	}
	return handles, nil
}

func (o *orchestrator) Validate(turn *models.Turn) error {
	_, _, err := o.plan(turn)
	return err
}

// plan resolves the routes of a turn and the context each provider would
// receive. A turn no provider could answer is invalid.
func (o *orchestrator) plan(turn *models.Turn) ([]route, map[string][]providers.Message, error) {
	routes, err := o.resolve(turn)
	if err != nil {
		return nil, nil, err
	}

	caps := make(map[string]providers.Capability, len(routes))
	for _, r := range routes {
		caps[r.provider] = r.backend
	}
	contexts := BuildContext(turn.Messages, turn.Image, caps)
	for _, r := range routes {
		if usable(contexts[r.provider]) {
			return routes, contexts, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no usable messages", ErrInvalidInput)
}

// usable reports whether msgs ends with a user turn a backend can answer.
func usable(msgs []providers.Message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Role == providers.RoleUser
}

// resolve validates the provider set and picks the serving backend of each.
func (o *orchestrator) resolve(turn *models.Turn) ([]route, error) {
	if len(turn.Providers) == 0 {
		return nil, fmt.Errorf("%w: no providers requested", ErrInvalidInput)
	}
	if len(turn.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrInvalidInput)
	}

	hasImage := turn.Image != nil && len(turn.Image.Data) > 0
	seen := make(map[string]bool, len(turn.Providers))
	routes := make([]route, 0, len(turn.Providers))
	for _, id := range turn.Providers {
		if seen[id] {
			continue
		}
		seen[id] = true

		c, ok := o.registry.Table.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, id)
		}
		r := route{provider: id, backend: c, blocked: c.Maintenance}
		if hasImage && !c.Multimodal && c.ImageRedirect != "" {
			target, ok := o.registry.Table.Lookup(c.ImageRedirect)
			if ok {
				r.backend = target
				r.blocked = r.blocked || target.Maintenance
			}
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func (o *orchestrator) run(ctx context.Context, turn *models.Turn, h *StreamHandle, adapter providers.Adapter, req providers.Request) {
	log := o.logger.With(zap.String("turnId", turn.ID), zap.String("provider", h.Provider), zap.String("backend", h.Backend))

	stream, err := adapter.Stream(ctx, req)
	if err != nil {
		o.end(ctx, turn, h, err, log)
		return
	}
	defer stream.Close()
	h.startStreaming()

	for {
		if ctx.Err() != nil {
			o.end(ctx, turn, h, ctx.Err(), log)
			return
		}
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			o.end(ctx, turn, h, nil, log)
			return
		}
		// A chunk produced while the turn was being stopped is dropped.
		if ctx.Err() != nil {
			o.end(ctx, turn, h, ctx.Err(), log)
			return
		}
		if err != nil {
			o.end(ctx, turn, h, err, log)
			return
		}
		if chunk == "" {
			continue
		}
		if !o.deliver(ctx, h, chunk) {
			o.end(ctx, turn, h, ctx.Err(), log)
			return
		}
	}
}

// deliver sends chunk unless ctx is done; cancellation wins over a free
// buffer slot. Only delivered text is kept on the handle.
func (o *orchestrator) deliver(ctx context.Context, h *StreamHandle, chunk string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case <-ctx.Done():
		return false
	case h.chunks <- chunk:
		h.appendText(chunk)
		return true
	}
}

// end queues the text for persistence and settles the handle. err is nil
// when the stream ran to completion, which stands even if ctx was cancelled
// afterwards.
func (o *orchestrator) end(ctx context.Context, turn *models.Turn, h *StreamHandle, err error, log *zap.Logger) {
	var state StreamState
	switch {
	case err == nil:
		state = StateCompleted
	case ctx.Err() != nil:
		state, err = StateCancelled, nil
	default:
		state = StateFailed
		err = classify(err)
		log.Warn("provider stream failed", zap.Error(err))
	}

	// Text cut short by a stop is kept as a partial answer.
	if text := h.Text(); o.recorder != nil && text != "" && state != StateFailed {
		o.recorder.Record(&models.ProviderResponse{
			TurnID:   turn.ID,
			UserID:   turn.UserID,
			Provider: h.Provider,
			Backend:  h.Backend,
			Text:     text,
			Partial:  state == StateCancelled,
		})
	}
	h.finish(state, err)
}

func classify(err error) error {
	switch providers.Classify(err) {
	case providers.ClassRateLimited:
		return fmt.Errorf("%w: %v", ErrProviderRateLimited, err)
	case providers.ClassUnavailable:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnknown, err)
}
