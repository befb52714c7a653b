package providers

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Registry pairs the capability table with one adapter per backend.
type Registry struct {
	Table    *Table
	adapters map[string]Adapter
}

// NewRegistry builds adapters for every row of the table. API keys are read
// from the environment variable each row names.
func NewRegistry(ctx context.Context, table *Table, logger *zap.Logger) (*Registry, error) {
	r := &Registry{Table: table, adapters: make(map[string]Adapter)}
	for id, c := range table.Snapshot() {
		key := os.Getenv(c.APIKeyEnv)
		if c.APIKeyEnv == "" || key == "" {
			logger.Warn("provider api key missing, marking as under maintenance",
				zap.String("provider", id), zap.String("env", c.APIKeyEnv))
			if err := table.SetMaintenance(id, true); err != nil {
				return nil, err
			}
			continue
		}

		var (
			a   Adapter
			err error
		)
		switch c.Kind {
		case KindGemini:
			a, err = NewGeminiAdapter(ctx, id, key)
		case KindOpenAI:
			a, err = NewOpenAIAdapter(OpenAIOptions{Name: id, APIKey: key, BaseURL: c.BaseURL})
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("init provider %s: %w", id, err)
		}
		r.adapters[id] = a
		logger.Info("provider registered", zap.String("provider", id), zap.String("kind", c.Kind), zap.String("model", c.Model))
	}
	return r, nil
}

// NewStaticRegistry wires pre-built adapters, keyed by provider id.
func NewStaticRegistry(table *Table, adapters map[string]Adapter) *Registry {
	r := &Registry{Table: table, adapters: make(map[string]Adapter, len(adapters))}
	for id, a := range adapters {
		r.adapters[id] = a
	}
	return r
}

// Adapter returns the adapter registered for id.
func (r *Registry) Adapter(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// Close releases adapters that hold clients.
func (r *Registry) Close() {
	for _, a := range r.adapters {
		if c, ok := a.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
