package providers

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ContextBudget says how much history a backend receives.
type ContextBudget string

const (
	ContextLarge ContextBudget = "large" // full history
	ContextSmall ContextBudget = "small" // most recent fixed-size suffix
)

// Adapter kinds.
const (
	KindGemini = "gemini"
	KindOpenAI = "openai"
)

// Capability is one row of the provider capability table.
type Capability struct {
	ID            string        `yaml:"id"`
	DisplayName   string        `yaml:"display_name"`
	Kind          string        `yaml:"kind"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Multimodal    bool          `yaml:"multimodal"`
	ContextBudget ContextBudget `yaml:"context_budget"`
	Maintenance   bool          `yaml:"maintenance"`
	// ImageRedirect names the provider that answers on this provider's behalf
	// when a turn carries an image and this provider is text-only.
	ImageRedirect string   `yaml:"image_redirect"`
	Temperature   *float32 `yaml:"temperature"`
	MaxTokens     int      `yaml:"max_tokens"`
}

type tableFile struct {
	Providers []Capability `yaml:"providers"`
}

// ErrUnknownProvider is returned for ids missing from the table.
var ErrUnknownProvider = errors.New("unknown provider")

// Table is the capability table, safe for concurrent use. Only the
// maintenance flag may change after construction.
type Table struct {
	mu    sync.RWMutex
	caps  map[string]Capability
	order []string
}

// LoadTable reads a YAML capability table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider table %s: %w", path, err)
	}
	return ParseTable(data)
}

// ParseTable parses and validates a YAML capability table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse provider table: %w", err)
	}
	return NewTable(f.Providers)
}

// NewTable validates the rows and builds a Table.
func NewTable(rows []Capability) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("provider table is empty")
	}
	t := &Table{caps: make(map[string]Capability, len(rows))}
	for _, c := range rows {
		if c.ID == "" {
			return nil, errors.New("provider id is required")
		}
		if _, dup := t.caps[c.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", c.ID)
		}
		switch c.Kind {
		case KindGemini, KindOpenAI:
		default:
			return nil, fmt.Errorf("provider %q: unsupported kind %q", c.ID, c.Kind)
		}
		switch c.ContextBudget {
		case "":
			c.ContextBudget = ContextLarge
		case ContextLarge, ContextSmall:
		default:
			return nil, fmt.Errorf("provider %q: context_budget must be large or small", c.ID)
		}
		if c.DisplayName == "" {
			c.DisplayName = c.ID
		}
		t.caps[c.ID] = c
		t.order = append(t.order, c.ID)
	}
	for _, c := range t.caps {
		if c.ImageRedirect == "" {
			continue
		}
		target, ok := t.caps[c.ImageRedirect]
		if !ok {
			return nil, fmt.Errorf("provider %q: image_redirect %q: %w", c.ID, c.ImageRedirect, ErrUnknownProvider)
		}
		if !target.Multimodal {
			return nil, fmt.Errorf("provider %q: image_redirect target %q is not multimodal", c.ID, c.ImageRedirect)
		}
	}
	return t, nil
}

// Lookup returns a copy of the capability row for id.
func (t *Table) Lookup(id string) (Capability, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.caps[id]
	return c, ok
}

// Snapshot returns a copy of every row keyed by id.
func (t *Table) Snapshot() map[string]Capability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Capability, len(t.caps))
	for id, c := range t.caps {
		out[id] = c
	}
	return out
}

// IDs returns provider ids in table order.
func (t *Table) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// SetMaintenance flips the sticky maintenance flag for a provider.
func (t *Table) SetMaintenance(id string, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.caps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	c.Maintenance = on
	t.caps[id] = c
	return nil
}
