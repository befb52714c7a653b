package core

import (
	"strings"
	"sync"
)

// StreamState is the lifecycle state of one (turn, provider) stream.
type StreamState int

const (
	StatePending StreamState = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s StreamState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s StreamState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

const defaultChunkBuffer = 16

// StreamHandle is the consumer side of one provider stream. Chunks arrive in
// generation order on Chunks, which is closed once the handle reaches a
// terminal state. A handle cannot be restarted.
type StreamHandle struct {
	Provider string // provider the caller asked for
	Backend  string // backend actually serving it

	chunks chan string
	done   chan struct{}

	mu    sync.Mutex
	state StreamState
	err   error
	text  strings.Builder
}

func newStreamHandle(provider, backend string, buffer int) *StreamHandle {
	if buffer <= 0 {
		buffer = defaultChunkBuffer
	}
	return &StreamHandle{
		Provider: provider,
		Backend:  backend,
		chunks:   make(chan string, buffer),
		done:     make(chan struct{}),
	}
}

// Chunks yields text increments until the stream ends.
func (h *StreamHandle) Chunks() <-chan string { return h.chunks }

// Done is closed after the handle reaches a terminal state.
func (h *StreamHandle) Done() <-chan struct{} { return h.done }

func (h *StreamHandle) State() StreamState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err is the classified failure of a Failed handle, nil otherwise.
func (h *StreamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Text is everything generated so far.
func (h *StreamHandle) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text.String()
}

// Wait blocks until the handle is terminal and returns the final state.
func (h *StreamHandle) Wait() StreamState {
	<-h.done
	return h.State()
}

func (h *StreamHandle) startStreaming() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StatePending {
		h.state = StateStreaming
	}
}

func (h *StreamHandle) appendText(s string) {
	h.mu.Lock()
	h.text.WriteString(s)
	h.mu.Unlock()
}

// finish moves the handle to a terminal state once; later calls are no-ops.
func (h *StreamHandle) finish(state StreamState, err error) bool {
	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return false
	}
	h.state = state
	h.err = err
	h.mu.Unlock()

	close(h.chunks)
	close(h.done)
	return true
}
