package api

import (
	"context"
	"sync"

	"tutorgate-backend-go/internal/core"
)

// fanIn merges every handle of a turn into one event channel. Each provider
// contributes its deltas in order followed by exactly one terminal event.
// The channel closes once all handles are finished, or early when ctx (the
// consumer's lifetime) ends.
func fanIn(ctx context.Context, turnID string, handles map[string]*core.StreamHandle) <-chan StreamEvent {
	out := make(chan StreamEvent)
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h *core.StreamHandle) {
			defer wg.Done()
			send := func(ev StreamEvent) bool {
				select {
				case out <- ev:
					return true
				case <-ctx.Done():
					return false
				}
			}
			for chunk := range h.Chunks() {
				if !send(StreamEvent{Type: EventDelta, TurnID: turnID, Provider: h.Provider, Text: chunk}) {
					return
				}
			}
			send(terminalEvent(turnID, h))
		}(h)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func terminalEvent(turnID string, h *core.StreamHandle) StreamEvent {
	state := h.Wait()
	ev := StreamEvent{Type: EventDone, TurnID: turnID, Provider: h.Provider, Backend: h.Backend, State: state.String()}
	if state == core.StateFailed {
		ev.Type = EventError
		ev.Code = providerErrorCode(h.Err())
		ev.Message = providerErrorMessage(h.Err())
	}
	return ev
}
