package messagequeue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tutorgate-backend-go/internal/models"
)

// ResponsePublisher forwards finished provider responses to a queue for
// downstream consumers.
type ResponsePublisher struct {
	publisher Publisher
	queue     string
}

func NewResponsePublisher(p Publisher, queue string) *ResponsePublisher {
	return &ResponsePublisher{publisher: p, queue: queue}
}

// Save publishes resp as JSON. It satisfies the same contract as the
// Firestore response repository.
func (r *ResponsePublisher) Save(ctx context.Context, resp *models.ProviderResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response %s: %w", resp.ID, err)
	}
	return r.publisher.Publish(ctx, r.queue, "application/json", body)
}
