package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"tutorgate-backend-go/internal/models"
)

const responsesCollection = "responses"

type firestoreResponseRepository struct {
	client *firestore.Client
}

// NewFirestoreResponseRepository stores provider responses in the
// "responses" collection.
func NewFirestoreResponseRepository(client *firestore.Client) ResponseRepository {
	return &firestoreResponseRepository{client: client}
}

func (r *firestoreResponseRepository) Save(ctx context.Context, resp *models.ProviderResponse) error {
	col := r.client.Collection(responsesCollection)
	var ref *firestore.DocumentRef
	if resp.ID != "" {
		ref = col.Doc(resp.ID)
	} else {
		ref = col.NewDoc()
		resp.ID = ref.ID
	}
	if _, err := ref.Set(ctx, resp); err != nil {
		return fmt.Errorf("failed to save response %s/%s: %w", resp.TurnID, resp.Provider, err)
	}
	return nil
}
