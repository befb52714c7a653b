package models

import "time"

// ProviderResponse is the final text a provider produced for a turn.
type ProviderResponse struct {
	ID        string    `json:"id" firestore:"-"`
	TurnID    string    `json:"turnId" firestore:"turnId"`
	UserID    string    `json:"userId" firestore:"userId"`
	Provider  string    `json:"provider" firestore:"provider"` // the panel the user asked for
	Backend   string    `json:"backend" firestore:"backend"`   // the backend that actually answered
	Text      string    `json:"text" firestore:"text"`
	Partial   bool      `json:"partial" firestore:"partial"` // true when the stream was stopped early
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}
