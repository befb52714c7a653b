package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/models"
)

// MaxImageBytes caps the decoded size of an attached image.
const MaxImageBytes = 8 << 20

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Quota   *core.QuotaDecision `json:"quota,omitempty"`
}

// SubmitTurnRequest is the body of POST /turns and of a WebSocket "turn" message.
type SubmitTurnRequest struct {
	Messages  []models.Message `json:"messages" binding:"required,min=1"`
	Providers []string         `json:"providers" binding:"required,min=1"`
	// Image is base64 or a data URL.
	Image         string `json:"image,omitempty"`
	ImageMimeType string `json:"imageMimeType,omitempty"`
}

func (r *SubmitTurnRequest) validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", core.ErrInvalidInput)
	}
	if len(r.Providers) == 0 {
		return fmt.Errorf("%w: providers are required", core.ErrInvalidInput)
	}
	return nil
}

// toTurn builds a turn for userID, decoding the attached image if any.
func (r *SubmitTurnRequest) toTurn(userID string) (*models.Turn, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	turn := &models.Turn{UserID: userID, Messages: r.Messages, Providers: r.Providers}
	if r.Image == "" {
		return turn, nil
	}
	img, err := decodeImage(r.Image, r.ImageMimeType)
	if err != nil {
		return nil, err
	}
	turn.Image = img
	return turn, nil
}

func decodeImage(raw, mimeType string) (*models.ImageAttachment, error) {
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: image data URL must be base64", core.ErrInvalidInput)
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		payload = data
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", core.ErrInvalidInput, MaxImageBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", core.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", core.ErrInvalidInput)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported image type %q", core.ErrInvalidInput, mimeType)
	}
	return &models.ImageAttachment{MimeType: mimeType, Data: data}, nil
}

// Stream event types, shared by the SSE and WebSocket transports.
const (
	EventTurn     = "turn"     // turn admitted
	EventDelta    = "delta"    // text increment
	EventDone     = "done"     // provider finished (completed or cancelled)
	EventError    = "error"    // provider failed, or a request-level error
	EventRejected = "rejected" // WebSocket turn refused before streaming
	EventTurnEnd  = "turn_end" // every provider of the turn has finished
)

// StreamEvent is one message on a turn stream.
type StreamEvent struct {
	Type     string              `json:"type"`
	TurnID   string              `json:"turnId,omitempty"`
	Provider string              `json:"provider,omitempty"`
	Backend  string              `json:"backend,omitempty"`
	Text     string              `json:"text,omitempty"`
	State    string              `json:"state,omitempty"`
	Code     string              `json:"code,omitempty"`
	Message  string              `json:"message,omitempty"`
	Quota    *core.QuotaDecision `json:"quota,omitempty"`
}

// MaintenanceRequest toggles a provider's maintenance flag.
type MaintenanceRequest struct {
	Maintenance *bool `json:"maintenance" binding:"required"`
}

// ProviderStatus is the public view of one capability table row.
type ProviderStatus struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Multimodal  bool   `json:"multimodal"`
	Maintenance bool   `json:"maintenance"`
}
