package core

import (
	"bytes"
	"strings"

	"tutorgate-backend-go/internal/models"
	"tutorgate-backend-go/internal/providers"
)

// SmallContextWindow is how many trailing turns a small-budget provider sees.
const SmallContextWindow = 15

// BuildContext assembles one message list per provider key. caps maps each
// key to the capabilities of the backend that will serve it.
//
// Historical images are forwarded only as URL references and only to
// multimodal backends; newImage is attached inline to the last user turn of
// multimodal backends. Turns left without content after that are dropped.
func BuildContext(history []models.Message, newImage *models.ImageAttachment, caps map[string]providers.Capability) map[string][]providers.Message {
	out := make(map[string][]providers.Message, len(caps))
	for key, c := range caps {
		out[key] = buildFor(history, newImage, c)
	}
	return out
}

func buildFor(history []models.Message, newImage *models.ImageAttachment, c providers.Capability) []providers.Message {
	window := history
	if c.ContextBudget == providers.ContextSmall && len(window) > SmallContextWindow {
		window = window[len(window)-SmallContextWindow:]
	}

	lastUser := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Role == models.RoleUserMessage {
			lastUser = i
			break
		}
	}

	msgs := make([]providers.Message, 0, len(window))
	for i, m := range window {
		role, ok := providerRole(m.Role)
		if !ok {
			continue
		}
		parts := convertContent(m.Content, c.Multimodal)
		if i == lastUser && newImage != nil && c.Multimodal && len(newImage.Data) > 0 {
			parts = append(parts, providers.Part{
				MimeType:   newImage.MimeType,
				InlineData: bytes.Clone(newImage.Data),
			})
		}
		if len(parts) == 0 {
			continue
		}
		msgs = append(msgs, providers.Message{Role: role, Parts: parts})
	}
	return msgs
}

func providerRole(role string) (string, bool) {
	switch role {
	case models.RoleUserMessage:
		return providers.RoleUser, true
	case models.RoleAssistantMessage:
		return providers.RoleAssistant, true
	}
	return "", false
}

// convertContent keeps non-blank text and, for multimodal backends, image
// URL references. Inline historical image data is never forwarded.
func convertContent(content models.Content, multimodal bool) []providers.Part {
	if !content.IsBlocks() {
		if strings.TrimSpace(content.Text) == "" {
			return nil
		}
		return []providers.Part{{Text: content.Text}}
	}

	var parts []providers.Part
	for _, b := range content.Blocks {
		switch b.Type {
		case models.BlockText:
			if strings.TrimSpace(b.Text) != "" {
				parts = append(parts, providers.Part{Text: b.Text})
			}
		case models.BlockImage:
			if multimodal && b.ImageURL != "" {
				parts = append(parts, providers.Part{ImageURL: b.ImageURL, MimeType: b.MimeType})
			}
		}
	}
	return parts
}
