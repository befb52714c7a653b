package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// Message roles accepted in a turn's history.
const (
	RoleUserMessage      = "user"
	RoleAssistantMessage = "assistant"
)

// Content block types.
const (
	BlockText  = "text"
	BlockImage = "image"
)

// ContentBlock is one typed piece of message content.
// Image blocks carry either a URL reference, inline base64 data, or both.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Content is either plain text or a list of typed blocks.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

// IsBlocks reports whether the content was supplied as a block list.
func (c Content) IsBlocks() bool {
	return c.Blocks != nil
}

// UnmarshalJSON accepts a JSON string or an array of blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*c = Content{}
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		blocks := []ContentBlock{}
		if err := json.Unmarshal(data, &blocks); err != nil {
			return err
		}
		*c = Content{Blocks: blocks}
		return nil
	}
	return errors.New("content must be a string or an array of blocks")
}

// MarshalJSON mirrors UnmarshalJSON.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlocks() {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// Message is one entry of the chat history.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// ImageAttachment is the image supplied with the newest user message.
type ImageAttachment struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Turn is one user submission fanned out to one or more providers.
type Turn struct {
	ID        string
	UserID    string
	Messages  []Message
	Providers []string
	Image     *ImageAttachment
}
