package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiAdapter streams completions from Google's Gemini models.
type GeminiAdapter struct {
	name   string
	client *genai.Client
}

// NewGeminiAdapter opens a genai client authenticated with apiKey.
func NewGeminiAdapter(ctx context.Context, name, apiKey string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiAdapter{name: name, client: client}, nil
}

func (a *GeminiAdapter) Name() string { return a.name }

// Close releases the underlying client.
func (a *GeminiAdapter) Close() error { return a.client.Close() }

func (a *GeminiAdapter) Stream(ctx context.Context, req Request) (Stream, error) {
	history, last, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	model := a.client.GenerativeModel(req.Model)
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	session := model.StartChat()
	session.History = history
	return &geminiStream{iter: session.SendMessageStream(ctx, last.Parts...)}, nil
}

type geminiStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

// Close is a no-op; the iterator is released when its context ends.
func (s *geminiStream) Close() error { return nil }

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// toGeminiContents splits messages into chat history plus the final user
// message that starts the stream.
func toGeminiContents(msgs []Message) ([]*genai.Content, *genai.Content, error) {
	if len(msgs) == 0 {
		return nil, nil, errors.New("gemini: no messages")
	}
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		c := &genai.Content{Role: role}
		for _, p := range m.Parts {
			switch {
			case len(p.InlineData) > 0:
				c.Parts = append(c.Parts, genai.Blob{MIMEType: p.MimeType, Data: p.InlineData})
			case p.ImageURL != "":
				c.Parts = append(c.Parts, genai.FileData{MIMEType: p.MimeType, URI: p.ImageURL})
			case p.Text != "":
				c.Parts = append(c.Parts, genai.Text(p.Text))
			}
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("gemini: no content")
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, errors.New("gemini: last message must come from the user")
	}
	return contents[:len(contents)-1], last, nil
}
