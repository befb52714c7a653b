package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOptions configures an OpenAI-compatible chat completions backend.
type OpenAIOptions struct {
	Name       string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIAdapter streams from any host speaking the OpenAI chat completions
// protocol (OpenAI, DeepSeek, ...).
type OpenAIAdapter struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIAdapter(opts OpenAIOptions) (*OpenAIAdapter, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("openai adapter name is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key is required", opts.Name)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		// No client timeout: streams are bounded by the request context.
		client = &http.Client{}
	}
	return &OpenAIAdapter{
		name:    opts.Name,
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return o.name }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature *float32        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

// openAIMessage content is either a plain string or a list of typed parts.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAIAdapter) Stream(ctx context.Context, req Request) (Stream, error) {
	payload := openAIChatRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", o.name, err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", o.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", o.name, ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Provider: o.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &openAIStream{name: o.name, body: resp.Body, scanner: scanner}, nil
}

type openAIStream struct {
	name    string
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *openAIStream) Next() (string, error) {
	for !s.done && s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			break
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("%s: decode chunk: %w", s.name, err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("%s: %s", s.name, chunk.Error.Message)
		}
		var b strings.Builder
		for _, c := range chunk.Choices {
			b.WriteString(c.Delta.Content)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("%s: read stream: %w", s.name, err)
	}
	return "", io.EOF
}

func (s *openAIStream) Close() error { return s.body.Close() }

func toOpenAIMessages(msgs []Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		hasImage := false
		for _, p := range m.Parts {
			if p.IsImage() {
				hasImage = true
				break
			}
		}
		if !hasImage {
			var text strings.Builder
			for _, p := range m.Parts {
				text.WriteString(p.Text)
			}
			out = append(out, openAIMessage{Role: m.Role, Content: text.String()})
			continue
		}

		parts := make([]openAIContentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch {
			case len(p.InlineData) > 0:
				url := "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData)
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: url}})
			case p.ImageURL != "":
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: p.ImageURL}})
			default:
				parts = append(parts, openAIContentPart{Type: "text", Text: p.Text})
			}
		}
		out = append(out, openAIMessage{Role: m.Role, Content: parts})
	}
	return out
}
