package providers

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGeminiContents(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Parts: []Part{
			{Text: "what is this?"},
			{ImageURL: "gs://bucket/cell.png", MimeType: "image/png"},
		}},
		{Role: RoleAssistant, Parts: []Part{{Text: "a cell"}}},
		{Role: RoleUser, Parts: []Part{
			{Text: "and this?"},
			{InlineData: []byte{0x89, 0x50}, MimeType: "image/png"},
		}},
	}

	history, last, err := toGeminiContents(msgs)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, genai.Text("what is this?"), history[0].Parts[0])
	assert.Equal(t, genai.FileData{MIMEType: "image/png", URI: "gs://bucket/cell.png"}, history[0].Parts[1])
	assert.Equal(t, "model", history[1].Role)

	assert.Equal(t, "user", last.Role)
	require.Len(t, last.Parts, 2)
	assert.Equal(t, genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 0x50}}, last.Parts[1])
}

func TestToGeminiContentsRequiresUserLast(t *testing.T) {
	_, _, err := toGeminiContents([]Message{{Role: RoleAssistant, Parts: []Part{{Text: "hi"}}}})
	assert.Error(t, err)

	_, _, err = toGeminiContents(nil)
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Hel"), genai.Text("lo")}},
	}}}
	assert.Equal(t, "Hello", responseText(resp))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(nil))
}
