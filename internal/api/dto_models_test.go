package api

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDecodeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	img, err := decodeImage("data:image/jpeg;base64,"+encoded, "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, pngHeader, img.Data)

	img, err = decodeImage(encoded, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType, "sniffed when not declared")

	img, err = decodeImage(encoded, "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MimeType)

	for name, raw := range map[string]string{
		"not base64":     "***",
		"data url plain": "data:image/png," + encoded,
		"empty":          "data:image/png;base64,",
		"not an image":   base64.StdEncoding.EncodeToString([]byte("just some text")),
	} {
		_, err := decodeImage(raw, "")
		assert.ErrorIs(t, err, core.ErrInvalidInput, name)
	}
}

func TestToTurn(t *testing.T) {
	req := SubmitTurnRequest{
		Messages:  []models.Message{{Role: models.RoleUserMessage, Content: models.Content{Text: "hi"}}},
		Providers: []string{"gemini"},
	}
	turn, err := req.toTurn("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", turn.UserID)
	assert.Nil(t, turn.Image)

	_, err = (&SubmitTurnRequest{Providers: []string{"gemini"}}).toTurn("alice")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{core.ErrUnauthenticated, 401, CodeUnauthenticated},
		{core.ErrForbidden, 403, CodeForbidden},
		{core.ErrQuotaExceeded, 429, CodeQuotaExceeded},
		{core.ErrInvalidInput, 400, CodeInvalidInput},
		{core.ErrUserNotFound, 404, CodeNotFound},
		{core.ErrSystem, 500, CodeInternal},
		{errors.New("boom"), 500, CodeInternal},
	}
	for _, tc := range tests {
		status, resp := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, resp.Code, tc.err.Error())
	}

	assert.Equal(t, CodeProviderUnavailable, providerErrorCode(core.ErrProviderUnavailable))
	assert.Equal(t, CodeSystemBusy, providerErrorCode(core.ErrProviderRateLimited))
	assert.Equal(t, CodeProviderError, providerErrorCode(core.ErrProviderUnknown))
}
