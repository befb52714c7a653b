package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/middleware"
)

// TurnHandler serves turn submission over Server-Sent Events and quota reads.
type TurnHandler struct {
	turns  core.TurnService
	logger *zap.Logger
}

// NewTurnHandler creates a new TurnHandler.
func NewTurnHandler(turns core.TurnService, logger *zap.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, logger: logger}
}

// SubmitTurn handles POST /api/v1/turns. Rejections are plain JSON errors;
// an admitted turn answers with an event stream that ends once every
// provider has finished or the client goes away.
func (h *TurnHandler) SubmitTurn(c *gin.Context) {
	userID := middleware.UserID(c)

	var req SubmitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return
	}
	turn, err := req.toTurn(userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	handles, decision, err := h.turns.Submit(ctx, turn)
	if err != nil {
		if errors.Is(err, core.ErrQuotaExceeded) {
			status, resp := mapError(err)
			resp.Quota = &decision
			c.JSON(status, resp)
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(EventTurn, StreamEvent{Type: EventTurn, TurnID: turn.ID, Quota: &decision})
	c.Writer.Flush()

	events := fanIn(ctx, turn.ID, handles)
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev)
		return true
	})
	h.logger.Debug("turn stream closed", zap.String("turnId", turn.ID), zap.Error(ctx.Err()))
}

// GetQuota handles GET /api/v1/quota. It never charges.
func (h *TurnHandler) GetQuota(c *gin.Context) {
	decision, err := h.turns.Quota(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
