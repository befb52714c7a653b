package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/middleware"
)

// UserHandler handles user-profile related API endpoints.
type UserHandler struct {
	userService core.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, logger: logger}
}

// InitializeUserProfile handles POST /api/v1/users/initialize.
// Called after client-side sign-in; creates a pending profile on first use.
func (h *UserHandler) InitializeUserProfile(c *gin.Context) {
	userID := middleware.UserID(c)
	email := c.GetString(middleware.ContextUserEmail)
	displayName := c.GetString(middleware.ContextUserDisplayName)

	profile, created, err := h.userService.GetOrCreate(c.Request.Context(), userID, email, displayName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if created {
		h.logger.Info("user profile created", zap.String("userId", userID))
		c.JSON(http.StatusCreated, profile)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetCurrentUserProfile handles GET /api/v1/users/me. The raw status is
// returned so the client can tell a pending account from a banned one.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	profile, err := h.userService.GetByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
