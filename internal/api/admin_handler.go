package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/models"
	"tutorgate-backend-go/internal/providers"
)

// AdminHandler serves the administrator endpoints.
type AdminHandler struct {
	userService core.UserService
	table       *providers.Table
	logger      *zap.Logger
}

func NewAdminHandler(us core.UserService, table *providers.Table, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{userService: us, table: table, logger: logger}
}

// UpdateUser handles PATCH /api/v1/admin/users/:userId.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	userID := c.Param("userId")
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return
	}
	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("user profile updated by admin", zap.String("userId", userID))
	c.JSON(http.StatusOK, profile)
}

// SetProviderMaintenance handles PUT /api/v1/admin/providers/:providerId/maintenance.
func (h *AdminHandler) SetProviderMaintenance(c *gin.Context) {
	id := c.Param("providerId")
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return
	}
	if err := h.table.SetMaintenance(id, *req.Maintenance); err != nil {
		respondError(c, h.logger, err)
		return
	}
	capability, _ := h.table.Lookup(id)
	h.logger.Info("provider maintenance changed", zap.String("provider", id), zap.Bool("maintenance", capability.Maintenance))
	c.JSON(http.StatusOK, providerStatus(capability))
}

// ListProviders handles GET /api/v1/providers, in table order.
func (h *AdminHandler) ListProviders(c *gin.Context) {
	out := make([]ProviderStatus, 0)
	for _, id := range h.table.IDs() {
		if capability, ok := h.table.Lookup(id); ok {
			out = append(out, providerStatus(capability))
		}
	}
	c.JSON(http.StatusOK, out)
}

func providerStatus(c providers.Capability) ProviderStatus {
	return ProviderStatus{
		ID:          c.ID,
		DisplayName: c.DisplayName,
		Multimodal:  c.Multimodal,
		Maintenance: c.Maintenance,
	}
}
