package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/models"
)

// ProfileAuthorizer resolves a user id to an authorized profile.
type ProfileAuthorizer interface {
	Authorize(ctx context.Context, userID string) (*models.UserProfile, error)
}

// RequireAdmin lets the request through only for admin profiles. It must run
// after VerifyToken.
func RequireAdmin(authorizer ProfileAuthorizer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		profile, err := authorizer.Authorize(c.Request.Context(), userID)
		if err != nil || !profile.IsAdmin() {
			if err != nil {
				logger.Info("admin check failed", zap.String("userId", userID), zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Administrator access required", Code: "forbidden"})
			return
		}
		c.Next()
	}
}
