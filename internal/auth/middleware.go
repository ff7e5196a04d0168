package auth

import (
	"net/http"
	"strings"
	"time"

	"tenant-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// MessageUnauthorized is the body message for every 401 response.
const MessageUnauthorized = "Unauthorized"

// RequireAccessToken verifies an access token and injects the principal into request context.
// It does not perform organization checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MessageUnauthorized})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MessageUnauthorized})
			return
		}

		ctx := WithPrincipal(c.Request.Context(), claims.PrincipalID)
		ctx = logger.With(ctx, logger.FromGin(c).With("principal_id", claims.PrincipalID))
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("principal_id", claims.PrincipalID)

		c.Next()
	}
}
