package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/metrics"
)

// userIDKey holds the authenticated user id in the gin context.
const userIDKey = "user_id"

// RequireAuth accepts "Authorization: Bearer <jwt>" and stores the token
// subject as the caller's user id.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, svcErr.Unauthenticated("missing bearer token"))
			return
		}

		userID, err := verifier.Subject(strings.TrimSpace(token))
		if err != nil {
			abortWithError(c, svcErr.Unauthenticated("invalid token"))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// CurrentUser returns the id stored by RequireAuth.
func CurrentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
