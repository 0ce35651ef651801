package worker

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// dedicatedAuthHeader is the header the coordinator presents a preshared
// key on, distinct from the generic Authorization header so that a
// misconfigured reverse proxy stripping standard auth headers can't
// silently disable this check.
const dedicatedAuthHeader = "X-Surveillance-Api-Key"

// AuthMiddleware validates a preshared API key on the dedicated header.
// An empty apiKey disables the check (local/dev use only); callers
// building cmd/worker and cmd/aggregator should refuse to start with an
// empty key outside of development.
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		presented := c.GetHeader(dedicatedAuthHeader)
		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + dedicatedAuthHeader})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid api key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
