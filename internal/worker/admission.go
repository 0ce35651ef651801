package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultMaxEvents = 100_000

// AdmissionMiddleware rejects oversized request bodies before the JSON
// decoder ever touches them. The event-list length cap is applied after
// decoding, by Service.handleDetect. maxBytes <= 0 disables the body-size
// check.
func AdmissionMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
