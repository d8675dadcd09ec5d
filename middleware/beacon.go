package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxBeaconBody = 1 << 20

// Beacon lets navigator.sendBeacon payloads, which arrive as text/plain,
// bind as JSON.
func Beacon() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.ContentType(), "text/plain") {
			c.Request.Header.Set("Content-Type", "application/json")
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBeaconBody)
		c.Next()
	}
}
