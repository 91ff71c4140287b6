package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Abort stops the chain with the JSON error envelope shared by every endpoint:
//
//	{"request_id": "...", "error": "Not Found", "statusCode": 404,
//	 "code": "not_found", "message": "alert not found"}
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"error":      http.StatusText(status),
		"statusCode": status,
		"code":       code,
		"message":    msg,
	})
}

// RequestIDFrom returns the correlation id set by RequestID, falling back to
// the response header.
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}
