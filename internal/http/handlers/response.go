// Package handlers provides HTTP handler implementations for the public API.
//
// Every failure leaves through fail, which writes the shared error envelope:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "error": "Not Found",
//	  "statusCode": 404,
//	  "code": "not_found",
//	  "message": "alert not found"
//	}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/brokerage-alerts/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints. Error and
// StatusCode repeat the HTTP status for clients that only read the body.
type ErrorResponse struct {
	RequestID  string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Error      string `json:"error" example:"Not Found"`
	StatusCode int    `json:"statusCode" example:"404"`
	Code       string `json:"code" example:"not_found"`
	Message    string `json:"message" example:"alert not found"`
}

// fail aborts with the error envelope. 5xx are logged at error level with
// the request logger; client errors only at debug.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	ev := lg.Debug()
	if status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID:  middleware.RequestIDFrom(c),
		Error:      http.StatusText(status),
		StatusCode: status,
		Code:       code,
		Message:    msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// notModified sets etag and, when If-None-Match lists it (or "*"), answers
// 304 and reports true.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	for _, tag := range strings.Split(inm, ",") {
		if tag = strings.TrimSpace(tag); tag == etag || tag == "*" {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
