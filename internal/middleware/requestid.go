package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the response/log correlation header set on every
// HTTP form-POST and health request.
const RequestIDHeader = "X-Request-ID"

// RequestID stamps every request with a correlation id, echoing one the
// caller already supplied instead of minting a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
