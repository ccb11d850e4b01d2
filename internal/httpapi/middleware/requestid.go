package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

// RequestID reuses a sane incoming X-Request-Id or generates one, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = common.NewRequestID()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
