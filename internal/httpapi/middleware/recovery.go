package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"go.uber.org/zap"
)

// Recovery turns a panic into the standard internal error envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
					zap.Stack("stack"))
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
