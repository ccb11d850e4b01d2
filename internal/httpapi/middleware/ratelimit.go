package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (s *rateLimiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = l
	}
	return l
}

// RateLimit allows perMinute requests per client IP. perMinute <= 0 disables it.
func RateLimit(perMinute int, log *zap.Logger) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := &rateLimiterStore{
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip).Allow() {
			log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("request_id", GetRequestID(c)))
			common.Fail(c, http.StatusTooManyRequests, 42900, "rate limit exceeded, try again later")
			return
		}
		c.Next()
	}
}
