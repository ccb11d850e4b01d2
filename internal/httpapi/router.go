package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi/handlers"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	if h.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(h.Log))
	r.Use(middleware.AccessLog(h.Log))
	if len(h.Cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  h.Cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders: []string{middleware.RequestIDHeader},
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/readyz", h.Readyz)

	chatGroup := r.Group("/chat")
	chatGroup.Use(middleware.RateLimit(h.Cfg.ChatRatePerMin, h.Log))
	chatGroup.POST("/sessions", h.CreateChatSession)
	chatGroup.POST("/messages", h.SendChatMessage)
	chatGroup.POST("/messages/stream", h.SendChatMessageStream)
	chatGroup.GET("/sessions/:session_id/messages", h.ListChatMessages)

	r.GET("/bookings", h.ListBookings)
	r.GET("/bookings/:booking_number", h.GetBooking)
	r.POST("/bookings/:booking_number/cancel", h.CancelBooking)
	r.PUT("/bookings/:booking_number/room-type", h.ChangeRoomType)

	r.POST("/admin/login", h.AdminLogin)
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	admin.GET("/knowledge", h.ListKnowledge)
	admin.POST("/knowledge", h.IngestKnowledge)
	admin.DELETE("/knowledge/:document_id", h.DeleteKnowledge)
	return r
}
