package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/chat"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"github.com/suPer8Hu/hotel-concierge/internal/config"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi/middleware"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
	"go.uber.org/zap"
)

type Handler struct {
	Cfg      config.Config
	Chat     *chat.Manager
	Bookings *booking.Service
	Index    *knowledge.Index
	Log      *zap.Logger
}

func NewHandler(cfg config.Config, chatMgr *chat.Manager, bookings *booking.Service, index *knowledge.Index, log *zap.Logger) *Handler {
	return &Handler{Cfg: cfg, Chat: chatMgr, Bookings: bookings, Index: index, Log: log}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// Readyz reports ready once the startup knowledge ingestion has finished.
func (h *Handler) Readyz(c *gin.Context) {
	if !h.Index.Ready() {
		common.Fail(c, http.StatusServiceUnavailable, 50300, "knowledge base not ready")
		return
	}
	common.OK(c, gin.H{"ready": true, "chunks": h.Index.Len()})
}

// fail logs internal errors with the request context before writing the
// envelope; their detail never reaches the client.
func (h *Handler) fail(c *gin.Context, err error, fields ...zap.Field) {
	if apperr.KindOf(err) == apperr.KindInternal {
		fields = append(fields, zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		h.Log.Error("request failed", fields...)
	}
	common.FailErr(c, err)
}
