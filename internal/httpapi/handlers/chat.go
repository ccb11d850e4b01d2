package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"github.com/suPer8Hu/hotel-concierge/internal/httpapi/middleware"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

func (h *Handler) CreateChatSession(c *gin.Context) {
	id, err := h.Chat.NewSessionID()
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"session_id": id})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("session_id and message are required"))
		return
	}

	s, err := h.Chat.Chat(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		h.fail(c, err, zap.String("session_id", req.SessionID))
		return
	}
	defer s.Close()

	reply, err := s.Collect()
	if err != nil {
		h.fail(c, err, zap.String("session_id", req.SessionID))
		return
	}
	common.OK(c, gin.H{"session_id": req.SessionID, "reply": reply})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	sessionID := c.Param("session_id")
	msgs, err := h.Chat.History(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err, zap.String("session_id", sessionID))
		return
	}
	common.OK(c, gin.H{"session_id": sessionID, "messages": msgs})
}

func (h *Handler) SendChatMessageStream(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("session_id and message are required"))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.fail(c, apperr.Internal(errors.New("response writer cannot flush"), "streaming unsupported"))
		return
	}

	ctx := c.Request.Context()
	s, err := h.Chat.Chat(ctx, req.SessionID, req.Message)
	if err != nil {
		h.fail(c, err, zap.String("session_id", req.SessionID))
		return
	}
	defer s.Close()

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			// last-resort: send a simple error that won't break SSE framing
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"type\":\"error\",\"message\":\"internal error\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\n", event)
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	chunks := s.Chunks()
	for {
		select {
		case chunk, ok := <-chunks:
			if ok {
				writeJSON("chunk", gin.H{"type": "chunk", "delta": chunk})
				continue
			}
			err := s.Err()
			if err == nil {
				writeJSON("done", gin.H{"type": "done", "session_id": req.SessionID})
				return
			}
			if ctx.Err() != nil {
				// client is gone
				return
			}
			if apperr.KindOf(err) == apperr.KindInternal {
				h.Log.Error("chat stream failed",
					zap.String("request_id", middleware.GetRequestID(c)),
					zap.String("session_id", req.SessionID),
					zap.Error(err))
			}
			_, code := common.StatusOf(err)
			writeJSON("error", gin.H{"type": "error", "code": code, "message": apperr.PublicMessage(err)})
			return

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case <-ctx.Done():
			return
		}
	}
}
