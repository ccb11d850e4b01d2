package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/auth"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
	"github.com/suPer8Hu/hotel-concierge/internal/knowledge"
	"go.uber.org/zap"
)

const adminTokenTTL = 12 * time.Hour

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("username and password are required"))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Cfg.AdminUser)) == 1
	if !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) || !userOK {
		h.Log.Warn("admin login rejected", zap.String("username", req.Username))
		common.Fail(c, http.StatusUnauthorized, 40100, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(h.Cfg.JWTSecret, req.Username, "admin", adminTokenTTL)
	if err != nil {
		h.fail(c, apperr.Internal(err, "sign token"))
		return
	}
	common.OK(c, gin.H{"token": token, "expires_in": int(adminTokenTTL.Seconds())})
}

func (h *Handler) ListKnowledge(c *gin.Context) {
	common.OK(c, gin.H{"documents": h.Index.Documents(), "chunks": h.Index.Len()})
}

type ingestReq struct {
	DocumentID string `json:"document_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

func (h *Handler) IngestKnowledge(c *gin.Context) {
	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("document_id and text are required"))
		return
	}
	res, err := h.Index.Ingest(c.Request.Context(), knowledge.Document{ID: req.DocumentID, Text: req.Text})
	if err != nil {
		h.fail(c, err, zap.String("document_id", req.DocumentID))
		return
	}
	common.OK(c, gin.H{"document_id": res.DocumentID, "chunks": res.Chunks, "skipped": res.Skipped})
}

func (h *Handler) DeleteKnowledge(c *gin.Context) {
	id := c.Param("document_id")
	if err := h.Index.Remove(c.Request.Context(), id); err != nil {
		h.fail(c, err, zap.String("document_id", id))
		return
	}
	common.OK(c, gin.H{"document_id": id, "deleted": true})
}
