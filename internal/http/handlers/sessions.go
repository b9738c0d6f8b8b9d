package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/internal/core/session"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

type SessionsHandler struct {
	Svc    *session.Service
	Scheme string
	Host   string
}

func NewSessionsHandler(svc *session.Service, scheme, host string) *SessionsHandler {
	return &SessionsHandler{Svc: svc, Scheme: scheme, Host: host}
}

func (h *SessionsHandler) Create(c *gin.Context) {
	var req types.CreateSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	rec, err := h.Svc.Create(req.UserID, req.Persona)
	if err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "quota_exceeded",
				"category": string(voice.CategoryEntitlement),
				"message":  voice.CategoryEntitlement.Message(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	wsScheme := "ws"
	if h.Scheme == "https" {
		wsScheme = "wss"
	}
	c.JSON(http.StatusOK, types.CreateSessionResp{
		SessionID: rec.ID,
		WSURL:     wsScheme + "://" + h.Host + "/v1/stream?sess=" + rec.ID,
	})
}

func (h *SessionsHandler) Summary(c *gin.Context) {
	id := c.Param("id")
	sum, ok := h.Svc.Summary(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, sum)
}
