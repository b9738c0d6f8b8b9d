package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

// ScoreHandler scores an arbitrary transcript without a live session. Useful
// for rescoring stored conversations after a tuning change.
type ScoreHandler struct {
	Cfg scoring.Config
}

func NewScoreHandler(cfg scoring.Config) *ScoreHandler {
	return &ScoreHandler{Cfg: cfg}
}

func (h *ScoreHandler) Score(c *gin.Context) {
	var req types.ScoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	c.JSON(http.StatusOK, h.Cfg.Score(req.Turns))
}
