package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steveyiyo/voicecoach-backend/internal/repo/memory"
)

type HistoryHandler struct {
	Repo *memory.Store
}

func NewHistoryHandler(repo *memory.Store) *HistoryHandler {
	return &HistoryHandler{Repo: repo}
}

// List returns the user's past conversations, most recent first.
func (h *HistoryHandler) List(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.Repo.History(user)})
}
