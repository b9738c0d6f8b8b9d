package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steveyiyo/voicecoach-backend/internal/config"
	"github.com/steveyiyo/voicecoach-backend/internal/core/agent"
	"github.com/steveyiyo/voicecoach-backend/internal/core/gemini"
	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/session"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/internal/http/handlers"
	"github.com/steveyiyo/voicecoach-backend/internal/logging"
	"github.com/steveyiyo/voicecoach-backend/internal/repo/memory"
	"github.com/steveyiyo/voicecoach-backend/pkg/ws"
)

func NewRouter(cfg config.Config) *gin.Engine {
	r := gin.Default()

	repo := memory.NewStore()
	gate := quota.NewMemoryMeter(cfg.OrdinaryPerDay, cfg.PremiumPerDay)
	hub := ws.NewHub()

	engineCfg := voice.Config{
		Agent: agent.Config{
			Endpoint: cfg.AgentEndpoint,
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.LiveModel,
		},
		Scoring: scoring.DefaultConfig(),
	}
	if cfg.GeminiAPIKey != "" {
		fb, err := gemini.New(cfg.GeminiAPIKey, cfg.FeedbackModel)
		if err != nil {
			logging.Sugar().Warnw("feedback client unavailable", "err", err)
		} else {
			engineCfg.Feedback = fb.Feedback
		}
	}

	svc := session.NewService(repo, gate, engineCfg)

	sh := handlers.NewSessionsHandler(svc, cfg.PublicScheme, cfg.PublicHost)
	wsh := handlers.NewStreamHandler(hub, svc)
	hh := handlers.NewHistoryHandler(repo)
	sch := handlers.NewScoreHandler(engineCfg.Scoring)

	api := r.Group("/v1")
	api.POST("/sessions", sh.Create)
	api.GET("/sessions/:id/summary", sh.Summary)
	api.GET("/history", hh.List)
	api.POST("/score", sch.Score)
	r.GET("/v1/stream", wsh.WS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
