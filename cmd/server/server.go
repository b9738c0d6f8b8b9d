package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/steveyiyo/voicecoach-backend/internal/config"
	h "github.com/steveyiyo/voicecoach-backend/internal/http"
	"github.com/steveyiyo/voicecoach-backend/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Init()
	defer logging.Sync()

	cfg := config.Load()
	log := logging.Sugar()
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set; sessions will fail to connect")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h.NewRouter(cfg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown incomplete", "err", err)
	}
}
