// Command gateway serves the OpenAI-to-Bedrock-Converse compatibility
// gateway. Wiring follows the graceful-shutdown shape of the teacher's
// gateway/main.go: signal.NotifyContext + http.Server.Shutdown on a bounded
// context.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/neboloop/bedrock-openai-gateway/internal/config"
	chathandler "github.com/neboloop/bedrock-openai-gateway/internal/handler/chat"
	"github.com/neboloop/bedrock-openai-gateway/internal/handler/health"
	modelshandler "github.com/neboloop/bedrock-openai-gateway/internal/handler/models"
	"github.com/neboloop/bedrock-openai-gateway/internal/middleware"
	"github.com/neboloop/bedrock-openai-gateway/internal/svc"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	useMemoryStore := os.Getenv("GATEWAY_MEMORY_STORE") == "true"
	svcCtx, err := svc.New(ctx, cfg, useMemoryStore)
	if err != nil {
		logx.Errorf("gateway: startup failed: %v", err)
		os.Exit(1)
	}

	c := cron.New()
	// Model-mapping override refresh: at most once per 60s (spec.md §5).
	_, err = c.AddFunc("@every 60s", func() {
		if err := svcCtx.Resolver.Refresh(ctx); err != nil {
			logx.Errorf("gateway: model mapping refresh failed: %v", err)
		}
	})
	if err != nil {
		logx.Errorf("gateway: failed to schedule model mapping refresh: %v", err)
	}
	// Rate-limit bucket reaper: runs every window, evicting buckets
	// untouched for more than 10x window (spec.md §4.2).
	_, err = c.AddFunc(fmt.Sprintf("@every %s", cfg.RateLimitWindow), func() {
		svcCtx.Limiter.Reap(10 * cfg.RateLimitWindow)
	})
	if err != nil {
		logx.Errorf("gateway: failed to schedule rate limit reaper: %v", err)
	}
	c.Start()
	defer c.Stop()

	router := buildRouter(svcCtx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.StreamTimeout,
	}

	go func() {
		<-ctx.Done()
		logx.Info("gateway: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Errorf("gateway: shutdown error: %v", err)
		}
	}()

	logx.Infof("gateway: listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Errorf("gateway: serve error: %v", err)
		os.Exit(1)
	}
}

func buildRouter(svcCtx *svc.ServiceContext) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/health", health.Live)
	r.Get("/ready", health.Ready(svcCtx))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(svcCtx.Authn))
		r.Use(middleware.RateLimit(svcCtx.Limiter, svcCtx.Config.RateLimitRequests, svcCtx.Config.RateLimitWindow, svcCtx.Config.RateLimitEnabled))

		r.Post("/v1/chat/completions", chathandler.CompletionsHandler(svcCtx))
		r.Get("/v1/models", modelshandler.Handler(svcCtx))
	})

	return r
}
