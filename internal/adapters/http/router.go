// Package http is the presentation boundary: a small gin API that forwards
// user intents to the session and streams its snapshots.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Session is the part of the orchestrator the presentation layer drives.
type Session interface {
	RequestStart(ctx context.Context) error
	RequestSkip(ctx context.Context) error
	RequestHangup(ctx context.Context) error
	RequestHome(ctx context.Context) error
	ToggleMute(ctx context.Context) error
	SendText(ctx context.Context, text string) error
	ToggleAutoReconnect(ctx context.Context) error
	ToggleTheme(ctx context.Context) error
	MarkRead(ctx context.Context) error
	DismissNotification(ctx context.Context) error
	Snapshot() domain.Snapshot
	Subscribe() (<-chan domain.Snapshot, func())
}

type MessageRequest struct {
	Text string `json:"text"`
}

// RequestIDMiddleware tags every request with an id, reusing the caller's.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, s Session, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Snapshot())
	})
	api.GET("/ws/state", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("ws state endpoint hit")
		serveState(ctx, c, s)
	})

	intents := map[string]func(context.Context) error{
		"start":          s.RequestStart,
		"skip":           s.RequestSkip,
		"hangup":         s.RequestHangup,
		"home":           s.RequestHome,
		"mute":           s.ToggleMute,
		"read":           s.MarkRead,
		"dismiss":        s.DismissNotification,
		"auto-reconnect": s.ToggleAutoReconnect,
		"theme":          s.ToggleTheme,
	}
	for name, intent := range intents {
		api.POST("/"+name, intentHandler(name, intent, s))
	}
	api.POST("/message", func(c *gin.Context) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid text"})
			return
		}
		if err := s.SendText(c.Request.Context(), req.Text); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	})

	return r
}

func intentHandler(name string, intent func(context.Context) error, s Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := intent(c.Request.Context()); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("intent", name).Msg("intent failed")
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.KindOf(err) == domain.KindSignalingUnreachable:
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
