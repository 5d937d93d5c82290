package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/congelados/vendedor/internal/conversation"
	"github.com/congelados/vendedor/internal/version"
)

const bannerMessage = "Tu Vendedor Inteligente está activo 🤖"

// Stats reports live counters.
type Stats interface {
	Stats() conversation.Stats
}

// SystemHandler serves liveness, banner, stats and metrics.
type SystemHandler struct {
	logger  *slog.Logger
	stats   Stats
	metrics http.Handler
	now     func() time.Time
}

// NewSystemHandler creates the system handler. metrics may be nil.
func NewSystemHandler(log *slog.Logger, stats Stats, metrics http.Handler) *SystemHandler {
	return &SystemHandler{
		logger:  log.With(slog.String("handler", "system")),
		stats:   stats,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register mounts /, /ping, /health, /stats and /metrics.
func (h *SystemHandler) Register(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.PingHead)
	e.GET("/stats", h.Stats)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
}

type bannerResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Estado  string `json:"estado"`
}

// Root returns the service banner.
func (h *SystemHandler) Root(c echo.Context) error {
	info := version.Get()
	return c.JSON(http.StatusOK, bannerResponse{
		Message: bannerMessage,
		Version: info.Version,
		Commit:  info.Commit,
		Estado:  "optimizado",
	})
}

// Ping returns 200 JSON {"status":"ok"}.
func (h *SystemHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Health returns the liveness timestamp.
func (h *SystemHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
	})
}

// PingHead returns 200 No Content for health checks.
func (h *SystemHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Stats returns active sessions, cached intents and catalog size.
func (h *SystemHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stats.Stats())
}
