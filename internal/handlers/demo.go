package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/congelados/vendedor/internal/conversation"
	"github.com/congelados/vendedor/internal/event"
	"github.com/congelados/vendedor/internal/reply"
	"github.com/congelados/vendedor/internal/session"
)

// Conversation is the conversation service as seen by the HTTP layer.
type Conversation interface {
	Handle(ctx context.Context, userID, text string) conversation.Reply
	Reset(ctx context.Context, userID string) (string, error)
	Stats() conversation.Stats
}

// DemoHandler serves the web chat endpoints under /webhook/demo.
type DemoHandler struct {
	logger *slog.Logger
	conv   Conversation
	events event.Subscriber
}

// NewDemoHandler creates the web chat handler. events may be nil, which disables the stream.
func NewDemoHandler(log *slog.Logger, conv Conversation, events event.Subscriber) *DemoHandler {
	return &DemoHandler{
		logger: log.With(slog.String("handler", "demo")),
		conv:   conv,
		events: events,
	}
}

// Register mounts the web chat routes.
func (h *DemoHandler) Register(e *echo.Echo) {
	group := e.Group("/webhook/demo")
	group.POST("", h.Message)
	group.POST("/reset", h.Reset)
	group.GET("/events", h.Events)
}

// demoRequest accepts both the Spanish and English field names.
type demoRequest struct {
	Texto     string `json:"texto"`
	Text      string `json:"text"`
	UsuarioID string `json:"usuario_id"`
	UserID    string `json:"user_id"`
	UID       string `json:"uid"`
}

func (r demoRequest) text() string {
	return firstNonEmpty(r.Texto, r.Text)
}

func (r demoRequest) userID() string {
	return firstNonEmpty(r.UsuarioID, r.UserID, r.UID)
}

type demoResponse struct {
	Respuesta string        `json:"respuesta"`
	Estado    string        `json:"estado"`
	Fase      session.Phase `json:"fase"`
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Message handles one customer message and returns the web-formatted reply.
func (h *DemoHandler) Message(c echo.Context) error {
	var req demoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := req.userID()
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "usuario_id is required")
	}
	out := h.conv.Handle(c.Request().Context(), userID, req.text())
	return c.JSON(http.StatusOK, demoResponse{
		Respuesta: reply.Format(out.Text, reply.ChannelWeb),
		Estado:    out.State,
		Fase:      out.Phase,
	})
}

// Reset drops the session named by the usuario_id or uid query parameter, or the JSON body.
func (h *DemoHandler) Reset(c echo.Context) error {
	userID := firstNonEmpty(c.QueryParam("usuario_id"), c.QueryParam("uid"), c.QueryParam("user_id"))
	if userID == "" && c.Request().ContentLength != 0 {
		var req demoRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid reset body")
		}
		userID = req.userID()
	}
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "usuario_id is required")
	}
	ack, err := h.conv.Reset(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("reset failed", slog.String("user_id", userID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, resetResponse{Status: "ok", Message: ack})
}

// Events streams order events of one user (or "*" for all) as server-sent events.
func (h *DemoHandler) Events(c echo.Context) error {
	if h.events == nil {
		return echo.NewHTTPError(http.StatusNotFound, "event stream disabled")
	}
	userID := firstNonEmpty(c.QueryParam("usuario_id"), c.QueryParam("uid"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "usuario_id is required")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	writer := bufio.NewWriter(c.Response().Writer)

	streamID, stream, cancel := h.events.Subscribe(userID, event.DefaultBufferSize)
	defer cancel()
	h.logger.Debug("event stream opened", slog.String("user_id", userID), slog.String("stream_id", streamID))

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			data, err := formatStreamEvent(ev)
			if err != nil {
				continue
			}
			_, _ = writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, data))
			_ = writer.Flush()
			flusher.Flush()
		}
	}
}

func formatStreamEvent(ev event.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
