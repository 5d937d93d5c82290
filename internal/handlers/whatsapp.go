package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/congelados/vendedor/internal/channel/whatsapp"
	"github.com/congelados/vendedor/internal/reply"
)

// WhatsAppSender delivers replies to WhatsApp users.
type WhatsAppSender interface {
	Enabled() bool
	Send(ctx context.Context, to, text string) error
}

// WhatsAppHandler serves the Cloud API webhook.
type WhatsAppHandler struct {
	logger      *slog.Logger
	verifyToken string
	sender      WhatsAppSender
	conv        Conversation
}

// NewWhatsAppHandler creates the WhatsApp webhook handler.
func NewWhatsAppHandler(log *slog.Logger, verifyToken string, sender WhatsAppSender, conv Conversation) *WhatsAppHandler {
	return &WhatsAppHandler{
		logger:      log.With(slog.String("handler", "whatsapp")),
		verifyToken: verifyToken,
		sender:      sender,
		conv:        conv,
	}
}

// Register mounts GET and POST /webhook/whatsapp.
func (h *WhatsAppHandler) Register(e *echo.Echo) {
	e.GET("/webhook/whatsapp", h.Verify)
	e.POST("/webhook/whatsapp", h.Inbound)
}

// Verify echoes hub.challenge when hub.verify_token matches.
func (h *WhatsAppHandler) Verify(c echo.Context) error {
	challenge, ok := whatsapp.Verify(h.verifyToken,
		c.QueryParam("hub.mode"), c.QueryParam("hub.verify_token"), c.QueryParam("hub.challenge"))
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, challenge)
}

// Inbound answers every text message in the notification. Delivery failures are logged and
// still acknowledged so the platform does not redeliver the notification.
func (h *WhatsAppHandler) Inbound(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body failed")
	}
	messages, err := whatsapp.ParseWebhook(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	for _, m := range messages {
		userID := whatsapp.UserID(m.From)
		out := h.conv.Handle(ctx, userID, m.Text)
		if h.sender == nil || !h.sender.Enabled() {
			h.logger.Warn("whatsapp sender disabled, reply dropped", slog.String("user_id", userID))
			continue
		}
		if err := h.sender.Send(ctx, m.From, reply.Format(out.Text, reply.ChannelPlain)); err != nil {
			h.logger.Error("whatsapp send failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
