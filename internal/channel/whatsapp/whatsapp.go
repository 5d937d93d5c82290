// Package whatsapp talks to the WhatsApp Cloud API: it parses webhook payloads and sends
// text replies through the Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/congelados/vendedor/internal/config"
)

// ErrDisabled is returned by Send when no access token or phone number id is configured.
var ErrDisabled = errors.New("whatsapp sender not configured")

// Client sends text messages from one business phone number.
type Client struct {
	logger        *slog.Logger
	baseURL       string
	accessToken   string
	phoneNumberID string
	http          *http.Client
}

// NewClient builds a client from cfg. A client without credentials can still be used to
// verify webhooks; Send returns ErrDisabled.
func NewClient(log *slog.Logger, cfg config.WhatsAppConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = config.DefaultWhatsAppAPIBaseURL
	}
	return &Client{
		logger:        log.With(slog.String("adapter", "whatsapp")),
		baseURL:       base,
		accessToken:   strings.TrimSpace(cfg.AccessToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether Send can deliver.
func (c *Client) Enabled() bool {
	return c.accessToken != "" && c.phoneNumberID != ""
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// Send delivers text to the phone number to.
func (c *Client) Send(ctx context.Context, to, text string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("whatsapp recipient is required")
	}
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	c.logger.Debug("message sent", slog.String("to", to))
	return nil
}

// Verify answers the webhook subscription handshake. It returns the challenge to echo back
// when mode is "subscribe" and token matches verifyToken.
func Verify(verifyToken, mode, token, challenge string) (string, bool) {
	if verifyToken == "" || mode != "subscribe" || token != verifyToken {
		return "", false
	}
	return challenge, true
}
