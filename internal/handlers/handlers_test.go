package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congelados/vendedor/internal/conversation"
	"github.com/congelados/vendedor/internal/event"
	"github.com/congelados/vendedor/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeConversation struct {
	mu     sync.Mutex
	calls  []string
	resets []string
}

func (f *fakeConversation) Handle(_ context.Context, userID, text string) conversation.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"|"+text)
	return conversation.Reply{
		Text:  "🧮 Tu pedido va así:\n- 2 x Empanadas = $3000",
		State: "total",
		Phase: session.PhaseAwaitingPayment,
	}
}

func (f *fakeConversation) Reset(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, userID)
	return "Conversación reiniciada", nil
}

func (f *fakeConversation) Stats() conversation.Stats {
	return conversation.Stats{ActiveSessions: 2, CacheEntries: 5, Products: 4}
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newDemo(conv *fakeConversation, hub *event.Hub) *echo.Echo {
	e := echo.New()
	var sub event.Subscriber
	if hub != nil {
		sub = hub
	}
	NewDemoHandler(quiet, conv, sub).Register(e)
	return e
}

func TestDemoMessage(t *testing.T) {
	conv := &fakeConversation{}
	e := newDemo(conv, nil)

	rec := serve(e, http.MethodPost, "/webhook/demo", `{"texto":"cuánto va el total","usuario_id":"web-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got demoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "🧮 Tu pedido va así:<br>- 2 x Empanadas = $3000", got.Respuesta)
	assert.Equal(t, "total", got.Estado)
	assert.Equal(t, session.PhaseAwaitingPayment, got.Fase)
	assert.Equal(t, []string{"web-1|cuánto va el total"}, conv.calls)
}

func TestDemoMessageEnglishFields(t *testing.T) {
	conv := &fakeConversation{}
	rec := serve(newDemo(conv, nil), http.MethodPost, "/webhook/demo", `{"text":"hola","user_id":"u2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u2|hola"}, conv.calls)
}

func TestDemoMessageRequiresUser(t *testing.T) {
	conv := &fakeConversation{}
	rec := serve(newDemo(conv, nil), http.MethodPost, "/webhook/demo", `{"texto":"hola"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, conv.calls)
}

func TestDemoReset(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   string
	}{
		{name: "usuario_id query", target: "/webhook/demo/reset?usuario_id=a", want: "a"},
		{name: "uid query", target: "/webhook/demo/reset?uid=b", want: "b"},
		{name: "json body", target: "/webhook/demo/reset", body: `{"usuario_id":"c"}`, want: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConversation{}
			rec := serve(newDemo(conv, nil), http.MethodPost, tt.target, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			var got resetResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, resetResponse{Status: "ok", Message: "Conversación reiniciada"}, got)
			assert.Equal(t, []string{tt.want}, conv.resets)
		})
	}
}

func TestDemoResetRequiresUser(t *testing.T) {
	rec := serve(newDemo(&fakeConversation{}, nil), http.MethodPost, "/webhook/demo/reset", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemoEvents(t *testing.T) {
	hub := event.NewHub()
	e := newDemo(&fakeConversation{}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/webhook/demo/events?usuario_id=web-1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(event.New(event.TypeOrderConfirmed, "web-1", map[string]int{"total": 3000}))
	hub.Publish(event.New(event.TypeTurn, "someone-else", nil))
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "event: order_confirmed\n")
	assert.Contains(t, body, `"total":3000`)
	assert.NotContains(t, body, "someone-else")
}

func TestDemoEventsDisabled(t *testing.T) {
	rec := serve(newDemo(&fakeConversation{}, nil), http.MethodGet, "/webhook/demo/events?usuario_id=a", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	e := echo.New()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("vendedor_sessions_active 2\n"))
	})
	h := NewSystemHandler(quiet, &fakeConversation{}, metrics)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	h.Register(e)

	rec := serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var banner bannerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &banner))
	assert.Equal(t, bannerMessage, banner.Message)
	assert.NotEmpty(t, banner.Version)

	rec = serve(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","timestamp":"2024-05-01T10:00:00Z"}`, rec.Body.String())

	rec = serve(e, http.MethodHead, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/ping", "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/stats", "")
	assert.JSONEq(t, `{"usuarios_activos":2,"cache_llm":5,"productos":4}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "vendedor_sessions_active 2")
}

type fakeSender struct {
	enabled bool
	sent    []string
}

func (s *fakeSender) Enabled() bool { return s.enabled }

func (s *fakeSender) Send(_ context.Context, to, text string) error {
	s.sent = append(s.sent, to+"|"+text)
	return nil
}

func TestWhatsAppVerify(t *testing.T) {
	e := echo.New()
	NewWhatsAppHandler(quiet, "secret", &fakeSender{}, &fakeConversation{}).Register(e)

	rec := serve(e, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = serve(e, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWhatsAppInbound(t *testing.T) {
	conv := &fakeConversation{}
	sender := &fakeSender{enabled: true}
	e := echo.New()
	NewWhatsAppHandler(quiet, "secret", sender, conv).Register(e)

	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[
		{"from":"57300","id":"wamid.1","type":"text","text":{"body":"cuánto va el total"}}]}}]}]}`
	rec := serve(e, http.MethodPost, "/webhook/whatsapp", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"whatsapp:57300|cuánto va el total"}, conv.calls)
	assert.Equal(t, []string{"57300|🧮 Tu pedido va así:\n- 2 x Empanadas = $3000"}, sender.sent)
}

func TestWhatsAppInboundWithoutSender(t *testing.T) {
	conv := &fakeConversation{}
	sender := &fakeSender{}
	e := echo.New()
	NewWhatsAppHandler(quiet, "secret", sender, conv).Register(e)

	body := `{"entry":[{"changes":[{"value":{"messages":[{"from":"57300","type":"text","text":{"body":"hola"}}]}}]}]}`
	rec := serve(e, http.MethodPost, "/webhook/whatsapp", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, conv.calls, 1)
	assert.Empty(t, sender.sent)

	rec = serve(e, http.MethodPost, "/webhook/whatsapp", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
