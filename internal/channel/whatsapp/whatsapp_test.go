package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congelados/vendedor/internal/config"
)

func TestSend(t *testing.T) {
	var got sendRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(nil, config.WhatsAppConfig{AccessToken: "tok", PhoneNumberID: "123", APIBaseURL: srv.URL + "/"})
	require.NoError(t, c.Send(context.Background(), "5730012345", "hola"))

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "/123/messages", path)
	assert.Equal(t, sendRequest{MessagingProduct: "whatsapp", To: "5730012345", Type: "text", Text: textBody{Body: "hola"}}, got)
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(nil, config.WhatsAppConfig{AccessToken: "bad", PhoneNumberID: "123", APIBaseURL: srv.URL})
	err := c.Send(context.Background(), "57300", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid token")
}

func TestSendDisabled(t *testing.T) {
	c := NewClient(nil, config.WhatsAppConfig{})
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.Send(context.Background(), "57300", "hola"), ErrDisabled)
}

func TestVerify(t *testing.T) {
	challenge, ok := Verify("secret", "subscribe", "secret", "1158201444")
	assert.True(t, ok)
	assert.Equal(t, "1158201444", challenge)

	_, ok = Verify("secret", "subscribe", "wrong", "x")
	assert.False(t, ok)
	_, ok = Verify("secret", "unsubscribe", "secret", "x")
	assert.False(t, ok)
	_, ok = Verify("", "subscribe", "", "x")
	assert.False(t, ok)
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "id": "WABA",
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messaging_product": "whatsapp",
	        "contacts": [{"wa_id": "5730012345", "profile": {"name": "Ana"}}],
	        "messages": [
	          {"from": "5730012345", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": " quiero 2 empanadas "}},
	          {"from": "5730012345", "id": "wamid.2", "timestamp": "1700000001", "type": "image"},
	          {"from": "5730099999", "id": "wamid.3", "timestamp": "1700000002", "type": "text", "text": {"body": "hola"}}
	        ]
	      }
	    }]
	  }]
	}`)
	got, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, []Inbound{
		{From: "5730012345", ID: "wamid.1", Text: "quiero 2 empanadas"},
		{From: "5730099999", ID: "wamid.3", Text: "hola"},
	}, got)
	assert.Equal(t, "whatsapp:5730012345", UserID(got[0].From))
}

func TestParseWebhookStatusOnly(t *testing.T) {
	got, err := ParseWebhook([]byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1"}]}}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}
