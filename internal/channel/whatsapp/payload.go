package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Webhook is the notification body posted by the Cloud API.
type Webhook struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Inbound is one customer text message.
type Inbound struct {
	From string
	ID   string
	Text string
}

// ParseWebhook decodes body and returns its text messages in delivery order. Status
// callbacks and non-text messages are skipped.
func ParseWebhook(body []byte) ([]Inbound, error) {
	var hook Webhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	var out []Inbound
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					continue
				}
				text := strings.TrimSpace(m.Text.Body)
				if text == "" || m.From == "" {
					continue
				}
				out = append(out, Inbound{From: m.From, ID: m.ID, Text: text})
			}
		}
	}
	return out, nil
}

// UserID maps a WhatsApp sender to a session key.
func UserID(from string) string {
	return "whatsapp:" + from
}
