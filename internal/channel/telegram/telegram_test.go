package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congelados/vendedor/internal/conversation"
)

type fakeConversation struct {
	mu     sync.Mutex
	texts  []string
	resets []string
	err    error
}

func (f *fakeConversation) Handle(_ context.Context, userID, text string) conversation.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, userID+"|"+text)
	return conversation.Reply{Text: "Total: $3000<br>:blush:", State: "total"}
}

func (f *fakeConversation) Reset(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, userID)
	return "Conversación reiniciada", f.err
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func update(text string, command bool) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: 42},
	}
	if command {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestHandleUpdateFormatsPlainText(t *testing.T) {
	conv := &fakeConversation{}
	bot := &fakeSender{}
	p := NewPoller(nil, "token", conv)

	p.handleUpdate(context.Background(), bot, update("cuánto va el total", false))

	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, 7, bot.sent[0].ReplyToMessageID)
	assert.Equal(t, "Total: $3000\n😊", bot.sent[0].Text)
	assert.Equal(t, []string{"telegram:42|cuánto va el total"}, conv.texts)
}

func TestStartCommandGreets(t *testing.T) {
	conv := &fakeConversation{}
	p := NewPoller(nil, "token", conv)
	p.handleUpdate(context.Background(), &fakeSender{}, update("/start", true))
	assert.Equal(t, []string{"telegram:42|hola"}, conv.texts)
}

func TestResetCommand(t *testing.T) {
	conv := &fakeConversation{}
	bot := &fakeSender{}
	p := NewPoller(nil, "token", conv)
	p.handleUpdate(context.Background(), bot, update("/reset", true))

	assert.Equal(t, []string{"telegram:42"}, conv.resets)
	assert.Empty(t, conv.texts)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "Conversación reiniciada", bot.sent[0].Text)
}

func TestResetFailureSendsNothing(t *testing.T) {
	conv := &fakeConversation{err: errors.New("closed")}
	bot := &fakeSender{}
	NewPoller(nil, "token", conv).handleUpdate(context.Background(), bot, update("/reset", true))
	assert.Empty(t, bot.sent)
}

func TestIgnoresEmptyUpdates(t *testing.T) {
	conv := &fakeConversation{}
	bot := &fakeSender{}
	p := NewPoller(nil, "token", conv)
	p.handleUpdate(context.Background(), bot, tgbotapi.Update{})
	p.handleUpdate(context.Background(), bot, update("   ", false))
	assert.Empty(t, bot.sent)
	assert.Empty(t, conv.texts)
}

func TestStartWithoutToken(t *testing.T) {
	p := NewPoller(nil, " ", &fakeConversation{})
	assert.False(t, p.Enabled())
	assert.Error(t, p.Start(context.Background()))
	assert.NoError(t, p.Stop(context.Background()))
}
