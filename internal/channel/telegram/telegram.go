// Package telegram answers customers over Telegram long polling.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/congelados/vendedor/internal/conversation"
	"github.com/congelados/vendedor/internal/reply"
)

// Conversation is the part of the conversation service the poller drives.
type Conversation interface {
	Handle(ctx context.Context, userID, text string) conversation.Reply
	Reset(ctx context.Context, userID string) (string, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Poller receives updates with getUpdates and replies in the same chat.
type Poller struct {
	logger *slog.Logger
	token  string
	conv   Conversation

	mu     sync.Mutex
	bot    *tgbotapi.BotAPI
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller; it does nothing until Start.
func NewPoller(log *slog.Logger, token string, conv Conversation) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		logger: log.With(slog.String("adapter", "telegram")),
		token:  strings.TrimSpace(token),
		conv:   conv,
	}
}

// Enabled reports whether a bot token is configured.
func (p *Poller) Enabled() bool {
	return p.token != ""
}

// Start connects to the Bot API and begins polling in the background.
func (p *Poller) Start(ctx context.Context) error {
	if !p.Enabled() {
		return errors.New("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(p.token)
	if err != nil {
		return err
	}
	p.logger.Info("start", slog.String("bot", bot.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := bot.GetUpdatesChan(updateConfig)
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	p.mu.Lock()
	p.bot, p.cancel, p.done = bot, cancel, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					p.logger.Info("updates channel closed")
					return
				}
				go p.handleUpdate(pollCtx, bot, update)
			}
		}
	}()
	return nil
}

// Stop ends polling and waits for the receive loop to exit.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	bot, cancel, done := p.bot, p.cancel, p.done
	p.bot, p.cancel, p.done = nil, nil, nil
	p.mu.Unlock()
	if bot == nil {
		return nil
	}
	p.logger.Info("stop")
	cancel()
	bot.StopReceivingUpdates()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) handleUpdate(ctx context.Context, bot sender, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	userID := UserID(msg.Chat.ID)

	var answer string
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		answer = p.conv.Handle(ctx, userID, "hola").Text
	case msg.IsCommand() && msg.Command() == "reset":
		ack, err := p.conv.Reset(ctx, userID)
		if err != nil {
			p.logger.Error("reset failed", slog.String("user_id", userID), slog.Any("error", err))
			return
		}
		answer = ack
	default:
		answer = p.conv.Handle(ctx, userID, text).Text
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Format(answer, reply.ChannelPlain))
	out.ReplyToMessageID = msg.MessageID
	if _, err := bot.Send(out); err != nil {
		p.logger.Error("send failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// UserID maps a chat to a session key.
func UserID(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}
