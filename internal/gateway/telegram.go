package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rahul/consolenano/internal/panel"
)

// botAPI is the part of *tgbotapi.BotAPI the gateway uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

// TelegramGateway forwards chat messages to the panel and mirrors the panel
// into the chat. It implements panel.Display.
type TelegramGateway struct {
	Bot    botAPI
	Panel  Executor
	Logger *zap.Logger

	mu       sync.Mutex
	chatID   int64
	fixed    bool
	lastText string
}

var (
	_ Messenger     = (*TelegramGateway)(nil)
	_ panel.Display = (*TelegramGateway)(nil)
)

// NewTelegramGateway authorizes token. A non-zero chatID restricts the bot to
// that chat.
func NewTelegramGateway(token string, chatID int64, logger *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	tg := newTelegramGateway(bot, chatID, logger)
	tg.Logger.Info("authorized", zap.String("account", bot.Self.UserName))
	return tg, nil
}

func newTelegramGateway(bot botAPI, chatID int64, logger *zap.Logger) *TelegramGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramGateway{
		Bot:    bot,
		Logger: logger.Named("telegram"),
		chatID: chatID,
		fixed:  chatID != 0,
	}
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	if tg.Panel == nil {
		return fmt.Errorf("telegram: no panel attached")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			tg.handle(ctx, update)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.Text == "" || !tg.accept(m.Chat.ID) {
		return
	}
	tg.Logger.Debug("message", zap.Int64("chat", m.Chat.ID), zap.String("text", m.Text))

	text := m.Text
	if text == "/start" {
		text = "/home"
	}
	if err := tg.Panel.Execute(ctx, text); err != nil {
		tg.Logger.Warn("execute", zap.String("text", text), zap.Error(err))
	}
}

// accept binds the gateway to the first chat that writes, unless a chat was
// configured.
func (tg *TelegramGateway) accept(chatID int64) bool {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.chatID == 0 {
		tg.chatID = chatID
	}
	if chatID != tg.chatID {
		if tg.fixed {
			tg.Logger.Warn("ignoring message from foreign chat", zap.Int64("chat", chatID))
		}
		return false
	}
	return true
}

// Render sends the plain-text view to the bound chat. Identical consecutive
// views are sent once.
func (tg *TelegramGateway) Render(v panel.View) error {
	text := panel.Text(v)
	tg.mu.Lock()
	chatID := tg.chatID
	if chatID == 0 || text == "" || text == tg.lastText {
		tg.mu.Unlock()
		return nil
	}
	tg.lastText = text
	tg.mu.Unlock()
	return tg.Send(strconv.FormatInt(chatID, 10), text)
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	_, err = tg.Bot.Send(tgbotapi.NewMessage(id, text))
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
