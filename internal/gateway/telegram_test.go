package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rahul/consolenano/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBot struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update)}
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), b.sent...)
}

type recordingExecutor struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (e *recordingExecutor) Execute(ctx context.Context, line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append(e.lines, line)
	return e.err
}

func (e *recordingExecutor) got() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

func update(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}}
}

func run(t *testing.T, tg *TelegramGateway) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Start(ctx) }()
	return cancel, done
}

func TestTelegramForwardsToPanel(t *testing.T) {
	bot := newFakeBot()
	exec := &recordingExecutor{err: errors.New("boom")}
	tg := newTelegramGateway(bot, 0, nil)
	tg.Panel = exec

	cancel, done := run(t, tg)
	bot.updates <- update(7, "create an s3 bucket")
	bot.updates <- update(7, "/start")
	bot.updates <- tgbotapi.Update{}
	bot.updates <- update(8, "not bound")
	bot.updates <- update(7, "/done")
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"create an s3 bucket", "/home", "/done"}, exec.got())
	bot.mu.Lock()
	assert.True(t, bot.stopped)
	bot.mu.Unlock()
}

func TestTelegramFixedChat(t *testing.T) {
	bot := newFakeBot()
	exec := &recordingExecutor{}
	tg := newTelegramGateway(bot, 42, nil)
	tg.Panel = exec

	cancel, done := run(t, tg)
	bot.updates <- update(7, "hello?")
	bot.updates <- update(42, "what is s3?")
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"what is s3?"}, exec.got())
}

func TestTelegramRenderSendsPlainText(t *testing.T) {
	bot := newFakeBot()
	tg := newTelegramGateway(bot, 0, nil)

	view := panel.View{Screen: panel.ScreenComplete, Question: "What is S3?", Answer: "Object storage."}
	// no chat bound yet
	require.NoError(t, tg.Render(view))
	assert.Empty(t, bot.messages())

	require.True(t, tg.accept(9))
	require.NoError(t, tg.Render(view))
	require.NoError(t, tg.Render(view))

	sent := bot.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(9), sent[0].ChatID)
	assert.Equal(t, panel.Text(view), sent[0].Text)
}

func TestTelegramSendRejectsBadChat(t *testing.T) {
	tg := newTelegramGateway(newFakeBot(), 0, nil)
	assert.Error(t, tg.Send("abc", "hi"))
	assert.Error(t, tg.Send("0", "hi"))
}

func TestTelegramStartNeedsPanel(t *testing.T) {
	tg := newTelegramGateway(newFakeBot(), 0, nil)
	assert.Error(t, tg.Start(context.Background()))
}

func TestTelegramStopsWhenUpdatesClose(t *testing.T) {
	bot := newFakeBot()
	tg := newTelegramGateway(bot, 0, nil)
	tg.Panel = &recordingExecutor{}

	done := make(chan error, 1)
	go func() { done <- tg.Start(context.Background()) }()
	close(bot.updates)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gateway did not stop")
	}
}
