package notify

import (
	"context"
	"fmt"
	"html"
	"sync"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Notifier posts short operator reports.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Nop discards reports.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

// TelegramNotifier sends reports to a Telegram chat. Sends are asynchronous;
// a failed send is logged and dropped.
type TelegramNotifier struct {
	bot    *tele.Bot
	chat   tele.ChatID
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New returns a TelegramNotifier, or Nop when token or chat is unset.
func New(token string, chat int64, logger *zap.Logger) (Notifier, error) {
	if token == "" || chat == 0 {
		return Nop{}, nil
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true, // send only, no polling
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chat: tele.ChatID(chat), logger: logger}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, text string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		_, err := n.bot.Send(n.chat, text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		if err != nil {
			n.logger.Warn("operator report failed", zap.Error(err))
		}
	}()
}

// Drain waits until reports already handed to n have been sent, or ctx ends.
func Drain(ctx context.Context, n Notifier) {
	t, ok := n.(*TelegramNotifier)
	if !ok {
		return
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Escape makes s safe inside an HTML parse-mode message.
func Escape(s string) string {
	return html.EscapeString(s)
}
