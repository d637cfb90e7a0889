package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bracket_bot/internal/models"
	"bracket_bot/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
	Confirm(ctx context.Context, prompt string, timeout time.Duration) bool
}

// PositionsSource: откуда /positions берёт позиции.
type PositionsSource interface {
	QueryPositions(ctx context.Context) ([]models.PositionRecord, error)
}

// Telegram: алерты + подтверждение входа + команда /positions.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	src    PositionsSource

	mu       sync.Mutex
	pendings map[string]*pending
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

func NewTelegram(token string, chatID int64, src PositionsSource) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      b,
		chatID:   chatID,
		src:      src,
		pendings: make(map[string]*pending),
	}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("[TG] send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// HandleCallback: ответы на кнопки CONF::token / REJ::token.
func (t *Telegram) HandleCallback(cb *tgbot.CallbackQuery) {
	if t == nil || t.bot == nil || cb == nil {
		return
	}

	// гасим спиннер
	_, _ = t.bot.Request(tgbot.NewCallback(cb.ID, ""))

	verb, token, ok := strings.Cut(cb.Data, "::")
	if !ok || verb == "" || token == "" {
		return
	}

	t.mu.Lock()
	p, ok := t.pendings[token]
	delete(t.pendings, token)
	t.mu.Unlock()
	if !ok {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted

	status := "❌ Отклонено"
	if accepted {
		status = "✅ Подтверждено"
	}
	_ = t.editReplyMarkupRemove(p.msgID)
	_ = t.editText(p.msgID, fmt.Sprintf("%s\n\n%s", p.prompt, status))
}

func (t *Telegram) editReplyMarkupRemove(msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, err := t.bot.Request(tgbot.NewEditMessageReplyMarkup(t.chatID, msgID, rm))
	return err
}

func (t *Telegram) editText(msgID int, text string) error {
	_, err := t.bot.Request(tgbot.NewEditMessageText(t.chatID, msgID, text))
	return err
}

// Confirm: сообщение с кнопками, ждём ответ или таймаут (таймаут = нет).
func (t *Telegram) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return true
	}

	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	btnYes := tgbot.NewInlineKeyboardButtonData("✅ Войти", "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("❌ Пропустить", "REJ::"+token)
	msg := tgbot.NewMessage(t.chatID, prompt)
	msg.ReplyMarkup = tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	sent, err := t.bot.Send(msg)
	if err != nil {
		logger.Error("[TG] confirm send: %v", err)
		return false
	}
	p.msgID = sent.MessageID

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	var note string
	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		note = "⏳ Таймаут"
	case <-ctx.Done():
		note = "⛔️ Отменено"
	}

	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
	_ = t.editReplyMarkupRemove(p.msgID)
	_ = t.editText(p.msgID, fmt.Sprintf("%s\n\n%s", prompt, note))
	return false
}

func (t *Telegram) handlePositions(ctx context.Context) {
	if t.src == nil {
		t.Send("❗️ Источник позиций не подключен")
		return
	}
	positions, err := t.src.QueryPositions(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка получения позиций: %v", err)
		return
	}
	t.Send(FormatPositions(positions))
}

// FormatPositions: текст для /positions.
func FormatPositions(positions []models.PositionRecord) string {
	var b strings.Builder
	n := 0
	for _, p := range positions {
		if p.Quantity == 0 {
			continue
		}
		if n == 0 {
			b.WriteString("📊 Открытые позиции:\n")
		}
		n++
		side := "LONG"
		if p.Quantity < 0 {
			side = "SHORT"
		}
		fmt.Fprintf(&b, "- %s [%s] qty=%.0f avg=%s\n",
			p.Contract.Instrument.Name(), side, p.Quantity, p.AvgCost.StringFixed(5))
	}
	if n == 0 {
		return "📭 Открытых позиций нет"
	}
	return b.String()
}

// Start: long-polling для messages + callback_query.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.CallbackQuery != nil {
					t.HandleCallback(upd.CallbackQuery)
				}
				if upd.Message != nil && upd.Message.Chat != nil &&
					upd.Message.Chat.ID == t.chatID && upd.Message.IsCommand() {

					switch upd.Message.Command() {
					case "positions":
						go t.handlePositions(ctx)
					}
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t != nil && t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}

// Stdout: заглушка, всё в лог и всегда подтверждает.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("[NOTIFY] %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info("[NOTIFY] "+format, args...) }
func (s *Stdout) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	logger.Info("[NOTIFY] CONFIRM (auto-yes): %s", prompt)
	return true
}
