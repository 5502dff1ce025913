package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/HACKER097/FogMachine/internal/domain"
	"github.com/HACKER097/FogMachine/internal/infra/metrics"
)

// Telegram отправляет уведомления о кампаниях в операционный чат.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram создаёт нотификатор поверх бота.
func NewTelegram(bot *tgbotapi.BotAPI, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

var _ domain.Notifier = (*Telegram)(nil)

// CampaignFinished сообщает о завершении кампании.
func (t *Telegram) CampaignFinished(_ context.Context, campaign domain.Campaign, replies int, errMsg string) error {
	var text string
	if errMsg != "" {
		text = fmt.Sprintf("❌ Кампания %s завершилась с ошибкой: %s", campaign.ID, errMsg)
	} else {
		text = fmt.Sprintf("✅ Кампания %s завершена: %d ответов опубликовано", campaign.ID, replies)
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	start := time.Now()
	_, err := t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "ops_chat", start, err)
	if err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	return nil
}

// Noop пропускает уведомления, когда операционный чат не настроен.
type Noop struct{}

var _ domain.Notifier = Noop{}

func (Noop) CampaignFinished(context.Context, domain.Campaign, int, string) error { return nil }
