package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autotrader/internal/models"
)

// Notifier отправляет торговые уведомления в Telegram.
// Все отправки best-effort: ошибка доставки логируется и не влияет
// на торговый цикл.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// New создает Telegram notifier. Пустой токен дает nil-notifier,
// все методы которого безопасны и ничего не делают.
func New(token string, logger *slog.Logger) *Notifier {
	if token == "" {
		return nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("❌ Failed to connect Telegram bot, notifications disabled", slog.Any("error", err))

		return nil
	}

	logger.Info("✅ Telegram bot authorized", slog.String("username", bot.Self.UserName))

	return &Notifier{
		bot:    bot,
		logger: logger,
	}
}

// Send отправляет текстовое сообщение пользователю.
// chatID == 0 означает, что пользователь не привязал чат.
func (n *Notifier) Send(chatID int64, text string) {
	if n == nil || chatID == 0 {
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn("Failed to send Telegram notification",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
	}
}

// NotifyOrder уведомляет об отправленном ордере.
// confidence > 0 для сигнальных ордеров, 0 для принудительных выходов.
func (n *Notifier) NotifyOrder(chatID int64, ticker string, action models.OrderType, quantity int, price, confidence float64) {
	emoji := "🚀"
	if action == models.OrderSell {
		emoji = "📉"
	}

	text := fmt.Sprintf("%s <b>%s %s</b>\nQty: %d\nPrice: $%.2f",
		emoji, action, ticker, quantity, price)
	if confidence > 0 {
		text += fmt.Sprintf("\nConfidence: %.0f%%", confidence*100)
	}

	n.Send(chatID, text)
}

// NotifyStopLoss уведомляет о срабатывании стоп-лосса
func (n *Notifier) NotifyStopLoss(chatID int64, ticker string, profitRate float64) {
	n.Send(chatID, fmt.Sprintf("🛑 <b>Stop-loss triggered: %s</b>\nP&L: %.2f%%\nAuto-trading disabled for this ticker.",
		ticker, profitRate))
}

// NotifyTrailingStop уведомляет о срабатывании трейлинг-стопа
func (n *Notifier) NotifyTrailingStop(chatID int64, ticker string, windowHigh, price float64) {
	n.Send(chatID, fmt.Sprintf("📉 <b>Trailing stop: %s</b>\nHigh: $%.2f → Now: $%.2f",
		ticker, windowHigh, price))
}

// NotifyMaxHolding уведомляет о принудительной продаже по таймауту позиции
func (n *Notifier) NotifyMaxHolding(chatID int64, ticker string, heldMinutes int) {
	n.Send(chatID, fmt.Sprintf("⏰ <b>Max holding time: %s</b>\nPosition held %d min, selling.",
		ticker, heldMinutes))
}

// NotifyTrainingDone уведомляет о завершении обучения модели
func (n *Notifier) NotifyTrainingDone(chatID int64, ticker string, failed bool, errorMessage string) {
	if failed {
		n.Send(chatID, fmt.Sprintf("❌ <b>Training failed: %s</b>\n%s", ticker, errorMessage))

		return
	}

	n.Send(chatID, fmt.Sprintf("✅ <b>Training completed: %s</b>", ticker))
}
