package tradelog

import (
	"fmt"
	"log/slog"

	"autotrader/internal/models"
)

type Storage interface {
	FindRecentTradeLogs(userID int64, limit int) ([]models.TradeLog, error)
	FindTradeLogsAsc(userID int64) ([]models.TradeLog, error)
}

// TickerProfit - реализованная прибыль по одному тикеру
type TickerProfit struct {
	Ticker     string  `json:"ticker"`
	Profit     float64 `json:"profit"`
	TradeCount int     `json:"trade_count"` // количество закрывающих продаж
}

// ProfitStats - сводка реализованной прибыли пользователя
type ProfitStats struct {
	TotalProfit float64        `json:"total_profit"`
	ByTicker    []TickerProfit `json:"by_ticker"`
}

// Service отвечает за чтение журнала ордеров и расчет прибыли
type Service struct {
	storage Storage
	logger  *slog.Logger
}

// NewService создает сервис журнала
func NewService(storage Storage, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// RecentLogs возвращает последние записи журнала пользователя
func (s *Service) RecentLogs(userID int64, limit int) ([]models.TradeLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	logs, err := s.storage.FindRecentTradeLogs(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade logs: %w", err)
	}

	return logs, nil
}

// CalculateProfit считает реализованную прибыль пользователя.
// В расчет входят только завершенные циклы: CLOSED покупки,
// сматченные с исполненной (FILLED) продажей того же тикера.
// PENDING, CANCELLED и FAILED записи прибыль не двигают.
func (s *Service) CalculateProfit(userID int64) (ProfitStats, error) {
	logs, err := s.storage.FindTradeLogsAsc(userID)
	if err != nil {
		return ProfitStats{}, fmt.Errorf("failed to load trade logs: %w", err)
	}

	type bucket struct {
		buyPrices []float64
		profit    float64
		sells     int
	}

	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for _, log := range logs {
		b, ok := buckets[log.Ticker]
		if !ok {
			b = &bucket{}
			buckets[log.Ticker] = b
			order = append(order, log.Ticker)
		}

		switch {
		case log.Action == models.OrderBuy && log.Status == models.StatusClosed:
			b.buyPrices = append(b.buyPrices, log.Price)
		case log.Action == models.OrderSell && log.Status == models.StatusFilled:
			if len(b.buyPrices) == 0 {
				continue
			}

			totalBuy := 0.0
			for _, p := range b.buyPrices {
				totalBuy += p
			}

			// Продажа закрывает всю накопленную позицию разом
			b.profit += log.Price*float64(len(b.buyPrices)) - totalBuy
			b.sells++
			b.buyPrices = nil
		}
	}

	stats := ProfitStats{}

	for _, ticker := range order {
		b := buckets[ticker]
		if b.sells == 0 {
			continue
		}

		stats.TotalProfit += b.profit
		stats.ByTicker = append(stats.ByTicker, TickerProfit{
			Ticker:     ticker,
			Profit:     b.profit,
			TradeCount: b.sells,
		})
	}

	return stats, nil
}
