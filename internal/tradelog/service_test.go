package tradelog

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"autotrader/internal/models"
)

type fakeStorage struct {
	logs []models.TradeLog
}

func (f *fakeStorage) FindRecentTradeLogs(userID int64, limit int) ([]models.TradeLog, error) {
	if limit > len(f.logs) {
		limit = len(f.logs)
	}

	return f.logs[:limit], nil
}

func (f *fakeStorage) FindTradeLogsAsc(userID int64) ([]models.TradeLog, error) {
	return f.logs, nil
}

func testService(logs []models.TradeLog) *Service {
	return NewService(&fakeStorage{logs: logs}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func entry(ticker string, action models.OrderType, status models.OrderStatus, price float64) models.TradeLog {
	return models.TradeLog{
		UserID:    1,
		Ticker:    ticker,
		Action:    action,
		Status:    status,
		Price:     price,
		Timestamp: time.Now(),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateProfitMatchesClosedBuysWithFilledSells(t *testing.T) {
	logs := []models.TradeLog{
		entry("AAPL", models.OrderBuy, models.StatusClosed, 100),
		entry("AAPL", models.OrderBuy, models.StatusClosed, 102),
		entry("AAPL", models.OrderSell, models.StatusFilled, 105),
	}

	stats, err := testService(logs).CalculateProfit(1)
	if err != nil {
		t.Fatalf("CalculateProfit failed: %v", err)
	}

	// 105*2 - (100+102) = 8
	if !almostEqual(stats.TotalProfit, 8) {
		t.Errorf("Expected profit 8, got %.2f", stats.TotalProfit)
	}

	if len(stats.ByTicker) != 1 || stats.ByTicker[0].TradeCount != 1 {
		t.Errorf("Expected one closing sell for AAPL, got %+v", stats.ByTicker)
	}
}

func TestCalculateProfitIgnoresNonTerminalAndFailedLogs(t *testing.T) {
	logs := []models.TradeLog{
		entry("AAPL", models.OrderBuy, models.StatusClosed, 100),
		entry("AAPL", models.OrderBuy, models.StatusPending, 90),    // не исполнен
		entry("AAPL", models.OrderBuy, models.StatusCancelled, 80),  // отменен
		entry("AAPL", models.OrderBuy, models.StatusFailed, 70),     // отклонен
		entry("AAPL", models.OrderSell, models.StatusCancelled, 60), // не закрывает
		entry("AAPL", models.OrderSell, models.StatusFilled, 110),
	}

	stats, err := testService(logs).CalculateProfit(1)
	if err != nil {
		t.Fatalf("CalculateProfit failed: %v", err)
	}

	if !almostEqual(stats.TotalProfit, 10) {
		t.Errorf("Expected profit 10 from the single closed buy, got %.2f", stats.TotalProfit)
	}
}

func TestCalculateProfitOpenPositionContributesNothing(t *testing.T) {
	logs := []models.TradeLog{
		entry("AAPL", models.OrderBuy, models.StatusFilled, 100), // позиция еще открыта
		entry("TSLA", models.OrderBuy, models.StatusClosed, 200), // продажи не было
	}

	stats, err := testService(logs).CalculateProfit(1)
	if err != nil {
		t.Fatalf("CalculateProfit failed: %v", err)
	}

	if stats.TotalProfit != 0 || len(stats.ByTicker) != 0 {
		t.Errorf("Expected empty stats for open positions, got %+v", stats)
	}
}

func TestCalculateProfitSeparatesTickers(t *testing.T) {
	logs := []models.TradeLog{
		entry("AAPL", models.OrderBuy, models.StatusClosed, 100),
		entry("TSLA", models.OrderBuy, models.StatusClosed, 200),
		entry("AAPL", models.OrderSell, models.StatusFilled, 103),
		entry("TSLA", models.OrderSell, models.StatusFilled, 195),
	}

	stats, err := testService(logs).CalculateProfit(1)
	if err != nil {
		t.Fatalf("CalculateProfit failed: %v", err)
	}

	if !almostEqual(stats.TotalProfit, -2) {
		t.Errorf("Expected total -2 (+3 AAPL, -5 TSLA), got %.2f", stats.TotalProfit)
	}

	if len(stats.ByTicker) != 2 {
		t.Fatalf("Expected 2 tickers, got %d", len(stats.ByTicker))
	}
}

func TestCalculateProfitSellWithoutBuysIsIgnored(t *testing.T) {
	logs := []models.TradeLog{
		entry("AAPL", models.OrderSell, models.StatusFilled, 110),
	}

	stats, err := testService(logs).CalculateProfit(1)
	if err != nil {
		t.Fatalf("CalculateProfit failed: %v", err)
	}

	if stats.TotalProfit != 0 {
		t.Errorf("Expected no profit for orphan sell, got %.2f", stats.TotalProfit)
	}
}
