package models

import (
	"testing"
	"time"
)

func TestIsWithinTradingHours(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		start    string
		end      string
		now      time.Time
		expected bool
	}{
		{"Inside day window", "09:30", "16:00", at(12, 0), true},
		{"Before day window", "09:30", "16:00", at(9, 0), false},
		{"At start boundary", "09:30", "16:00", at(9, 30), true},
		{"At end boundary", "09:30", "16:00", at(16, 0), false},
		{"Night window before midnight", "22:00", "06:00", at(23, 30), true},
		{"Night window after midnight", "22:00", "06:00", at(3, 0), true},
		{"Night window outside", "22:00", "06:00", at(12, 0), false},
		{"Night window at end", "22:00", "06:00", at(6, 0), false},
		{"Empty start always open", "", "16:00", at(3, 0), true},
		{"Empty end always open", "09:30", "", at(3, 0), true},
		{"Both empty always open", "", "", at(3, 0), true},
		{"Malformed start always open", "9:30", "16:00", at(3, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := User{TradingStartTime: tt.start, TradingEndTime: tt.end}
			if got := u.IsWithinTradingHours(tt.now); got != tt.expected {
				t.Errorf("Expected %v for window %s-%s at %s, got %v",
					tt.expected, tt.start, tt.end, tt.now.Format("15:04"), got)
			}
		})
	}
}

func TestIsStopLossTriggered(t *testing.T) {
	target := TradingTarget{StopLossPercentage: 3.0}

	tests := []struct {
		name       string
		profitRate float64
		expected   bool
	}{
		{"Deep loss", -5.0, true},
		{"Exactly at threshold", -3.0, true},
		{"Small loss", -2.9, false},
		{"Profit", 1.5, false},
		{"Flat", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := target.IsStopLossTriggered(tt.profitRate); got != tt.expected {
				t.Errorf("Expected %v for profit rate %.1f, got %v", tt.expected, tt.profitRate, got)
			}
		})
	}
}

func TestIsTrailingStopTriggered(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		percentage float64
		windowHigh float64
		price      float64
		expected   bool
	}{
		{"Drop above threshold", true, 2.0, 100, 97, true},
		{"Drop exactly at threshold", true, 2.0, 100, 98, true},
		{"Drop below threshold", true, 2.0, 100, 98.5, false},
		{"No data never triggers", true, 2.0, 0, 97, false},
		{"Disabled never triggers", false, 2.0, 100, 90, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := TradingTarget{
				TrailingStopEnabled:    tt.enabled,
				TrailingStopPercentage: tt.percentage,
			}
			if got := target.IsTrailingStopTriggered(tt.windowHigh, tt.price); got != tt.expected {
				t.Errorf("Expected %v for high=%.1f price=%.1f, got %v",
					tt.expected, tt.windowHigh, tt.price, got)
			}
		})
	}
}

func TestApplyInverse(t *testing.T) {
	tests := []struct {
		name       string
		inverse    bool
		prediction int
		expected   int
	}{
		{"Inverse swaps BUY to SELL", true, PredictionBuy, PredictionSell},
		{"Inverse swaps SELL to BUY", true, PredictionSell, PredictionBuy},
		{"Inverse keeps HOLD", true, PredictionHold, PredictionHold},
		{"Regular keeps BUY", false, PredictionBuy, PredictionBuy},
		{"Regular keeps SELL", false, PredictionSell, PredictionSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := TradingTarget{Inverse: tt.inverse}
			if got := target.ApplyInverse(tt.prediction); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestPredictionTicker(t *testing.T) {
	withBase := TradingTarget{Ticker: "SQQQ", BaseTicker: "QQQ"}
	if got := withBase.PredictionTicker(); got != "QQQ" {
		t.Errorf("Expected base ticker QQQ, got %s", got)
	}

	noBase := TradingTarget{Ticker: "AAPL"}
	if got := noBase.PredictionTicker(); got != "AAPL" {
		t.Errorf("Expected own ticker AAPL, got %s", got)
	}

	blankBase := TradingTarget{Ticker: "AAPL", BaseTicker: "   "}
	if got := blankBase.PredictionTicker(); got != "AAPL" {
		t.Errorf("Expected own ticker for blank base, got %s", got)
	}
}

func TestWindowHigh(t *testing.T) {
	candles := []StockCandle{
		{High: 101},
		{High: 105},
		{High: 103},
		{High: 102},
	}

	tests := []struct {
		name     string
		candles  []StockCandle
		window   int
		expected float64
	}{
		{"Full window", candles, 10, 105},
		{"Last two candles", candles, 2, 103},
		{"Single candle", candles, 1, 102},
		{"Empty candles", nil, 10, 0},
		{"Zero window", candles, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindowHigh(tt.candles, tt.window); got != tt.expected {
				t.Errorf("Expected %.1f, got %.1f", tt.expected, got)
			}
		})
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{StatusClosed, StatusCancelled, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	open := []OrderStatus{StatusPending, StatusFilled}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestFindOwnedStock(t *testing.T) {
	asset := Asset{
		OwnedStocks: []OwnedStock{
			{Ticker: "AAPL", Quantity: 3},
			{Ticker: "TSLA", Quantity: 1},
		},
	}

	if owned, ok := asset.FindOwnedStock("TSLA"); !ok || owned.Quantity != 1 {
		t.Errorf("Expected TSLA with quantity 1, got %+v (found=%v)", owned, ok)
	}

	if _, ok := asset.FindOwnedStock("MSFT"); ok {
		t.Error("Expected MSFT not to be found")
	}
}
