package storage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"autotrader/internal/models"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

func testUser(t *testing.T, s *Storage) *models.User {
	t.Helper()

	user, err := s.CreateUser("trader", "hash")
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	return user
}

func TestCreateAndGetTarget(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	target := models.NewTradingTarget(user.ID, "AAPL", 0)

	id, err := s.CreateTarget(target)
	if err != nil {
		t.Fatalf("Failed to create target: %v", err)
	}

	got, err := s.GetTarget(user.ID, "AAPL")
	if err != nil {
		t.Fatalf("Failed to get target: %v", err)
	}

	if got.ID != id || got.Ticker != "AAPL" {
		t.Errorf("Expected target %d AAPL, got %d %s", id, got.ID, got.Ticker)
	}

	if got.StopLossPercentage != 3.0 || !got.TrailingStopEnabled {
		t.Errorf("Expected default risk settings, got %+v", got)
	}

	// Дубликат (user, ticker) запрещен
	if _, err := s.CreateTarget(target); err == nil {
		t.Error("Expected duplicate target to fail")
	}
}

func TestFindActiveTargets(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	active := models.NewTradingTarget(user.ID, "AAPL", 0)
	active.Active = true

	inactive := models.NewTradingTarget(user.ID, "TSLA", 0)

	if _, err := s.CreateTarget(active); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTarget(inactive); err != nil {
		t.Fatal(err)
	}

	targets, err := s.FindActiveTargets()
	if err != nil {
		t.Fatalf("Failed to find active targets: %v", err)
	}

	if len(targets) != 1 || targets[0].Ticker != "AAPL" {
		t.Errorf("Expected only active AAPL target, got %+v", targets)
	}
}

func TestAdjustHoldingQuantityNeverNegative(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	id, err := s.CreateTarget(models.NewTradingTarget(user.ID, "AAPL", 0))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.AdjustHoldingQuantity(id, 2); err != nil {
		t.Fatal(err)
	}

	if err := s.AdjustHoldingQuantity(id, -5); err != nil {
		t.Fatal(err)
	}

	target, err := s.GetTarget(user.ID, "AAPL")
	if err != nil {
		t.Fatal(err)
	}

	if target.HoldingQuantity != 0 {
		t.Errorf("Expected holding floored at 0, got %d", target.HoldingQuantity)
	}
}

func TestTransitionTradeLogGuards(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	id, err := s.InsertTradeLog(models.NewPendingTradeLog(user.ID, "AAPL", models.OrderBuy, 100, "ORD-1"))
	if err != nil {
		t.Fatalf("Failed to insert trade log: %v", err)
	}

	changed, err := s.TransitionTradeLog(id, models.StatusPending, models.StatusFilled)
	if err != nil || !changed {
		t.Fatalf("Expected PENDING->FILLED to succeed, changed=%v err=%v", changed, err)
	}

	// Повторный перевод из PENDING невозможен
	changed, err = s.TransitionTradeLog(id, models.StatusPending, models.StatusCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("Expected guarded transition to be a no-op on non-PENDING row")
	}

	// FILLED BUY может закрыться
	changed, err = s.TransitionTradeLog(id, models.StatusFilled, models.StatusClosed)
	if err != nil || !changed {
		t.Fatalf("Expected FILLED->CLOSED to succeed, changed=%v err=%v", changed, err)
	}
}

func TestFindPendingBefore(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	old := models.NewPendingTradeLog(user.ID, "AAPL", models.OrderBuy, 100, "ORD-1")
	old.Timestamp = time.Now().Add(-5 * time.Minute)

	fresh := models.NewPendingTradeLog(user.ID, "TSLA", models.OrderBuy, 100, "ORD-2")

	if _, err := s.InsertTradeLog(old); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertTradeLog(fresh); err != nil {
		t.Fatal(err)
	}

	stale, err := s.FindPendingBefore(time.Now().Add(-2 * time.Minute))
	if err != nil {
		t.Fatalf("Failed to find pending logs: %v", err)
	}

	if len(stale) != 1 || stale[0].Ticker != "AAPL" {
		t.Errorf("Expected only the old AAPL log, got %+v", stale)
	}
}

func TestHasPendingSell(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	if _, err := s.InsertTradeLog(models.NewPendingTradeLog(user.ID, "AAPL", models.OrderSell, 100, "ORD-1")); err != nil {
		t.Fatal(err)
	}

	has, err := s.HasPendingSell(user.ID, "AAPL")
	if err != nil || !has {
		t.Errorf("Expected pending sell for AAPL, got has=%v err=%v", has, err)
	}

	has, err = s.HasPendingSell(user.ID, "TSLA")
	if err != nil || has {
		t.Errorf("Expected no pending sell for TSLA, got has=%v err=%v", has, err)
	}
}

func TestCloseFilledBuys(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	buy := models.NewPendingTradeLog(user.ID, "AAPL", models.OrderBuy, 100, "ORD-1")

	id, err := s.InsertTradeLog(buy)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.TransitionTradeLog(id, models.StatusPending, models.StatusFilled); err != nil {
		t.Fatal(err)
	}

	// BUY другого тикера не должен закрыться
	otherID, err := s.InsertTradeLog(models.NewPendingTradeLog(user.ID, "TSLA", models.OrderBuy, 100, "ORD-2"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionTradeLog(otherID, models.StatusPending, models.StatusFilled); err != nil {
		t.Fatal(err)
	}

	closed, err := s.CloseFilledBuys(user.ID, "AAPL")
	if err != nil {
		t.Fatalf("Failed to close filled buys: %v", err)
	}

	if closed != 1 {
		t.Errorf("Expected 1 closed buy, got %d", closed)
	}

	logs, err := s.FindTradeLogsAsc(user.ID)
	if err != nil {
		t.Fatal(err)
	}

	for _, log := range logs {
		switch log.Ticker {
		case "AAPL":
			if log.Status != models.StatusClosed {
				t.Errorf("Expected AAPL buy CLOSED, got %s", log.Status)
			}
		case "TSLA":
			if log.Status != models.StatusFilled {
				t.Errorf("Expected TSLA buy untouched FILLED, got %s", log.Status)
			}
		}
	}
}

func TestPositionOpenedAt(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	_, found, err := s.PositionOpenedAt(user.ID, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("Expected no position before any fills")
	}

	first := models.NewPendingTradeLog(user.ID, "AAPL", models.OrderBuy, 100, "ORD-1")
	first.Timestamp = time.Now().Add(-20 * time.Minute)

	second := models.NewPendingTradeLog(user.ID, "AAPL", models.OrderBuy, 101, "ORD-2")
	second.Timestamp = time.Now().Add(-10 * time.Minute)

	for _, log := range []models.TradeLog{first, second} {
		id, err := s.InsertTradeLog(log)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.TransitionTradeLog(id, models.StatusPending, models.StatusFilled); err != nil {
			t.Fatal(err)
		}
	}

	openedAt, found, err := s.PositionOpenedAt(user.ID, "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("Expected position to be found")
	}

	age := time.Since(openedAt)
	if age < 15*time.Minute || age > 25*time.Minute {
		t.Errorf("Expected earliest fill around 20 minutes old, got %s", age)
	}
}

func TestUserSettingsRoundTrip(t *testing.T) {
	s := testStorage(t)
	user := testUser(t, s)

	brokerID, err := s.AddBrokerInfo(models.BrokerInfo{
		UserID:        user.ID,
		BrokerType:    models.BrokerKIS,
		AppKey:        "key",
		AppSecret:     "secret",
		AccountNumber: "12345678-01",
	})
	if err != nil {
		t.Fatalf("Failed to add broker info: %v", err)
	}

	if err := s.UpdateUserSettings(user.ID, "09:30", "16:00", 777, brokerID); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	got, err := s.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}

	if got.TradingStartTime != "09:30" || got.TradingEndTime != "16:00" {
		t.Errorf("Expected trading window 09:30-16:00, got %s-%s", got.TradingStartTime, got.TradingEndTime)
	}

	if got.ActiveBrokerID != brokerID || got.TelegramChatID != 777 {
		t.Errorf("Expected broker %d and chat 777, got %d and %d", brokerID, got.ActiveBrokerID, got.TelegramChatID)
	}

	if len(got.BrokerInfos) != 1 || got.BrokerInfos[0].BrokerType != models.BrokerKIS {
		t.Errorf("Expected one KIS broker info, got %+v", got.BrokerInfos)
	}
}
