package trading

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"autotrader/internal/ai"
	"autotrader/internal/broker"
	"autotrader/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func key(userID int64, ticker string) string {
	return fmt.Sprintf("%d:%s", userID, ticker)
}

// fakeStorage реализует все storage интерфейсы сервиса в памяти
type fakeStorage struct {
	activeTargets []models.TradingTarget
	users         map[int64]*models.User
	pendingSell   map[string]bool
	openedAt      map[string]time.Time
	pendingLogs   []models.TradeLog
	statuses      map[int64]models.OrderStatus
	trainings     []models.TrainingHistory

	inserted      []models.TradeLog
	deactivated   []int64
	holdingSet    map[int64]int
	holdingDeltas map[int64]int
	closedBuys    []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:         make(map[int64]*models.User),
		pendingSell:   make(map[string]bool),
		openedAt:      make(map[string]time.Time),
		statuses:      make(map[int64]models.OrderStatus),
		holdingSet:    make(map[int64]int),
		holdingDeltas: make(map[int64]int),
	}
}

func (f *fakeStorage) FindActiveTargets() ([]models.TradingTarget, error) {
	return f.activeTargets, nil
}

func (f *fakeStorage) GetTarget(userID int64, ticker string) (models.TradingTarget, error) {
	for _, t := range f.activeTargets {
		if t.UserID == userID && t.Ticker == ticker {
			return t, nil
		}
	}

	return models.TradingTarget{}, fmt.Errorf("target %s not found", ticker)
}

func (f *fakeStorage) UpdateTargetActive(targetID int64, active bool) error {
	if !active {
		f.deactivated = append(f.deactivated, targetID)
	}

	return nil
}

func (f *fakeStorage) UpdateHoldingQuantity(targetID int64, quantity int) error {
	f.holdingSet[targetID] = quantity
	return nil
}

func (f *fakeStorage) AdjustHoldingQuantity(targetID int64, delta int) error {
	f.holdingDeltas[targetID] += delta
	return nil
}

func (f *fakeStorage) InsertTradeLog(log models.TradeLog) (int64, error) {
	f.inserted = append(f.inserted, log)
	return int64(len(f.inserted)), nil
}

func (f *fakeStorage) TransitionTradeLog(logID int64, from, to models.OrderStatus) (bool, error) {
	if f.statuses[logID] != from {
		return false, nil
	}

	f.statuses[logID] = to

	return true, nil
}

func (f *fakeStorage) FindPendingBefore(threshold time.Time) ([]models.TradeLog, error) {
	var out []models.TradeLog
	for _, log := range f.pendingLogs {
		if f.statuses[log.ID] == models.StatusPending && log.Timestamp.Before(threshold) {
			out = append(out, log)
		}
	}

	return out, nil
}

func (f *fakeStorage) HasPendingSell(userID int64, ticker string) (bool, error) {
	return f.pendingSell[key(userID, ticker)], nil
}

func (f *fakeStorage) CloseFilledBuys(userID int64, ticker string) (int64, error) {
	f.closedBuys = append(f.closedBuys, key(userID, ticker))
	return 1, nil
}

func (f *fakeStorage) PositionOpenedAt(userID int64, ticker string) (time.Time, bool, error) {
	ts, ok := f.openedAt[key(userID, ticker)]
	return ts, ok, nil
}

func (f *fakeStorage) GetUserByID(id int64) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}

	return user, nil
}

func (f *fakeStorage) FindRunningTraining(userID int64) ([]models.TrainingHistory, error) {
	return f.trainings, nil
}

func (f *fakeStorage) UpdateTrainingStatus(id int64, status models.TrainingStatus, errorMessage string) error {
	for i := range f.trainings {
		if f.trainings[i].ID == id {
			f.trainings[i].Status = status
			f.trainings[i].ErrorMessage = errorMessage
		}
	}

	return nil
}

// fakeBroker отдает заранее настроенные данные и записывает вызовы
type fakeBroker struct {
	asset        models.Asset
	candles      map[string][]models.StockCandle
	fiveMin      map[string][]models.StockCandle
	price        float64
	orderResult  broker.OrderResult
	cancelResult broker.CancelResult

	sentOrders  []models.StockOrder
	cancelled   []string
	assetCalls  int
	candleCalls int
}

func (f *fakeBroker) SendOrder(_ context.Context, _ *models.User, order models.StockOrder) broker.OrderResult {
	f.sentOrders = append(f.sentOrders, order)
	return f.orderResult
}

func (f *fakeBroker) CancelOrder(_ context.Context, _ *models.User, orderID string) broker.CancelResult {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelResult
}

func (f *fakeBroker) GetCurrentPrice(_ context.Context, _ *models.User, _ string) float64 {
	return f.price
}

func (f *fakeBroker) GetRecentCandles(_ context.Context, _ *models.User, ticker string, _ int) []models.StockCandle {
	f.candleCalls++
	return f.candles[ticker]
}

func (f *fakeBroker) GetRecentCandles5Min(_ context.Context, _ *models.User, ticker string, _ int) []models.StockCandle {
	return f.fiveMin[ticker]
}

func (f *fakeBroker) GetAccountAsset(_ context.Context, _ *models.User) models.Asset {
	f.assetCalls++
	return f.asset
}

// fakePredictor возвращает фиксированные предсказания по тикеру
type fakePredictor struct {
	predictions map[string]int
	calls       int
}

func (f *fakePredictor) Predict(_ context.Context, ticker string, _, _ []models.StockCandle, _, _ int) (ai.Prediction, error) {
	f.calls++

	p, ok := f.predictions[ticker]
	if !ok {
		return ai.HoldPrediction(ticker), nil
	}

	return ai.Prediction{Ticker: ticker, Prediction: p, Confidence: 0.9}, nil
}

// fakeNotifier считает уведомления
type fakeNotifier struct {
	orders         int
	lastConfidence float64
	stopLosses     int
	trailingStops  int
	maxHoldings    int
}

func (f *fakeNotifier) NotifyOrder(_ int64, _ string, _ models.OrderType, _ int, _, confidence float64) {
	f.orders++
	f.lastConfidence = confidence
}
func (f *fakeNotifier) NotifyStopLoss(_ int64, _ string, _ float64) { f.stopLosses++ }

func (f *fakeNotifier) NotifyTrailingStop(_ int64, _ string, _, _ float64) { f.trailingStops++ }

func (f *fakeNotifier) NotifyMaxHolding(_ int64, _ string, _ int) { f.maxHoldings++ }

func minuteCandles(closes ...float64) []models.StockCandle {
	candles := make([]models.StockCandle, len(closes))
	for i, c := range closes {
		candles[i] = models.StockCandle{Open: c, High: c, Low: c, Close: c}
	}

	return candles
}

type fixture struct {
	store    *fakeStorage
	broker   *fakeBroker
	ai       *fakePredictor
	notifier *fakeNotifier
	service  *Service
}

func newFixture() *fixture {
	store := newFakeStorage()
	fb := &fakeBroker{
		candles:      make(map[string][]models.StockCandle),
		fiveMin:      make(map[string][]models.StockCandle),
		orderResult:  broker.OrderResult{Success: true, OrderID: "ORD-1"},
		cancelResult: broker.CancelResult{Success: true},
	}
	fp := &fakePredictor{predictions: make(map[string]int)}
	fn := &fakeNotifier{}

	svc := NewService(store, store, store, store, fb, fp, fn, nil, testLogger())

	return &fixture{store: store, broker: fb, ai: fp, notifier: fn, service: svc}
}

func (f *fixture) addUser(id int64) *models.User {
	user := &models.User{ID: id, Active: true}
	f.store.users[id] = user

	return user
}

func (f *fixture) addTarget(userID int64, ticker string) models.TradingTarget {
	target := models.NewTradingTarget(userID, ticker, 1)
	target.ID = int64(len(f.store.activeTargets) + 1)
	target.Active = true
	f.store.activeTargets = append(f.store.activeTargets, target)

	return target
}

func TestStopLossSellsAndDeactivates(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	target := f.addTarget(1, "AAPL")

	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "AAPL", Quantity: 2, CurrentPrice: 95, ProfitRate: -5.0},
	}}

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 {
		t.Fatalf("Expected exactly 1 order, got %d", len(f.broker.sentOrders))
	}

	order := f.broker.sentOrders[0]
	if order.Type != models.OrderSell || order.Quantity != 2 {
		t.Errorf("Expected SELL of full quantity 2, got %s qty=%d", order.Type, order.Quantity)
	}

	if len(f.store.deactivated) != 1 || f.store.deactivated[0] != target.ID {
		t.Errorf("Expected target %d deactivated, got %v", target.ID, f.store.deactivated)
	}

	if f.notifier.stopLosses != 1 {
		t.Errorf("Expected 1 stop-loss notification, got %d", f.notifier.stopLosses)
	}

	if f.ai.calls != 0 {
		t.Errorf("Expected no prediction after stop-loss, got %d calls", f.ai.calls)
	}
}

func TestTrailingStopKeepsTargetActive(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "AAPL", Quantity: 1, CurrentPrice: 97, ProfitRate: 2.0},
	}}
	// Максимум окна 100, текущая 97: откат 3% > порога 2%
	f.broker.candles["AAPL"] = minuteCandles(99, 100, 98, 97)

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 || f.broker.sentOrders[0].Type != models.OrderSell {
		t.Fatalf("Expected 1 SELL order, got %v", f.broker.sentOrders)
	}

	if len(f.store.deactivated) != 0 {
		t.Errorf("Expected target to stay active after trailing stop, got deactivations %v", f.store.deactivated)
	}

	if f.notifier.trailingStops != 1 {
		t.Errorf("Expected 1 trailing stop notification, got %d", f.notifier.trailingStops)
	}
}

func TestMaxHoldingForcesSell(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "AAPL", Quantity: 1, CurrentPrice: 100, ProfitRate: 0.5},
	}}
	f.store.openedAt[key(1, "AAPL")] = time.Now().Add(-30 * time.Minute)

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 || f.broker.sentOrders[0].Type != models.OrderSell {
		t.Fatalf("Expected forced SELL, got %v", f.broker.sentOrders)
	}

	if f.notifier.maxHoldings != 1 {
		t.Errorf("Expected 1 max-holding notification, got %d", f.notifier.maxHoldings)
	}

	if len(f.store.deactivated) != 0 {
		t.Errorf("Expected target to stay active after timeout sell")
	}
}

func TestPendingSellExcludesTarget(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	f.store.pendingSell[key(1, "AAPL")] = true
	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "AAPL", Quantity: 1, CurrentPrice: 50, ProfitRate: -10},
	}}

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 0 {
		t.Errorf("Expected no orders while SELL pending, got %v", f.broker.sentOrders)
	}

	if f.broker.candleCalls != 0 {
		t.Errorf("Expected no candle fetches for excluded target, got %d", f.broker.candleCalls)
	}
}

func TestOutsideTradingHoursSkipsUser(t *testing.T) {
	f := newFixture()
	user := f.addUser(1)
	f.addTarget(1, "AAPL")

	// Окно, в которое текущий момент попасть не может
	now := time.Now()
	start := now.Add(2 * time.Hour)
	end := now.Add(3 * time.Hour)
	user.TradingStartTime = start.Format("15:04")
	user.TradingEndTime = end.Format("15:04")

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if f.broker.assetCalls != 0 {
		t.Errorf("Expected user outside trading hours to be skipped, got %d asset calls", f.broker.assetCalls)
	}
}

func TestBuySignalSubmitsSingleShare(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	f.broker.candles["AAPL"] = minuteCandles(50, 51)
	f.broker.fiveMin["AAPL"] = minuteCandles(50, 51)
	f.ai.predictions["AAPL"] = models.PredictionBuy

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(f.broker.sentOrders))
	}

	order := f.broker.sentOrders[0]
	if order.Type != models.OrderBuy || order.Quantity != 1 || order.Price != 51 {
		t.Errorf("Expected BUY qty=1 price=51, got %+v", order)
	}

	if len(f.store.inserted) != 1 {
		t.Fatalf("Expected 1 trade log, got %d", len(f.store.inserted))
	}

	log := f.store.inserted[0]
	if log.Status != models.StatusPending || log.OrderID != "ORD-1" {
		t.Errorf("Expected PENDING log with order id, got %+v", log)
	}

	if f.notifier.lastConfidence != 0.9 {
		t.Errorf("Expected model confidence 0.9 in notification, got %v", f.notifier.lastConfidence)
	}
}

func TestInverseSwapsSignal(t *testing.T) {
	f := newFixture()
	f.addUser(1)

	target := models.NewTradingTarget(1, "SQQQ", 1)
	target.ID = 1
	target.Active = true
	target.BaseTicker = "QQQ"
	target.Inverse = true
	f.store.activeTargets = append(f.store.activeTargets, target)

	f.broker.candles["QQQ"] = minuteCandles(400, 401)
	f.broker.fiveMin["QQQ"] = minuteCandles(400, 401)
	f.broker.candles["SQQQ"] = minuteCandles(10.5, 10)
	// Сырой SELL по базовому тикеру становится BUY инверсного
	f.ai.predictions["QQQ"] = models.PredictionSell

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(f.broker.sentOrders))
	}

	order := f.broker.sentOrders[0]
	if order.Type != models.OrderBuy || order.Ticker != "SQQQ" {
		t.Errorf("Expected BUY of SQQQ, got %s of %s", order.Type, order.Ticker)
	}
}

func TestBaseTickerOrderPricedByOwnCandles(t *testing.T) {
	f := newFixture()
	f.addUser(1)

	target := models.NewTradingTarget(1, "SQQQ", 1)
	target.ID = 1
	target.Active = true
	target.BaseTicker = "QQQ"
	f.store.activeTargets = append(f.store.activeTargets, target)

	// Модель кормится QQQ, но ордер должен стоить как SQQQ
	f.broker.candles["QQQ"] = minuteCandles(400, 401)
	f.broker.fiveMin["QQQ"] = minuteCandles(400, 401)
	f.broker.candles["SQQQ"] = minuteCandles(10.5, 10)
	f.ai.predictions["QQQ"] = models.PredictionBuy

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(f.broker.sentOrders))
	}

	order := f.broker.sentOrders[0]
	if order.Ticker != "SQQQ" || order.Price != 10 {
		t.Errorf("Expected SQQQ order at its own close 10, got %s at %v", order.Ticker, order.Price)
	}
}

func TestBaseTickerTrailingStopTracksOwnCandles(t *testing.T) {
	f := newFixture()
	f.addUser(1)

	target := models.NewTradingTarget(1, "SQQQ", 1)
	target.ID = 1
	target.Active = true
	target.BaseTicker = "QQQ"
	f.store.activeTargets = append(f.store.activeTargets, target)

	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "SQQQ", Quantity: 1, CurrentPrice: 97, ProfitRate: 2.0},
	}}

	// Базовый тикер стоит на месте, сам инструмент откатился на 3% от
	// максимума окна: стоп должен сработать по свечам SQQQ
	f.broker.candles["QQQ"] = minuteCandles(400, 400, 400, 400)
	f.broker.candles["SQQQ"] = minuteCandles(99, 100, 98, 97)

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(f.broker.sentOrders) != 1 || f.broker.sentOrders[0].Type != models.OrderSell {
		t.Fatalf("Expected trailing stop SELL, got %v", f.broker.sentOrders)
	}

	if f.broker.sentOrders[0].Price != 97 {
		t.Errorf("Expected SELL at own close 97, got %v", f.broker.sentOrders[0].Price)
	}

	if f.notifier.trailingStops != 1 {
		t.Errorf("Expected 1 trailing stop notification, got %d", f.notifier.trailingStops)
	}
}

func TestMissingCandlesDefaultToHold(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	// Свечей нет, цена берется котировкой: сигнал должен дефолтиться
	// в HOLD без обращения к модели
	f.broker.price = 100
	f.ai.predictions["AAPL"] = models.PredictionBuy

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if f.ai.calls != 0 {
		t.Errorf("Expected model untouched without candles, got %d calls", f.ai.calls)
	}

	if len(f.broker.sentOrders) != 0 {
		t.Errorf("Expected no orders on HOLD default, got %v", f.broker.sentOrders)
	}
}

func TestPredictionSharedAcrossTargets(t *testing.T) {
	f := newFixture()
	f.addUser(1)

	for i, ticker := range []string{"SQQQ", "TQQQ"} {
		target := models.NewTradingTarget(1, ticker, 1)
		target.ID = int64(i + 1)
		target.Active = true
		target.BaseTicker = "QQQ"
		f.store.activeTargets = append(f.store.activeTargets, target)
	}

	f.broker.candles["QQQ"] = minuteCandles(400, 401)
	f.broker.fiveMin["QQQ"] = minuteCandles(400, 401)
	f.broker.candles["SQQQ"] = minuteCandles(10, 10)
	f.broker.candles["TQQQ"] = minuteCandles(80, 80)

	if err := f.service.ExecuteTradingCycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if f.ai.calls != 1 {
		t.Errorf("Expected 1 prediction for shared base ticker, got %d", f.ai.calls)
	}

	// Базовый тикер запрошен один раз, плюс по одному запросу на
	// собственные свечи каждого инструмента
	if f.broker.candleCalls != 3 {
		t.Errorf("Expected 3 minute candle fetches, got %d", f.broker.candleCalls)
	}
}

func TestSellWithoutHoldingsFailsFast(t *testing.T) {
	f := newFixture()
	user := f.addUser(1)
	target := f.addTarget(1, "AAPL")

	err := f.service.ExecuteOrder(context.Background(), user, target, models.OrderSell, 100, 0)
	if err == nil {
		t.Fatal("Expected error selling with no holdings")
	}

	if len(f.broker.sentOrders) != 0 {
		t.Errorf("Expected no broker call, got %v", f.broker.sentOrders)
	}

	if len(f.store.inserted) != 0 {
		t.Errorf("Expected no trade log, got %v", f.store.inserted)
	}
}

func TestRejectedOrderLogsFailed(t *testing.T) {
	f := newFixture()
	user := f.addUser(1)
	target := f.addTarget(1, "AAPL")

	f.broker.orderResult = broker.OrderResult{Success: false, Message: "insufficient balance"}

	err := f.service.ExecuteOrder(context.Background(), user, target, models.OrderBuy, 100, 0)
	if err == nil {
		t.Fatal("Expected error for rejected order")
	}

	if len(f.store.inserted) != 1 {
		t.Fatalf("Expected 1 trade log, got %d", len(f.store.inserted))
	}

	log := f.store.inserted[0]
	if log.Status != models.StatusFailed || log.OrderID != "" {
		t.Errorf("Expected terminal FAILED log without order id, got %+v", log)
	}
}

func pendingLog(id, userID int64, ticker string, action models.OrderType, orderID string) models.TradeLog {
	return models.TradeLog{
		ID:        id,
		UserID:    userID,
		Ticker:    ticker,
		Action:    action,
		Price:     100,
		OrderID:   orderID,
		Status:    models.StatusPending,
		Timestamp: time.Now().Add(-10 * time.Minute),
	}
}

func TestReconcileEmptyOrderIDFailsWithoutBrokerCall(t *testing.T) {
	f := newFixture()
	f.addUser(1)

	f.store.pendingLogs = []models.TradeLog{pendingLog(1, 1, "AAPL", models.OrderBuy, "")}
	f.store.statuses[1] = models.StatusPending

	if err := f.service.HandlePendingOrders(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if f.store.statuses[1] != models.StatusFailed {
		t.Errorf("Expected FAILED, got %s", f.store.statuses[1])
	}

	if len(f.broker.cancelled) != 0 {
		t.Errorf("Expected no broker calls for order without id, got %v", f.broker.cancelled)
	}
}

func TestReconcileCancelSuccessMeansCancelled(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	f.store.pendingLogs = []models.TradeLog{pendingLog(1, 1, "AAPL", models.OrderBuy, "ORD-9")}
	f.store.statuses[1] = models.StatusPending
	f.broker.cancelResult = broker.CancelResult{Success: true}

	if err := f.service.HandlePendingOrders(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if f.store.statuses[1] != models.StatusCancelled {
		t.Errorf("Expected CANCELLED, got %s", f.store.statuses[1])
	}

	if f.store.holdingDeltas[1] != 0 {
		t.Errorf("Expected no holding change on cancel, got %d", f.store.holdingDeltas[1])
	}
}

func TestReconcileCancelFailureMeansBuyFilled(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	target := f.addTarget(1, "AAPL")

	f.store.pendingLogs = []models.TradeLog{pendingLog(1, 1, "AAPL", models.OrderBuy, "ORD-9")}
	f.store.statuses[1] = models.StatusPending
	f.broker.cancelResult = broker.CancelResult{Success: false, Message: "already executed"}

	if err := f.service.HandlePendingOrders(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if f.store.statuses[1] != models.StatusFilled {
		t.Errorf("Expected FILLED, got %s", f.store.statuses[1])
	}

	if f.store.holdingDeltas[target.ID] != 1 {
		t.Errorf("Expected holding +1 after BUY fill, got %d", f.store.holdingDeltas[target.ID])
	}
}

func TestReconcileSellFillClosesBuysAndResetsHolding(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	target := f.addTarget(1, "AAPL")

	f.store.pendingLogs = []models.TradeLog{pendingLog(1, 1, "AAPL", models.OrderSell, "ORD-9")}
	f.store.statuses[1] = models.StatusPending
	f.broker.cancelResult = broker.CancelResult{Success: false}

	if err := f.service.HandlePendingOrders(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if f.store.statuses[1] != models.StatusFilled {
		t.Errorf("Expected FILLED, got %s", f.store.statuses[1])
	}

	if len(f.store.closedBuys) != 1 || f.store.closedBuys[0] != key(1, "AAPL") {
		t.Errorf("Expected filled buys closed for user 1 AAPL, got %v", f.store.closedBuys)
	}

	if quantity, ok := f.store.holdingSet[target.ID]; !ok || quantity != 0 {
		t.Errorf("Expected holding reset to 0 after full SELL, got %v", f.store.holdingSet)
	}
}

func TestReconcileTerminalStateIsImmutable(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	// Запись уже переведена: повторная сверка не должна ничего менять
	f.store.pendingLogs = []models.TradeLog{pendingLog(1, 1, "AAPL", models.OrderBuy, "ORD-9")}
	f.store.statuses[1] = models.StatusCancelled

	if err := f.service.HandlePendingOrders(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if f.store.statuses[1] != models.StatusCancelled {
		t.Errorf("Expected terminal CANCELLED untouched, got %s", f.store.statuses[1])
	}

	if len(f.broker.cancelled) != 0 {
		t.Errorf("Expected no broker calls for terminal log, got %v", f.broker.cancelled)
	}

	if f.store.holdingDeltas[1] != 0 {
		t.Errorf("Expected no holding change, got %d", f.store.holdingDeltas[1])
	}
}

func TestReconcileOneSkipsTerminalLog(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	f.addTarget(1, "AAPL")

	log := pendingLog(1, 1, "AAPL", models.OrderBuy, "ORD-9")
	log.Status = models.StatusFailed

	if err := f.service.reconcileOne(context.Background(), log); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(f.broker.cancelled) != 0 {
		t.Errorf("Expected no cancel for terminal log, got %v", f.broker.cancelled)
	}

	if f.store.holdingDeltas[1] != 0 {
		t.Errorf("Expected no holding change, got %d", f.store.holdingDeltas[1])
	}
}

func TestSyncHoldingQuantitiesBrokerWins(t *testing.T) {
	f := newFixture()
	f.addUser(1)
	target := f.addTarget(1, "AAPL")

	f.broker.asset = models.Asset{OwnedStocks: []models.OwnedStock{
		{Ticker: "AAPL", Quantity: 3},
	}}

	if err := f.service.SyncHoldingQuantities(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if quantity, ok := f.store.holdingSet[target.ID]; !ok || quantity != 3 {
		t.Errorf("Expected holding synced to 3, got %v", f.store.holdingSet)
	}
}
