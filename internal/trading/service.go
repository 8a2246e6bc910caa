package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"autotrader/internal/ai"
	"autotrader/internal/broker"
	"autotrader/internal/models"
)

const (
	// maxHoldingMinutes - скальпинг: позиция старше принудительно закрывается
	maxHoldingMinutes = 25

	// pendingThreshold - PENDING ордер старше этого считается зависшим
	pendingThreshold = 2 * time.Minute

	// startupSweepThreshold - порог стартовой сверки после рестарта
	startupSweepThreshold = 10 * time.Minute

	// trainingStallThreshold - обучение, висящее дольше, помечается упавшим
	trainingStallThreshold = 2 * time.Hour

	minuteCandleCount  = 60
	fiveMinCandleCount = 120
)

var ErrInsufficientHoldings = errors.New("insufficient holdings to sell")

type TargetStorage interface {
	FindActiveTargets() ([]models.TradingTarget, error)
	GetTarget(userID int64, ticker string) (models.TradingTarget, error)
	UpdateTargetActive(targetID int64, active bool) error
	UpdateHoldingQuantity(targetID int64, quantity int) error
	AdjustHoldingQuantity(targetID int64, delta int) error
}

type TradeLogStorage interface {
	InsertTradeLog(log models.TradeLog) (int64, error)
	TransitionTradeLog(logID int64, from, to models.OrderStatus) (bool, error)
	FindPendingBefore(threshold time.Time) ([]models.TradeLog, error)
	HasPendingSell(userID int64, ticker string) (bool, error)
	CloseFilledBuys(userID int64, ticker string) (int64, error)
	PositionOpenedAt(userID int64, ticker string) (time.Time, bool, error)
}

type UserStorage interface {
	GetUserByID(id int64) (*models.User, error)
}

type TrainingStorage interface {
	FindRunningTraining(userID int64) ([]models.TrainingHistory, error)
	UpdateTrainingStatus(id int64, status models.TrainingStatus, errorMessage string) error
}

type Broker interface {
	SendOrder(ctx context.Context, user *models.User, order models.StockOrder) broker.OrderResult
	CancelOrder(ctx context.Context, user *models.User, orderID string) broker.CancelResult
	GetCurrentPrice(ctx context.Context, user *models.User, ticker string) float64
	GetRecentCandles(ctx context.Context, user *models.User, ticker string, limit int) []models.StockCandle
	GetRecentCandles5Min(ctx context.Context, user *models.User, ticker string, limit int) []models.StockCandle
	GetAccountAsset(ctx context.Context, user *models.User) models.Asset
}

type Predictor interface {
	Predict(ctx context.Context, ticker string, minuteCandles, fiveminCandles []models.StockCandle, buyThreshold, sellThreshold int) (ai.Prediction, error)
}

type Notifier interface {
	NotifyOrder(chatID int64, ticker string, action models.OrderType, quantity int, price, confidence float64)
	NotifyStopLoss(chatID int64, ticker string, profitRate float64)
	NotifyTrailingStop(chatID int64, ticker string, windowHigh, price float64)
	NotifyMaxHolding(chatID int64, ticker string, heldMinutes int)
}

// Event - событие торгового цикла для live трансляции
type Event struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id"`
	Ticker    string    `json:"ticker,omitempty"`
	Action    string    `json:"action,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Broadcast(event Event)
}

// Service - core механизм автоторговли: цикл принятия решений,
// отправка ордеров и сверка зависших
type Service struct {
	targets  TargetStorage
	logs     TradeLogStorage
	users    UserStorage
	training TrainingStorage
	broker   Broker
	ai       Predictor
	notifier Notifier
	events   EventPublisher
	logger   *slog.Logger
}

func NewService(
	targets TargetStorage,
	logs TradeLogStorage,
	users UserStorage,
	training TrainingStorage,
	brokerRouter Broker,
	predictor Predictor,
	notifier Notifier,
	events EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		targets:  targets,
		logs:     logs,
		users:    users,
		training: training,
		broker:   brokerRouter,
		ai:       predictor,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// publish рассылает событие, если подключен хаб
func (s *Service) publish(event Event) {
	if s.events == nil {
		return
	}

	event.Timestamp = time.Now()
	s.events.Broadcast(event)
}

// ExecuteTradingCycle выполняет один проход по всем активным целям.
// Пользователи обрабатываются параллельно, тикеры одного пользователя
// последовательно. Ошибка по одной цели не прерывает остальные.
func (s *Service) ExecuteTradingCycle(ctx context.Context) error {
	targets, err := s.targets.FindActiveTargets()
	if err != nil {
		return fmt.Errorf("failed to load active targets: %w", err)
	}

	if len(targets) == 0 {
		return nil
	}

	// Группируем цели по пользователям
	byUser := make(map[int64][]models.TradingTarget)
	for _, t := range targets {
		byUser[t.UserID] = append(byUser[t.UserID], t)
	}

	now := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	for userID, userTargets := range byUser {
		userTargets := userTargets
		user, err := s.users.GetUserByID(userID)
		if err != nil {
			s.logger.Error("Failed to load user, skipping targets",
				slog.Int64("user_id", userID),
				slog.Any("error", err))

			continue
		}

		if !user.Active {
			continue
		}

		if !user.IsWithinTradingHours(now) {
			s.logger.Debug("Outside trading hours",
				slog.Int64("user_id", userID),
				slog.String("window", user.TradingStartTime+"-"+user.TradingEndTime))

			continue
		}

		g.Go(func() error {
			s.processUser(gctx, user, userTargets)
			return nil
		})
	}

	return g.Wait()
}

// processUser обрабатывает все цели одного пользователя за цикл.
// Снимок счета и свечи запрашиваются один раз и переиспользуются.
func (s *Service) processUser(ctx context.Context, user *models.User, targets []models.TradingTarget) {
	asset := s.broker.GetAccountAsset(ctx, user)

	// Кэши на время цикла: свечи по тикеру и предсказания по
	// prediction-тикеру (инверсные инструменты делят один прогноз)
	minuteCandles := make(map[string][]models.StockCandle)
	fiveMinCandles := make(map[string][]models.StockCandle)
	predictions := make(map[string]ai.Prediction)

	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}

		if err := s.processTarget(ctx, user, target, asset, minuteCandles, fiveMinCandles, predictions); err != nil {
			s.logger.Error("Target processing failed",
				slog.Int64("user_id", user.ID),
				slog.String("ticker", target.Ticker),
				slog.Any("error", err))
		}
	}
}

// processTarget прогоняет одну цель через все проверки цикла:
// исключение по висящему SELL, таймаут позиции, стоп-лосс,
// трейлинг-стоп и, наконец, сигнал модели.
func (s *Service) processTarget(
	ctx context.Context,
	user *models.User,
	target models.TradingTarget,
	asset models.Asset,
	minuteCandles, fiveMinCandles map[string][]models.StockCandle,
	predictions map[string]ai.Prediction,
) error {
	// Висящий SELL: пока судьба продажи неизвестна, любые новые
	// решения по тикеру опасны
	pendingSell, err := s.logs.HasPendingSell(user.ID, target.Ticker)
	if err != nil {
		return fmt.Errorf("pending sell check failed: %w", err)
	}

	if pendingSell {
		s.logger.Info("⏸ Skipping target, pending SELL in flight",
			slog.Int64("user_id", user.ID),
			slog.String("ticker", target.Ticker))

		return nil
	}

	owned, hasPosition := asset.FindOwnedStock(target.Ticker)

	// Таймаут позиции: скальпинг не держит позиции дольше maxHoldingMinutes
	if hasPosition && owned.Quantity > 0 {
		openedAt, found, err := s.logs.PositionOpenedAt(user.ID, target.Ticker)
		if err != nil {
			return fmt.Errorf("position age lookup failed: %w", err)
		}

		if found {
			held := int(time.Since(openedAt).Minutes())
			if held >= maxHoldingMinutes {
				s.logger.Info("⏰ Max holding time reached, forcing SELL",
					slog.Int64("user_id", user.ID),
					slog.String("ticker", target.Ticker),
					slog.Int("held_minutes", held))

				if err := s.ExecuteOrder(ctx, user, target, models.OrderSell, owned.CurrentPrice, 0); err != nil {
					return err
				}

				s.notifier.NotifyMaxHolding(user.TelegramChatID, target.Ticker, held)
				s.publish(Event{Type: "max_holding", UserID: user.ID, Ticker: target.Ticker})

				return nil
			}
		}
	}

	// Стоп-лосс: полная продажа и отключение цели
	if hasPosition && owned.Quantity > 0 && target.IsStopLossTriggered(owned.ProfitRate) {
		s.logger.Info("🛑 Stop-loss triggered",
			slog.Int64("user_id", user.ID),
			slog.String("ticker", target.Ticker),
			slog.Float64("profit_rate", owned.ProfitRate))

		if err := s.ExecuteOrder(ctx, user, target, models.OrderSell, owned.CurrentPrice, 0); err != nil {
			return err
		}

		if err := s.targets.UpdateTargetActive(target.ID, false); err != nil {
			s.logger.Error("Failed to deactivate target after stop-loss", slog.Any("error", err))
		}

		s.notifier.NotifyStopLoss(user.TelegramChatID, target.Ticker, owned.ProfitRate)
		s.publish(Event{Type: "stop_loss", UserID: user.ID, Ticker: target.Ticker, Price: owned.CurrentPrice})

		return nil
	}

	// Свечи тикера предсказания. Неудача дает пустой срез: цикл
	// продолжается, сигнал дефолтится в HOLD.
	predTicker := target.PredictionTicker()

	if _, ok := minuteCandles[predTicker]; !ok {
		minuteCandles[predTicker] = s.broker.GetRecentCandles(ctx, user, predTicker, minuteCandleCount)
	}

	predCandles := minuteCandles[predTicker]

	// Цена ордера и трейлинг-стоп считаются по свечам самого
	// инструмента: baseTicker кормит только модель
	tickerCandles := predCandles
	if target.Ticker != predTicker {
		if _, ok := minuteCandles[target.Ticker]; !ok {
			minuteCandles[target.Ticker] = s.broker.GetRecentCandles(ctx, user, target.Ticker, minuteCandleCount)
		}

		tickerCandles = minuteCandles[target.Ticker]
	}

	// Текущая цена ордера: close последней минутной свечи инструмента
	currentPrice := 0.0
	if len(tickerCandles) > 0 {
		currentPrice = tickerCandles[len(tickerCandles)-1].Close
	}

	if currentPrice == 0 {
		currentPrice = s.broker.GetCurrentPrice(ctx, user, target.Ticker)
	}

	if currentPrice == 0 {
		s.logger.Warn("No price data, skipping target",
			slog.Int64("user_id", user.ID),
			slog.String("ticker", target.Ticker))

		return nil
	}

	// Трейлинг-стоп: фиксация прибыли при откате от максимума окна.
	// Цель остается активной.
	if hasPosition && owned.Quantity > 0 && owned.ProfitRate > 0 {
		windowHigh := models.WindowHigh(tickerCandles, target.TrailingWindowMinutes)
		if target.IsTrailingStopTriggered(windowHigh, currentPrice) {
			s.logger.Info("📉 Trailing stop triggered",
				slog.Int64("user_id", user.ID),
				slog.String("ticker", target.Ticker),
				slog.Float64("window_high", windowHigh),
				slog.Float64("price", currentPrice))

			if err := s.ExecuteOrder(ctx, user, target, models.OrderSell, currentPrice, 0); err != nil {
				return err
			}

			s.notifier.NotifyTrailingStop(user.TelegramChatID, target.Ticker, windowHigh, currentPrice)
			s.publish(Event{Type: "trailing_stop", UserID: user.ID, Ticker: target.Ticker, Price: currentPrice})

			return nil
		}
	}

	// Сигнал модели: один Predict на prediction-тикер за цикл.
	// Без обеих серий свечей модель не вызывается, сигнал HOLD.
	prediction, ok := predictions[predTicker]
	if !ok {
		if _, cached := fiveMinCandles[predTicker]; !cached {
			fiveMinCandles[predTicker] = s.broker.GetRecentCandles5Min(ctx, user, predTicker, fiveMinCandleCount)
		}

		if len(predCandles) == 0 || len(fiveMinCandles[predTicker]) == 0 {
			s.logger.Warn("Candle data missing, defaulting to HOLD",
				slog.String("ticker", predTicker))

			prediction = ai.HoldPrediction(predTicker)
		} else {
			var err error

			prediction, err = s.ai.Predict(ctx, predTicker, predCandles, fiveMinCandles[predTicker],
				target.BuyThreshold, target.SellThreshold)
			if err != nil {
				s.logger.Warn("Prediction failed, defaulting to HOLD",
					slog.String("ticker", predTicker),
					slog.Any("error", err))

				prediction = ai.HoldPrediction(predTicker)
			}
		}

		predictions[predTicker] = prediction
	}

	signal := target.ApplyInverse(prediction.Prediction)

	s.logger.Debug("Signal",
		slog.Int64("user_id", user.ID),
		slog.String("ticker", target.Ticker),
		slog.String("raw", models.PredictionLabel(prediction.Prediction)),
		slog.String("effective", models.PredictionLabel(signal)),
		slog.Float64("confidence", prediction.Confidence))

	switch signal {
	case models.PredictionBuy:
		return s.ExecuteOrder(ctx, user, target, models.OrderBuy, currentPrice, prediction.Confidence)
	case models.PredictionSell:
		if !hasPosition || owned.Quantity == 0 {
			return nil
		}

		return s.ExecuteOrder(ctx, user, target, models.OrderSell, currentPrice, prediction.Confidence)
	}

	return nil
}

// ExecuteOrder отправляет ордер брокеру и журналирует попытку.
// BUY всегда на 1 акцию, SELL на весь объем позиции по данным брокера.
// confidence - уверенность модели для сигнальных ордеров, 0 для
// принудительных выходов. holdingQuantity здесь не меняется: только
// подтвержденное исполнение (reconciler) или периодическая
// синхронизация двигают счетчик.
func (s *Service) ExecuteOrder(ctx context.Context, user *models.User, target models.TradingTarget, action models.OrderType, price, confidence float64) error {
	quantity := 1

	if action == models.OrderSell {
		asset := s.broker.GetAccountAsset(ctx, user)

		owned, ok := asset.FindOwnedStock(target.Ticker)
		if !ok || owned.Quantity == 0 {
			s.logger.Warn("SELL aborted, nothing to sell",
				slog.Int64("user_id", user.ID),
				slog.String("ticker", target.Ticker))

			return fmt.Errorf("%w: %s", ErrInsufficientHoldings, target.Ticker)
		}

		quantity = owned.Quantity
	}

	order := models.StockOrder{
		Ticker:   target.Ticker,
		Type:     action,
		Quantity: quantity,
		Price:    price,
	}

	result := s.broker.SendOrder(ctx, user, order)

	if !result.Success {
		// Терминальная запись: брокер отклонил ордер, сверять нечего
		if _, err := s.logs.InsertTradeLog(models.NewFailedTradeLog(user.ID, target.Ticker, action, price)); err != nil {
			s.logger.Error("Failed to insert FAILED trade log", slog.Any("error", err))
		}

		return fmt.Errorf("order rejected by broker: %s", result.Message)
	}

	if _, err := s.logs.InsertTradeLog(models.NewPendingTradeLog(user.ID, target.Ticker, action, price, result.OrderID)); err != nil {
		s.logger.Error("Failed to insert PENDING trade log", slog.Any("error", err))
	}

	s.logger.Info("🚀 Order submitted",
		slog.Int64("user_id", user.ID),
		slog.String("ticker", target.Ticker),
		slog.String("action", string(action)),
		slog.Int("quantity", quantity),
		slog.Float64("price", price),
		slog.String("order_id", result.OrderID))

	s.notifier.NotifyOrder(user.TelegramChatID, target.Ticker, action, quantity, price, confidence)
	s.publish(Event{Type: "order", UserID: user.ID, Ticker: target.Ticker, Action: string(action), Price: price})

	return nil
}

// HandlePendingOrders сверяет зависшие PENDING ордера с брокером.
// Правило: успешная отмена = ордер не исполнился (CANCELLED), отказ
// в отмене = доказательство исполнения (FILLED).
func (s *Service) HandlePendingOrders(ctx context.Context) error {
	return s.reconcilePending(ctx, time.Now().Add(-pendingThreshold))
}

func (s *Service) reconcilePending(ctx context.Context, threshold time.Time) error {
	pending, err := s.logs.FindPendingBefore(threshold)
	if err != nil {
		return fmt.Errorf("failed to load pending trade logs: %w", err)
	}

	for _, log := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.reconcileOne(ctx, log); err != nil {
			s.logger.Error("Reconcile failed",
				slog.Int64("log_id", log.ID),
				slog.String("ticker", log.Ticker),
				slog.Any("error", err))
		}
	}

	return nil
}

// reconcileOne разбирает судьбу одного зависшего ордера
func (s *Service) reconcileOne(ctx context.Context, log models.TradeLog) error {
	// Терминальные записи не сверяются
	if log.Status.IsTerminal() {
		return nil
	}

	// Без номера ордера спросить брокера не о чем
	if log.OrderID == "" {
		if _, err := s.logs.TransitionTradeLog(log.ID, models.StatusPending, models.StatusFailed); err != nil {
			return err
		}

		s.logger.Warn("Pending order without id marked FAILED",
			slog.Int64("log_id", log.ID),
			slog.String("ticker", log.Ticker))

		return nil
	}

	user, err := s.users.GetUserByID(log.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", log.UserID, err)
	}

	cancel := s.broker.CancelOrder(ctx, user, log.OrderID)

	if cancel.Success {
		changed, err := s.logs.TransitionTradeLog(log.ID, models.StatusPending, models.StatusCancelled)
		if err != nil {
			return err
		}

		if changed {
			s.logger.Info("🗑 Stale order cancelled",
				slog.Int64("log_id", log.ID),
				slog.String("ticker", log.Ticker),
				slog.String("order_id", log.OrderID))

			s.publish(Event{Type: "order_cancelled", UserID: log.UserID, Ticker: log.Ticker})
		}

		return nil
	}

	// Отмена не прошла: ордер уже исполнен
	changed, err := s.logs.TransitionTradeLog(log.ID, models.StatusPending, models.StatusFilled)
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	s.logger.Info("✅ Order confirmed filled",
		slog.Int64("log_id", log.ID),
		slog.String("ticker", log.Ticker),
		slog.String("action", string(log.Action)),
		slog.String("order_id", log.OrderID))

	s.publish(Event{Type: "order_filled", UserID: log.UserID, Ticker: log.Ticker, Action: string(log.Action), Price: log.Price})

	target, err := s.targets.GetTarget(log.UserID, log.Ticker)
	if err != nil {
		s.logger.Warn("No target for filled order, holding counter not updated",
			slog.Int64("user_id", log.UserID),
			slog.String("ticker", log.Ticker))

		return nil
	}

	switch log.Action {
	case models.OrderBuy:
		// Покупки всегда по одной акции
		return s.targets.AdjustHoldingQuantity(target.ID, 1)
	case models.OrderSell:
		// Продажа всегда на весь объем: позиция закрыта целиком
		if _, err := s.logs.CloseFilledBuys(log.UserID, log.Ticker); err != nil {
			return err
		}

		return s.targets.UpdateHoldingQuantity(target.ID, 0)
	}

	return nil
}

// Initialize выполняет стартовую уборку после рестарта: сверяет давно
// зависшие ордера и закрывает осиротевшие задачи обучения
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("🔄 Startup reconciliation")

	if err := s.reconcilePending(ctx, time.Now().Add(-startupSweepThreshold)); err != nil {
		return err
	}

	running, err := s.training.FindRunningTraining(0)
	if err != nil {
		return fmt.Errorf("failed to load running trainings: %w", err)
	}

	for _, h := range running {
		if time.Since(h.CreatedAt) < trainingStallThreshold {
			continue
		}

		s.logger.Warn("⚠️  Stalled training marked FAILED",
			slog.Int64("user_id", h.UserID),
			slog.String("ticker", h.Ticker))

		if err := s.training.UpdateTrainingStatus(h.ID, models.TrainingFailed, "training stalled, cleaned up on restart"); err != nil {
			s.logger.Error("Failed to update stalled training", slog.Any("error", err))
		}
	}

	return nil
}

// SyncHoldingQuantities подтягивает локальные счетчики позиций к
// данным брокера. Брокер всегда прав.
func (s *Service) SyncHoldingQuantities(ctx context.Context) error {
	targets, err := s.targets.FindActiveTargets()
	if err != nil {
		return fmt.Errorf("failed to load active targets: %w", err)
	}

	assets := make(map[int64]models.Asset)

	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		asset, ok := assets[target.UserID]
		if !ok {
			user, err := s.users.GetUserByID(target.UserID)
			if err != nil {
				continue
			}

			asset = s.broker.GetAccountAsset(ctx, user)
			assets[target.UserID] = asset
		}

		quantity := 0
		if owned, ok := asset.FindOwnedStock(target.Ticker); ok {
			quantity = owned.Quantity
		}

		if quantity == target.HoldingQuantity {
			continue
		}

		s.logger.Info("🔄 Holding quantity synced",
			slog.Int64("user_id", target.UserID),
			slog.String("ticker", target.Ticker),
			slog.Int("local", target.HoldingQuantity),
			slog.Int("broker", quantity))

		if err := s.targets.UpdateHoldingQuantity(target.ID, quantity); err != nil {
			s.logger.Error("Failed to sync holding quantity", slog.Any("error", err))
		}
	}

	return nil
}
