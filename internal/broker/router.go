package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/cache"
	"autotrader/internal/models"
)

// assetCacheTTL - снимок счета дорогой (два вызова KIS), кэшируем ненадолго
const assetCacheTTL = 10 * time.Second

// Router направляет операции в клиент активного брокера пользователя.
// Учетные данные разрешаются заново перед каждым вызовом, контекст
// нигде не сохраняется. Для пользователей без рабочего брокера все
// операции возвращают безопасные нейтральные значения: несработавший
// ордер, нулевую цену, пустые свечи, пустой счет.
type Router struct {
	kis        Client
	ls         Client
	assetCache *cache.Cache[models.Asset]
	logger     *slog.Logger
	dryRun     bool
}

// NewRouter создает маршрутизатор брокеров
func NewRouter(kis, ls Client, dryRun bool, logger *slog.Logger) *Router {
	return &Router{
		kis:        kis,
		ls:         ls,
		assetCache: cache.New[models.Asset](assetCacheTTL),
		logger:     logger,
		dryRun:     dryRun,
	}
}

// ResolveContext собирает BrokerContext из активного брокера пользователя.
// Формат счета "CANO-PRDT"; без суффикса подставляется код продукта "01".
func (r *Router) ResolveContext(user *models.User) (models.BrokerContext, error) {
	if user.ActiveBrokerID == 0 {
		return models.BrokerContext{}, ErrNoBroker
	}

	var info *models.BrokerInfo
	for i := range user.BrokerInfos {
		if user.BrokerInfos[i].ID == user.ActiveBrokerID {
			info = &user.BrokerInfos[i]
			break
		}
	}

	if info == nil {
		return models.BrokerContext{}, ErrNoBroker
	}

	if !info.HasValidCredentials() {
		return models.BrokerContext{}, ErrInvalidCredentials
	}

	cano := info.AccountNumber
	prdt := "01"

	if idx := strings.Index(info.AccountNumber, "-"); idx > 0 {
		cano = info.AccountNumber[:idx]
		prdt = info.AccountNumber[idx+1:]
	}

	return models.BrokerContext{
		AppKey:     info.AppKey,
		AppSecret:  info.AppSecret,
		AccountNo:  info.AccountNumber,
		Cano:       cano,
		AcntPrdtCd: prdt,
		BrokerType: info.BrokerType,
	}, nil
}

// clientFor выбирает клиент по типу брокера
func (r *Router) clientFor(brokerType models.BrokerType) (Client, error) {
	switch brokerType {
	case models.BrokerKIS:
		return r.kis, nil
	case models.BrokerLS:
		return r.ls, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBroker, brokerType)
	}
}

// SendOrder отправляет ордер через активного брокера пользователя.
// В DRY_RUN режиме ордер не отправляется, возвращается успех с
// синтетическим номером.
func (r *Router) SendOrder(ctx context.Context, user *models.User, order models.StockOrder) OrderResult {
	traceID := uuid.New().String()[:8]

	bctx, err := r.ResolveContext(user)
	if err != nil {
		r.logger.Warn("Order skipped, no usable broker",
			slog.String("trace_id", traceID),
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))

		return OrderResult{Success: false, Message: err.Error()}
	}

	if r.dryRun {
		r.logger.Info("🔍 DRY_RUN order",
			slog.String("trace_id", traceID),
			slog.Int64("user_id", user.ID),
			slog.String("ticker", order.Ticker),
			slog.String("type", string(order.Type)),
			slog.Int("quantity", order.Quantity),
			slog.Float64("price", order.Price))

		return OrderResult{Success: true, OrderID: "DRY-" + traceID}
	}

	client, err := r.clientFor(bctx.BrokerType)
	if err != nil {
		return OrderResult{Success: false, Message: err.Error()}
	}

	r.logger.Info("📡 Routing order",
		slog.String("trace_id", traceID),
		slog.Int64("user_id", user.ID),
		slog.String("broker", string(bctx.BrokerType)),
		slog.String("ticker", order.Ticker),
		slog.String("type", string(order.Type)))

	return client.SendOrder(ctx, bctx, order)
}

// CancelOrder отменяет ордер через активного брокера
func (r *Router) CancelOrder(ctx context.Context, user *models.User, orderID string) CancelResult {
	bctx, err := r.ResolveContext(user)
	if err != nil {
		return CancelResult{Success: false, Message: err.Error()}
	}

	if r.dryRun && strings.HasPrefix(orderID, "DRY-") {
		return CancelResult{Success: true}
	}

	client, err := r.clientFor(bctx.BrokerType)
	if err != nil {
		return CancelResult{Success: false, Message: err.Error()}
	}

	return client.CancelOrder(ctx, bctx, orderID)
}

// GetCurrentPrice возвращает текущую цену, 0 при недоступном брокере
func (r *Router) GetCurrentPrice(ctx context.Context, user *models.User, ticker string) float64 {
	bctx, err := r.ResolveContext(user)
	if err != nil {
		return 0
	}

	client, err := r.clientFor(bctx.BrokerType)
	if err != nil {
		return 0
	}

	price, err := client.GetCurrentPrice(ctx, bctx, ticker)
	if err != nil {
		r.logger.Warn("Price fetch failed",
			slog.String("ticker", ticker),
			slog.Any("error", err))

		return 0
	}

	return price
}

// GetRecentCandles возвращает минутные свечи, пустой срез при ошибке
func (r *Router) GetRecentCandles(ctx context.Context, user *models.User, ticker string, limit int) []models.StockCandle {
	return r.candles(ctx, user, ticker, limit, false)
}

// GetRecentCandles5Min возвращает 5-минутные свечи, пустой срез при ошибке
func (r *Router) GetRecentCandles5Min(ctx context.Context, user *models.User, ticker string, limit int) []models.StockCandle {
	return r.candles(ctx, user, ticker, limit, true)
}

func (r *Router) candles(ctx context.Context, user *models.User, ticker string, limit int, fiveMin bool) []models.StockCandle {
	bctx, err := r.ResolveContext(user)
	if err != nil {
		return nil
	}

	client, err := r.clientFor(bctx.BrokerType)
	if err != nil {
		return nil
	}

	var candles []models.StockCandle
	if fiveMin {
		candles, err = client.GetRecentCandles5Min(ctx, bctx, ticker, limit)
	} else {
		candles, err = client.GetRecentCandles(ctx, bctx, ticker, limit)
	}

	if err != nil {
		r.logger.Warn("Candle fetch failed",
			slog.String("ticker", ticker),
			slog.Bool("five_min", fiveMin),
			slog.Any("error", err))

		return nil
	}

	return candles
}

// GetAccountAsset возвращает снимок счета через короткий кэш.
// Недоступный брокер дает пустой снимок.
func (r *Router) GetAccountAsset(ctx context.Context, user *models.User) models.Asset {
	bctx, err := r.ResolveContext(user)
	if err != nil {
		return models.Asset{}
	}

	key := fmt.Sprintf("asset:%d:%s", user.ID, bctx.AccountNo)
	if asset, ok := r.assetCache.Get(key); ok {
		return asset
	}

	client, err := r.clientFor(bctx.BrokerType)
	if err != nil {
		return models.Asset{}
	}

	asset, err := client.GetAccountAsset(ctx, bctx)
	if err != nil {
		r.logger.Warn("Asset fetch failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err))

		return models.Asset{}
	}

	r.assetCache.Set(key, asset)

	return asset
}
