package broker

import (
	"context"
	"errors"

	"autotrader/internal/models"
)

var (
	ErrNoBroker           = errors.New("no active broker configured")
	ErrInvalidCredentials = errors.New("broker credentials incomplete")
	ErrUnsupportedBroker  = errors.New("unsupported broker type")
)

// OrderResult - результат отправки ордера брокеру
type OrderResult struct {
	Success bool
	OrderID string // пустой, если брокер не вернул номер
	Message string
}

// CancelResult - результат попытки отмены ордера.
// Неуспех отмены означает, что ордер уже исполнен.
type CancelResult struct {
	Success bool
	Message string
}

// Client - клиент одного брокера. Все операции получают разрешенный
// BrokerContext: клиент не хранит учетные данные пользователей.
type Client interface {
	SendOrder(ctx context.Context, bctx models.BrokerContext, order models.StockOrder) OrderResult
	CancelOrder(ctx context.Context, bctx models.BrokerContext, orderID string) CancelResult
	GetCurrentPrice(ctx context.Context, bctx models.BrokerContext, ticker string) (float64, error)
	GetRecentCandles(ctx context.Context, bctx models.BrokerContext, ticker string, limit int) ([]models.StockCandle, error)
	GetRecentCandles5Min(ctx context.Context, bctx models.BrokerContext, ticker string, limit int) ([]models.StockCandle, error)
	GetAccountAsset(ctx context.Context, bctx models.BrokerContext) (models.Asset, error)
}
