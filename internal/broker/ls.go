package broker

import (
	"context"
	"errors"
	"log/slog"

	"autotrader/internal/models"
)

var errLSNotImplemented = errors.New("LS broker integration not implemented")

// LSClient - заглушка LS Securities. Интеграция не реализована,
// все операции возвращают отказ, ордера через него не проходят.
type LSClient struct {
	logger *slog.Logger
}

// NewLSClient создает заглушку LS
func NewLSClient(logger *slog.Logger) *LSClient {
	return &LSClient{logger: logger}
}

func (c *LSClient) SendOrder(_ context.Context, _ models.BrokerContext, order models.StockOrder) OrderResult {
	c.logger.Warn("LS order rejected, broker not implemented", slog.String("ticker", order.Ticker))

	return OrderResult{Success: false, Message: errLSNotImplemented.Error()}
}

func (c *LSClient) CancelOrder(_ context.Context, _ models.BrokerContext, _ string) CancelResult {
	return CancelResult{Success: false, Message: errLSNotImplemented.Error()}
}

func (c *LSClient) GetCurrentPrice(_ context.Context, _ models.BrokerContext, _ string) (float64, error) {
	return 0, errLSNotImplemented
}

func (c *LSClient) GetRecentCandles(_ context.Context, _ models.BrokerContext, _ string, _ int) ([]models.StockCandle, error) {
	return nil, errLSNotImplemented
}

func (c *LSClient) GetRecentCandles5Min(_ context.Context, _ models.BrokerContext, _ string, _ int) ([]models.StockCandle, error) {
	return nil, errLSNotImplemented
}

func (c *LSClient) GetAccountAsset(_ context.Context, _ models.BrokerContext) (models.Asset, error) {
	return models.Asset{}, errLSNotImplemented
}
