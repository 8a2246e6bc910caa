package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"autotrader/internal/models"
)

// Prediction - ответ AI модели на запрос предсказания
type Prediction struct {
	Ticker        string    `json:"ticker"`
	Prediction    int       `json:"prediction"` // 0=HOLD, 1=BUY, 2=SELL
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"` // [hold, buy, sell]
}

// HoldPrediction - безопасный дефолт при ошибке или отсутствии данных
func HoldPrediction(ticker string) Prediction {
	return Prediction{
		Ticker:        ticker,
		Prediction:    models.PredictionHold,
		Confidence:    0,
		Probabilities: []float64{1, 0, 0},
	}
}

// TrainingJob - принятая задача обучения
type TrainingJob struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatus - текущее состояние задачи обучения на стороне AI сервиса
type JobStatus struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"` // pending, running, completed, failed
	ErrorMessage string `json:"error_message"`
}

// Client - клиент Python сервиса предсказаний (FastAPI)
type Client struct {
	client *resty.Client
	logger *slog.Logger
}

// New создает AI клиент
func New(baseURL string, logger *slog.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)

	return &Client{
		client: client,
		logger: logger,
	}
}

type predictRequest struct {
	Ticker           string               `json:"ticker"`
	MinuteCandles    []models.StockCandle `json:"minute_candles"`
	FiveminCandles   []models.StockCandle `json:"fivemin_candles"`
	MinBuyThreshold  float64              `json:"min_buy_threshold"`
	MinSellThreshold float64              `json:"min_sell_threshold"`
}

// Predict запрашивает предсказание по свечам.
// Пороги приходят в процентах (0-100) и передаются модели как доли.
func (c *Client) Predict(ctx context.Context, ticker string, minuteCandles, fiveminCandles []models.StockCandle, buyThreshold, sellThreshold int) (Prediction, error) {
	var result Prediction

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(predictRequest{
			Ticker:           ticker,
			MinuteCandles:    minuteCandles,
			FiveminCandles:   fiveminCandles,
			MinBuyThreshold:  float64(buyThreshold) / 100.0,
			MinSellThreshold: float64(sellThreshold) / 100.0,
		}).
		SetResult(&result).
		Post("/predict")
	if err != nil {
		return HoldPrediction(ticker), fmt.Errorf("predict request failed: %w", err)
	}

	if resp.IsError() {
		return HoldPrediction(ticker), fmt.Errorf("predict returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return result, nil
}

type trainRequest struct {
	UserID              int64   `json:"user_id"`
	ProfitATR           float64 `json:"profit_atr"`
	StopATR             float64 `json:"stop_atr"`
	MaxHolding          int     `json:"max_holding"`
	MinThreshold        float64 `json:"min_threshold"`
	TrainingPeriodYears int     `json:"training_period_years"`
	TuningTrials        int     `json:"tuning_trials"`
}

// TrainModel запускает обучение модели по тикеру. Обучение асинхронное:
// сервис сразу возвращает job_id, прогресс отслеживается поллингом.
func (c *Client) TrainModel(ctx context.Context, ticker string, target models.TradingTarget) (TrainingJob, error) {
	var result TrainingJob

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(trainRequest{
			UserID:              target.UserID,
			ProfitATR:           target.ProfitATR,
			StopATR:             target.StopATR,
			MaxHolding:          target.MaxHolding,
			MinThreshold:        target.MinThreshold,
			TrainingPeriodYears: target.TrainingPeriodYears,
			TuningTrials:        target.TuningTrials,
		}).
		SetResult(&result).
		Post("/train/" + ticker)
	if err != nil {
		return TrainingJob{}, fmt.Errorf("train request failed: %w", err)
	}

	if resp.IsError() {
		return TrainingJob{}, fmt.Errorf("train returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("🚀 Training started",
		slog.String("ticker", ticker),
		slog.String("job_id", result.JobID))

	return result, nil
}

// GetTrainingStatus запрашивает статус задачи обучения
func (c *Client) GetTrainingStatus(ctx context.Context, ticker string, userID int64) (JobStatus, error) {
	var result JobStatus

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("user_id", fmt.Sprintf("%d", userID)).
		SetResult(&result).
		Get("/train/" + ticker + "/status")
	if err != nil {
		return JobStatus{}, fmt.Errorf("training status request failed: %w", err)
	}

	if resp.IsError() {
		return JobStatus{}, fmt.Errorf("training status returned %d: %s", resp.StatusCode(), resp.String())
	}

	return result, nil
}

// GetTrainingLog возвращает лог обучения (сырой текст)
func (c *Client) GetTrainingLog(ctx context.Context, ticker string, userID int64) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("user_id", fmt.Sprintf("%d", userID)).
		Get("/train/" + ticker + "/logs")
	if err != nil {
		return "", fmt.Errorf("training log request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("training log returned %d", resp.StatusCode())
	}

	return resp.String(), nil
}

// DeleteModel удаляет обученную модель на стороне AI сервиса
func (c *Client) DeleteModel(ctx context.Context, ticker string, userID int64) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("user_id", fmt.Sprintf("%d", userID)).
		Delete("/models/" + ticker)
	if err != nil {
		return fmt.Errorf("delete model request failed: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("delete model returned %d", resp.StatusCode())
	}

	return nil
}
