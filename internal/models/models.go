package models

import (
	"strings"
	"time"
)

// BrokerType - тип брокера (закрытое множество)
type BrokerType string

const (
	BrokerKIS BrokerType = "KIS" // Korea Investment & Securities
	BrokerLS  BrokerType = "LS"  // LS Securities (пока заглушка)
)

// OrderType - направление ордера
type OrderType string

const (
	OrderBuy  OrderType = "BUY"
	OrderSell OrderType = "SELL"
)

// OrderStatus - статус записи в журнале ордеров.
// Переходы только вперед: PENDING -> {FILLED, CANCELLED, FAILED}, FILLED(BUY) -> CLOSED.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusFilled    OrderStatus = "FILLED"
	StatusClosed    OrderStatus = "CLOSED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFailed    OrderStatus = "FAILED"
)

// IsTerminal сообщает, допускает ли статус дальнейшие переходы.
// CLOSED, CANCELLED и FAILED - конечные. FILLED конечный для SELL,
// но BUY может перейти в CLOSED.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled || s == StatusFailed
}

// Предсказания AI модели
const (
	PredictionHold = 0
	PredictionBuy  = 1
	PredictionSell = 2
)

// PredictionLabel возвращает текстовую метку предсказания
func PredictionLabel(prediction int) string {
	switch prediction {
	case PredictionBuy:
		return "BUY"
	case PredictionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// User - пользователь системы
type User struct {
	ID               int64
	Username         string
	PasswordHash     string
	Role             string
	Active           bool
	ActiveBrokerID   int64  // 0 = брокер не выбран
	TradingStartTime string // "HH:MM", пустая строка = без ограничения
	TradingEndTime   string
	TelegramChatID   int64 // 0 = уведомления отключены
	BrokerInfos      []BrokerInfo
	CreatedAt        time.Time
}

// IsWithinTradingHours проверяет, попадает ли момент now в торговое окно пользователя.
// Окно может переходить через полночь (start > end, например 22:00-06:00).
// Если любая граница не задана - торговля разрешена всегда.
func (u *User) IsWithinTradingHours(now time.Time) bool {
	start, okStart := parseClock(u.TradingStartTime)
	end, okEnd := parseClock(u.TradingEndTime)
	if !okStart || !okEnd {
		return true
	}

	minutes := now.Hour()*60 + now.Minute()
	if start > end {
		// Ночное окно
		return minutes >= start || minutes < end
	}

	return minutes >= start && minutes < end
}

// parseClock разбирает "HH:MM" в минуты от полуночи
func parseClock(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}

	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}

	return h*60 + m, true
}

// BrokerInfo - учетные данные пользователя у брокера
type BrokerInfo struct {
	ID            int64
	UserID        int64
	BrokerType    BrokerType
	AppKey        string
	AppSecret     string
	AccountNumber string // формат "CANO-PRDT", например "12345678-01"
}

// HasValidCredentials проверяет, что все обязательные поля заполнены
func (b BrokerInfo) HasValidCredentials() bool {
	return b.AppKey != "" && b.AppSecret != "" && b.AccountNumber != ""
}

// BrokerContext - разрешенный контекст для одного вызова брокера.
// Никогда не сохраняется, собирается заново перед каждой операцией.
type BrokerContext struct {
	AppKey     string
	AppSecret  string
	AccountNo  string
	Cano       string
	AcntPrdtCd string
	BrokerType BrokerType
}

// TradingTarget - настройка автоторговли пользователя по одному тикеру
type TradingTarget struct {
	ID                     int64
	UserID                 int64
	Ticker                 string
	Active                 bool
	BuyThreshold           int     // порог уверенности для покупки, 0-100
	SellThreshold          int     // порог уверенности для продажи, 0-100
	StopLossPercentage     float64 // 3.0 = продать при P&L <= -3%
	BaseTicker             string  // тикер-источник свечей для предсказания (опционально)
	Inverse                bool    // инверсные инструменты: BUY<->SELL
	TrailingStopPercentage float64
	TrailingStopEnabled    bool
	TrailingWindowMinutes  int
	BrokerID               int64
	HoldingQuantity        int // локальное зеркало позиции у брокера, >= 0

	// Параметры обучения модели
	ProfitATR           float64
	StopATR             float64
	MaxHolding          int
	MinThreshold        float64
	TrainingPeriodYears int
	TuningTrials        int
}

// NewTradingTarget создает target с дефолтными настройками
func NewTradingTarget(userID int64, ticker string, brokerID int64) TradingTarget {
	return TradingTarget{
		UserID:                 userID,
		Ticker:                 strings.ToUpper(ticker),
		Active:                 false,
		BuyThreshold:           10,
		SellThreshold:          10,
		StopLossPercentage:     3.0,
		TrailingStopPercentage: 2.0,
		TrailingStopEnabled:    true,
		TrailingWindowMinutes:  10,
		BrokerID:               brokerID,
		ProfitATR:              0.6,
		StopATR:                0.4,
		MaxHolding:             5,
		MinThreshold:           0.2,
		TrainingPeriodYears:    4,
		TuningTrials:           30,
	}
}

// PredictionTicker возвращает тикер, свечи которого идут в AI модель.
// Для инверсных/плечевых инструментов это baseTicker, ордера при этом
// выставляются на основной ticker.
func (t *TradingTarget) PredictionTicker() string {
	if strings.TrimSpace(t.BaseTicker) != "" {
		return t.BaseTicker
	}

	return t.Ticker
}

// IsStopLossTriggered - сработал ли стоп-лосс при данной доходности (в процентах)
func (t *TradingTarget) IsStopLossTriggered(profitRate float64) bool {
	return profitRate <= -t.StopLossPercentage
}

// IsTrailingStopTriggered - сработал ли трейлинг-стоп.
// windowHigh == 0 означает отсутствие данных, стоп не срабатывает.
func (t *TradingTarget) IsTrailingStopTriggered(windowHigh, currentPrice float64) bool {
	if !t.TrailingStopEnabled || windowHigh <= 0 {
		return false
	}

	dropPercent := (windowHigh - currentPrice) / windowHigh * 100

	return dropPercent >= t.TrailingStopPercentage
}

// ApplyInverse применяет инверсию к сырому предсказанию.
// HOLD не инвертируется.
func (t *TradingTarget) ApplyInverse(prediction int) int {
	if !t.Inverse || prediction == PredictionHold {
		return prediction
	}

	if prediction == PredictionBuy {
		return PredictionSell
	}

	return PredictionBuy
}

// TradeLog - запись о попытке ордера (не о сделке)
type TradeLog struct {
	ID        int64
	UserID    int64
	Ticker    string
	Action    OrderType
	Price     float64 // цена на момент решения, не обязательно цена исполнения
	OrderID   string  // присвоен брокером, пустой если брокер не вернул id
	Status    OrderStatus
	Timestamp time.Time
}

// NewPendingTradeLog создает PENDING запись после успешной отправки ордера
func NewPendingTradeLog(userID int64, ticker string, action OrderType, price float64, orderID string) TradeLog {
	return TradeLog{
		UserID:    userID,
		Ticker:    ticker,
		Action:    action,
		Price:     price,
		OrderID:   orderID,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
}

// NewFailedTradeLog создает терминальную FAILED запись, когда брокер отклонил ордер
func NewFailedTradeLog(userID int64, ticker string, action OrderType, price float64) TradeLog {
	return TradeLog{
		UserID:    userID,
		Ticker:    ticker,
		Action:    action,
		Price:     price,
		Status:    StatusFailed,
		Timestamp: time.Now(),
	}
}

// StockOrder - ордер, отправляемый брокеру
type StockOrder struct {
	Ticker   string
	Type     OrderType
	Quantity int
	Price    float64
}

// Asset - снимок счета у брокера. Не персистится: брокер - единственный
// источник правды по позициям.
type Asset struct {
	AccountNo   string       `json:"account_no"`
	TotalAsset  float64      `json:"total_asset"`
	USDDeposit  float64      `json:"usd_deposit"`
	OwnedStocks []OwnedStock `json:"owned_stocks"`
}

// OwnedStock - одна позиция на счете
type OwnedStock struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
	CurrentPrice float64 `json:"current_price"`
	ProfitRate   float64 `json:"profit_rate"` // в процентах
}

// FindOwnedStock ищет позицию по тикеру
func (a *Asset) FindOwnedStock(ticker string) (OwnedStock, bool) {
	for _, s := range a.OwnedStocks {
		if s.Ticker == ticker {
			return s, true
		}
	}

	return OwnedStock{}, false
}

// StockCandle - OHLCV бар, свечи упорядочены от старых к новым
type StockCandle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// WindowHigh возвращает максимум high среди последних windowMinutes свечей.
// Пустой срез дает 0 (нет данных).
func WindowHigh(candles []StockCandle, windowMinutes int) float64 {
	if len(candles) == 0 || windowMinutes <= 0 {
		return 0
	}

	start := len(candles) - windowMinutes
	if start < 0 {
		start = 0
	}

	high := 0.0
	for _, c := range candles[start:] {
		if c.High > high {
			high = c.High
		}
	}

	return high
}

// TrainingStatus - статус задачи обучения модели
type TrainingStatus string

const (
	TrainingPending   TrainingStatus = "PENDING"
	TrainingRunning   TrainingStatus = "TRAINING"
	TrainingCompleted TrainingStatus = "COMPLETED"
	TrainingFailed    TrainingStatus = "FAILED"
)

// TrainingHistory - запись об обучении модели по тикеру
type TrainingHistory struct {
	ID           int64
	UserID       int64
	Ticker       string
	TrainDate    string // YYYYMMDD
	JobID        string
	Status       TrainingStatus
	ErrorMessage string
	CreatedAt    time.Time
}
