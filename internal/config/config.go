package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Address   string // Address для HTTP сервера (e.g., 0.0.0.0:8080)
	DBPath    string
	JWTSecret string
	DryRun    bool // Режим тестирования - только логирование, без реальных ордеров

	BrokerBaseURL string // KIS open API
	AIBaseURL     string // Python prediction сервис
	TelegramToken string // Пустой токен = уведомления отключены

	CycleInterval     time.Duration // Основной торговый цикл
	ReconcileInterval time.Duration // Сверка миновавших PENDING ордеров
	SyncInterval      time.Duration // Синхронизация holdingQuantity с брокером
}

// Load загружает конфигурацию из переменных окружения
func Load(logger *slog.Logger) *Config {
	// .env если есть, иначе чисто из окружения
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-me-in-production" // В продакшене использовать настоящий секрет!

		logger.Warn("⚠️  JWT_SECRET not set, using default (insecure!)")
	}

	aiURL := os.Getenv("AI_API_URL")
	if aiURL == "" {
		aiURL = "http://localhost:8000"
	}

	brokerURL := os.Getenv("KIS_API_URL")
	if brokerURL == "" {
		brokerURL = "https://openapi.koreainvestment.com:9443"
	}

	address := os.Getenv("ADDRESS")
	if address == "" {
		address = "0.0.0.0:8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./autotrader.db"
	}

	// Проверяем DRY_RUN флаг (по умолчанию true для безопасности)
	dryRun := true
	if os.Getenv("DRY_RUN") == "false" {
		dryRun = false

		logger.Warn("⚠️  DRY_RUN disabled - REAL ORDERS WILL BE SENT!")
	} else {
		logger.Info("🔍 DRY_RUN enabled - only logging, no real orders")
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		logger.Info("📴 TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}

	return &Config{
		Address:           address,
		DBPath:            dbPath,
		JWTSecret:         jwtSecret,
		DryRun:            dryRun,
		BrokerBaseURL:     brokerURL,
		AIBaseURL:         aiURL,
		TelegramToken:     token,
		CycleInterval:     durationEnv(logger, "CYCLE_INTERVAL_SEC", 60),
		ReconcileInterval: durationEnv(logger, "RECONCILE_INTERVAL_SEC", 120),
		SyncInterval:      durationEnv(logger, "SYNC_INTERVAL_SEC", 600),
	}
}

// durationEnv читает интервал в секундах из env с дефолтом
func durationEnv(logger *slog.Logger, key string, defaultSec int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultSec) * time.Second
	}

	sec, err := strconv.Atoi(raw)
	if err != nil || sec <= 0 {
		logger.Warn("Invalid interval, using default",
			slog.String("key", key),
			slog.String("value", raw))

		return time.Duration(defaultSec) * time.Second
	}

	return time.Duration(sec) * time.Second
}
