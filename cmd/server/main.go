package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"autotrader/internal/ai"
	"autotrader/internal/api"
	"autotrader/internal/auth"
	"autotrader/internal/broker"
	"autotrader/internal/config"
	"autotrader/internal/notify"
	"autotrader/internal/storage"
	"autotrader/internal/tradelog"
	"autotrader/internal/trading"
	"autotrader/internal/training"
)

func main() {
	// Конфигурация slog для вывода в файл и stdout
	logFile, err := os.OpenFile("autotrader.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()

	// Pretty handler для stdout с цветами
	prettyHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen, // "3:04PM"
		AddSource:  false,
		NoColor:    false,
	})

	// Обычный текстовый handler для файла
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	// Мультиплексируем логи в оба handler'а
	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{prettyHandler, fileHandler},
	})

	logger.Info("=== AI Stock Auto-Trader ===")

	cfg := config.Load(logger)

	// Инициализация БД
	store, err := storage.New(cfg.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	// Инициализация auth сервиса
	authService := auth.NewService(cfg.JWTSecret, 24*time.Hour) // Токен действителен 24 часа

	// Уведомления (nil-safe при пустом токене)
	notifier := notify.New(cfg.TelegramToken, logger)

	// Брокеры: KIS боевой, LS заглушка
	kisClient := broker.NewKISClient(cfg.BrokerBaseURL, logger)
	lsClient := broker.NewLSClient(logger)
	brokerRouter := broker.NewRouter(kisClient, lsClient, cfg.DryRun, logger)

	// AI сервис предсказаний
	aiClient := ai.New(cfg.AIBaseURL, logger)

	// Websocket хаб для live событий
	hub := api.NewHub(logger)

	// Core торговый сервис
	tradingService := trading.NewService(
		store, store, store, store,
		brokerRouter, aiClient, notifier, hub, logger)

	tradelogService := tradelog.NewService(store, logger)
	trainingService := training.NewService(store, store, store, aiClient, notifier, logger)

	// Стартовая уборка: сверка зависших ордеров и осиротевших обучений
	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := tradingService.Initialize(initCtx); err != nil {
		logger.Error("Startup reconciliation failed", slog.Any("error", err))
	}
	initCancel()

	// Планировщик циклов
	scheduler := trading.NewScheduler(tradingService,
		cfg.CycleInterval, cfg.ReconcileInterval, cfg.SyncInterval, logger)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})

	go func() {
		defer close(schedulerDone)
		scheduler.Run(schedulerCtx)
	}()

	// Инициализация API handler
	apiHandler := api.New(store, authService, scheduler,
		tradelogService, trainingService, brokerRouter, hub, logger)

	// Настройка роутинга
	router := apiHandler.SetupRouter()

	// HTTP сервер
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("🚀 Server starting...", slog.String("address", cfg.Address))
		logger.Info(fmt.Sprintf("📡 API available at http://%s/api", cfg.Address))
		logger.Info(fmt.Sprintf("🏥 Health check at http://%s/health", cfg.Address))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("🛑 Shutting down server...")

	stopScheduler()
	<-schedulerDone

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("✅ Server stopped")
}

// multiHandler отправляет логи в несколько handlers одновременно
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}

	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}

	return &multiHandler{handlers: handlers}
}
