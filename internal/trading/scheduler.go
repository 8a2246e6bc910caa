package trading

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler гоняет периодические задачи сервиса: торговый цикл,
// сверку зависших ордеров и синхронизацию позиций. Каждая задача
// защищена TryLock: затянувшийся прогон не наслаивается на следующий,
// пропущенный тик просто скипается.
type Scheduler struct {
	service *Service
	logger  *slog.Logger

	cycleInterval     time.Duration
	reconcileInterval time.Duration
	syncInterval      time.Duration

	cycleMu     sync.Mutex
	reconcileMu sync.Mutex
	syncMu      sync.Mutex
}

// NewScheduler создает планировщик торговых задач
func NewScheduler(service *Service, cycleInterval, reconcileInterval, syncInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:           service,
		logger:            logger,
		cycleInterval:     cycleInterval,
		reconcileInterval: reconcileInterval,
		syncInterval:      syncInterval,
	}
}

// Run запускает все циклы и блокируется до отмены контекста
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("🚀 Scheduler started",
		slog.Duration("cycle", s.cycleInterval),
		slog.Duration("reconcile", s.reconcileInterval),
		slog.Duration("sync", s.syncInterval))

	var wg sync.WaitGroup

	wg.Add(3)

	go func() {
		defer wg.Done()
		s.loop(ctx, s.cycleInterval, s.RunCycle)
	}()

	go func() {
		defer wg.Done()
		s.loop(ctx, s.reconcileInterval, s.RunReconcile)
	}()

	go func() {
		defer wg.Done()
		s.loop(ctx, s.syncInterval, s.RunSync)
	}()

	wg.Wait()

	s.logger.Info("🛑 Scheduler stopped")
}

// loop крутит одну задачу по тикеру до отмены контекста
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

// RunCycle выполняет торговый цикл, пропуская тик если предыдущий
// прогон еще идет. Вызывается и планировщиком, и по требованию из API.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.logger.Warn("Trading cycle still running, tick skipped")
		return
	}
	defer s.cycleMu.Unlock()

	started := time.Now()

	if err := s.service.ExecuteTradingCycle(ctx); err != nil {
		s.logger.Error("❌ Trading cycle failed", slog.Any("error", err))
		return
	}

	s.logger.Debug("Trading cycle done", slog.Duration("took", time.Since(started)))
}

// RunReconcile сверяет зависшие PENDING ордера
func (s *Scheduler) RunReconcile(ctx context.Context) {
	if !s.reconcileMu.TryLock() {
		s.logger.Warn("Reconcile still running, tick skipped")
		return
	}
	defer s.reconcileMu.Unlock()

	if err := s.service.HandlePendingOrders(ctx); err != nil {
		s.logger.Error("❌ Reconcile failed", slog.Any("error", err))
	}
}

// RunSync синхронизирует счетчики позиций с брокером
func (s *Scheduler) RunSync(ctx context.Context) {
	if !s.syncMu.TryLock() {
		return
	}
	defer s.syncMu.Unlock()

	if err := s.service.SyncHoldingQuantities(ctx); err != nil {
		s.logger.Error("❌ Holding sync failed", slog.Any("error", err))
	}
}
