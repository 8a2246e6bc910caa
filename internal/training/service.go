package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autotrader/internal/ai"
	"autotrader/internal/models"
)

var (
	ErrTrainingInProgress = errors.New("training already in progress")
	ErrNoTraining         = errors.New("no training found")
)

type Storage interface {
	InsertTrainingHistory(h models.TrainingHistory) (int64, error)
	UpdateTrainingStatus(id int64, status models.TrainingStatus, errorMessage string) error
	UpdateTrainingJobID(id int64, jobID string) error
	FindRunningTraining(userID int64) ([]models.TrainingHistory, error)
	LatestTraining(userID int64, ticker string) (*models.TrainingHistory, error)
	DeleteTrainingHistory(userID int64, ticker string) error
}

type TargetStorage interface {
	GetTarget(userID int64, ticker string) (models.TradingTarget, error)
}

type UserStorage interface {
	GetUserByID(id int64) (*models.User, error)
}

type AIClient interface {
	TrainModel(ctx context.Context, ticker string, target models.TradingTarget) (ai.TrainingJob, error)
	GetTrainingStatus(ctx context.Context, ticker string, userID int64) (ai.JobStatus, error)
	GetTrainingLog(ctx context.Context, ticker string, userID int64) (string, error)
	DeleteModel(ctx context.Context, ticker string, userID int64) error
}

type Notifier interface {
	NotifyTrainingDone(chatID int64, ticker string, failed bool, errorMessage string)
}

// Service управляет жизненным циклом обучения моделей. Обучение идет
// на стороне AI сервиса, завершение наблюдается поллингом статуса,
// колбэков нет.
type Service struct {
	storage  Storage
	targets  TargetStorage
	users    UserStorage
	ai       AIClient
	notifier Notifier
	logger   *slog.Logger
}

// NewService создает сервис обучения
func NewService(storage Storage, targets TargetStorage, users UserStorage, aiClient AIClient, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		targets:  targets,
		users:    users,
		ai:       aiClient,
		notifier: notifier,
		logger:   logger,
	}
}

// StartTraining запускает обучение модели по тикеру. На пользователя
// допускается только одно обучение одновременно: GPU на стороне AI
// сервиса один.
func (s *Service) StartTraining(ctx context.Context, userID int64, ticker string) (*models.TrainingHistory, error) {
	running, err := s.storage.FindRunningTraining(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check running trainings: %w", err)
	}

	if len(running) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrTrainingInProgress, running[0].Ticker)
	}

	target, err := s.targets.GetTarget(userID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load target %s: %w", ticker, err)
	}

	history := models.TrainingHistory{
		UserID:    userID,
		Ticker:    ticker,
		TrainDate: time.Now().Format("20060102"),
		Status:    models.TrainingPending,
	}

	id, err := s.storage.InsertTrainingHistory(history)
	if err != nil {
		return nil, fmt.Errorf("failed to record training: %w", err)
	}

	history.ID = id

	job, err := s.ai.TrainModel(ctx, ticker, target)
	if err != nil {
		if uerr := s.storage.UpdateTrainingStatus(id, models.TrainingFailed, err.Error()); uerr != nil {
			s.logger.Error("Failed to mark training FAILED", slog.Any("error", uerr))
		}

		return nil, fmt.Errorf("failed to start training: %w", err)
	}

	if err := s.storage.UpdateTrainingJobID(id, job.JobID); err != nil {
		s.logger.Error("Failed to store training job id", slog.Any("error", err))
	}

	if err := s.storage.UpdateTrainingStatus(id, models.TrainingRunning, ""); err != nil {
		s.logger.Error("Failed to mark training TRAINING", slog.Any("error", err))
	}

	history.JobID = job.JobID
	history.Status = models.TrainingRunning

	return &history, nil
}

// RefreshStatus опрашивает AI сервис и обновляет локальную запись.
// Возвращает актуальное состояние обучения.
func (s *Service) RefreshStatus(ctx context.Context, userID int64, ticker string) (*models.TrainingHistory, error) {
	history, err := s.storage.LatestTraining(userID, ticker)
	if err != nil {
		return nil, ErrNoTraining
	}

	// Терминальные записи не переопрашиваются
	if history.Status == models.TrainingCompleted || history.Status == models.TrainingFailed {
		return history, nil
	}

	status, err := s.ai.GetTrainingStatus(ctx, ticker, userID)
	if err != nil {
		s.logger.Warn("Training status poll failed",
			slog.String("ticker", ticker),
			slog.Any("error", err))

		return history, nil
	}

	switch status.Status {
	case "completed":
		history.Status = models.TrainingCompleted

		if err := s.storage.UpdateTrainingStatus(history.ID, models.TrainingCompleted, ""); err != nil {
			return nil, err
		}

		s.logger.Info("✅ Training completed",
			slog.Int64("user_id", userID),
			slog.String("ticker", ticker))

		s.notifyDone(userID, ticker, false, "")
	case "failed":
		history.Status = models.TrainingFailed
		history.ErrorMessage = status.ErrorMessage

		if err := s.storage.UpdateTrainingStatus(history.ID, models.TrainingFailed, status.ErrorMessage); err != nil {
			return nil, err
		}

		s.logger.Warn("❌ Training failed",
			slog.Int64("user_id", userID),
			slog.String("ticker", ticker),
			slog.String("error", status.ErrorMessage))

		s.notifyDone(userID, ticker, true, status.ErrorMessage)
	case "running":
		if history.Status != models.TrainingRunning {
			history.Status = models.TrainingRunning

			if err := s.storage.UpdateTrainingStatus(history.ID, models.TrainingRunning, ""); err != nil {
				return nil, err
			}
		}
	}

	return history, nil
}

// notifyDone шлет уведомление о завершении обучения, если у
// пользователя привязан чат
func (s *Service) notifyDone(userID int64, ticker string, failed bool, errorMessage string) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return
	}

	s.notifier.NotifyTrainingDone(user.TelegramChatID, ticker, failed, errorMessage)
}

// GetLog возвращает лог обучения с AI сервиса
func (s *Service) GetLog(ctx context.Context, userID int64, ticker string) (string, error) {
	return s.ai.GetTrainingLog(ctx, ticker, userID)
}

// DeleteModel удаляет модель на AI сервисе и локальную историю
func (s *Service) DeleteModel(ctx context.Context, userID int64, ticker string) error {
	if err := s.ai.DeleteModel(ctx, ticker, userID); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	if err := s.storage.DeleteTrainingHistory(userID, ticker); err != nil {
		return fmt.Errorf("failed to delete training history: %w", err)
	}

	s.logger.Info("🗑 Model deleted",
		slog.Int64("user_id", userID),
		slog.String("ticker", ticker))

	return nil
}
