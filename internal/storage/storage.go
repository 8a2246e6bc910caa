package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autotrader/internal/models"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Storage управляет базой данных приложения
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// New создает новый экземпляр Storage
func New(dbPath string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:     db,
		logger: logger,
	}

	if err := s.init(); err != nil {
		return nil, err
	}

	return s, nil
}

// init инициализирует таблицы БД
func (s *Storage) init() error {
	migrationSQL := `
-- Пользователи
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    active INTEGER DEFAULT 1,
    active_broker_id INTEGER DEFAULT 0,
    trading_start_time TEXT DEFAULT '',
    trading_end_time TEXT DEFAULT '',
    telegram_chat_id INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Учетные данные брокеров
CREATE TABLE IF NOT EXISTS broker_infos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    broker_type TEXT NOT NULL,
    app_key TEXT NOT NULL,
    app_secret TEXT NOT NULL,
    account_number TEXT NOT NULL,
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_broker_infos_user ON broker_infos(user_id);

-- Цели автоторговли (user, ticker)
CREATE TABLE IF NOT EXISTS trading_targets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    ticker TEXT NOT NULL,
    active INTEGER DEFAULT 0,
    buy_threshold INTEGER DEFAULT 10,
    sell_threshold INTEGER DEFAULT 10,
    stop_loss_percentage REAL DEFAULT 3.0,
    base_ticker TEXT DEFAULT '',
    inverse INTEGER DEFAULT 0,
    trailing_stop_percentage REAL DEFAULT 2.0,
    trailing_stop_enabled INTEGER DEFAULT 1,
    trailing_window_minutes INTEGER DEFAULT 10,
    broker_id INTEGER DEFAULT 0,
    holding_quantity INTEGER DEFAULT 0,
    profit_atr REAL DEFAULT 0.6,
    stop_atr REAL DEFAULT 0.4,
    max_holding INTEGER DEFAULT 5,
    min_threshold REAL DEFAULT 0.2,
    training_period_years INTEGER DEFAULT 4,
    tuning_trials INTEGER DEFAULT 30,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(user_id, ticker),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_targets_active ON trading_targets(active);

-- Журнал попыток ордеров (append-only, записи не удаляются)
CREATE TABLE IF NOT EXISTS trade_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    ticker TEXT NOT NULL,
    action TEXT NOT NULL,
    price REAL NOT NULL,
    order_id TEXT DEFAULT '',
    status TEXT NOT NULL DEFAULT 'PENDING',
    timestamp DATETIME NOT NULL,
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_trade_logs_user ON trade_logs(user_id, ticker);
CREATE INDEX IF NOT EXISTS idx_trade_logs_status ON trade_logs(status);

-- История обучения моделей
CREATE TABLE IF NOT EXISTS training_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    ticker TEXT NOT NULL,
    train_date TEXT NOT NULL,
    job_id TEXT DEFAULT '',
    status TEXT NOT NULL,
    error_message TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(user_id, ticker, train_date),
    FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

	if _, err := s.db.Exec(migrationSQL); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	s.logger.Info("✅ Database initialized")

	return nil
}

// Close закрывает соединение с БД
func (s *Storage) Close() error {
	return s.db.Close()
}

// === Users ===

// CreateUser создает нового пользователя
func (s *Storage) CreateUser(username, passwordHash string) (*models.User, error) {
	result, err := s.db.Exec(`
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, _ := result.LastInsertId()

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         "user",
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}

// GetUserByUsername получает пользователя по имени
func (s *Storage) GetUserByUsername(username string) (*models.User, error) {
	return s.getUser("username = ?", username)
}

// GetUserByID получает пользователя по ID вместе с учетными данными брокеров
func (s *Storage) GetUserByID(id int64) (*models.User, error) {
	return s.getUser("id = ?", id)
}

func (s *Storage) getUser(where string, arg any) (*models.User, error) {
	var user models.User
	var activeInt int

	err := s.db.QueryRow(`
		SELECT id, username, password_hash, role, COALESCE(active, 1),
		       COALESCE(active_broker_id, 0), COALESCE(trading_start_time, ''),
		       COALESCE(trading_end_time, ''), COALESCE(telegram_chat_id, 0), created_at
		FROM users
		WHERE `+where, arg).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role, &activeInt,
		&user.ActiveBrokerID, &user.TradingStartTime, &user.TradingEndTime,
		&user.TelegramChatID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Active = activeInt == 1

	infos, err := s.GetBrokerInfos(user.ID)
	if err != nil {
		return nil, err
	}
	user.BrokerInfos = infos

	return &user, nil
}

// UpdateUserSettings обновляет торговое окно, чат и активного брокера
func (s *Storage) UpdateUserSettings(userID int64, startTime, endTime string, chatID, activeBrokerID int64) error {
	result, err := s.db.Exec(`
		UPDATE users
		SET trading_start_time = ?, trading_end_time = ?, telegram_chat_id = ?, active_broker_id = ?
		WHERE id = ?
	`, startTime, endTime, chatID, activeBrokerID, userID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// === Broker infos ===

// AddBrokerInfo добавляет учетные данные брокера
func (s *Storage) AddBrokerInfo(info models.BrokerInfo) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO broker_infos (user_id, broker_type, app_key, app_secret, account_number)
		VALUES (?, ?, ?, ?, ?)
	`, info.UserID, string(info.BrokerType), info.AppKey, info.AppSecret, info.AccountNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to add broker info: %w", err)
	}

	id, _ := result.LastInsertId()

	s.logger.Info("✅ Broker credentials added",
		slog.Int64("user_id", info.UserID),
		slog.String("broker", string(info.BrokerType)))

	return id, nil
}

// GetBrokerInfos возвращает все учетные данные брокеров пользователя
func (s *Storage) GetBrokerInfos(userID int64) ([]models.BrokerInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, broker_type, app_key, app_secret, account_number
		FROM broker_infos
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []models.BrokerInfo
	for rows.Next() {
		var info models.BrokerInfo
		var brokerType string

		if err := rows.Scan(&info.ID, &info.UserID, &brokerType,
			&info.AppKey, &info.AppSecret, &info.AccountNumber); err != nil {
			continue
		}

		info.BrokerType = models.BrokerType(brokerType)
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// DeleteBrokerInfo удаляет учетные данные брокера
func (s *Storage) DeleteBrokerInfo(userID, infoID int64) error {
	result, err := s.db.Exec(`DELETE FROM broker_infos WHERE user_id = ? AND id = ?`, userID, infoID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// === Trading targets ===

const targetColumns = `
	id, user_id, ticker, COALESCE(active, 0), buy_threshold, sell_threshold,
	stop_loss_percentage, COALESCE(base_ticker, ''), COALESCE(inverse, 0),
	trailing_stop_percentage, COALESCE(trailing_stop_enabled, 1), trailing_window_minutes,
	COALESCE(broker_id, 0), COALESCE(holding_quantity, 0),
	profit_atr, stop_atr, max_holding, min_threshold, training_period_years, tuning_trials`

func scanTarget(scan func(...any) error) (models.TradingTarget, error) {
	var t models.TradingTarget
	var activeInt, inverseInt, trailingInt int

	err := scan(
		&t.ID, &t.UserID, &t.Ticker, &activeInt, &t.BuyThreshold, &t.SellThreshold,
		&t.StopLossPercentage, &t.BaseTicker, &inverseInt,
		&t.TrailingStopPercentage, &trailingInt, &t.TrailingWindowMinutes,
		&t.BrokerID, &t.HoldingQuantity,
		&t.ProfitATR, &t.StopATR, &t.MaxHolding, &t.MinThreshold,
		&t.TrainingPeriodYears, &t.TuningTrials)
	if err != nil {
		return t, err
	}

	t.Active = activeInt == 1
	t.Inverse = inverseInt == 1
	t.TrailingStopEnabled = trailingInt == 1

	return t, nil
}

// CreateTarget создает цель автоторговли
func (s *Storage) CreateTarget(t models.TradingTarget) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO trading_targets (
			user_id, ticker, active, buy_threshold, sell_threshold, stop_loss_percentage,
			base_ticker, inverse, trailing_stop_percentage, trailing_stop_enabled,
			trailing_window_minutes, broker_id, holding_quantity,
			profit_atr, stop_atr, max_holding, min_threshold, training_period_years, tuning_trials)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.UserID, t.Ticker, boolToInt(t.Active), t.BuyThreshold, t.SellThreshold,
		t.StopLossPercentage, t.BaseTicker, boolToInt(t.Inverse),
		t.TrailingStopPercentage, boolToInt(t.TrailingStopEnabled),
		t.TrailingWindowMinutes, t.BrokerID, t.HoldingQuantity,
		t.ProfitATR, t.StopATR, t.MaxHolding, t.MinThreshold,
		t.TrainingPeriodYears, t.TuningTrials)
	if err != nil {
		return 0, fmt.Errorf("failed to create target: %w", err)
	}

	id, _ := result.LastInsertId()

	return id, nil
}

// UpdateTarget обновляет настройки цели
func (s *Storage) UpdateTarget(t models.TradingTarget) error {
	result, err := s.db.Exec(`
		UPDATE trading_targets
		SET active = ?, buy_threshold = ?, sell_threshold = ?, stop_loss_percentage = ?,
		    base_ticker = ?, inverse = ?, trailing_stop_percentage = ?,
		    trailing_stop_enabled = ?, trailing_window_minutes = ?, broker_id = ?,
		    profit_atr = ?, stop_atr = ?, max_holding = ?, min_threshold = ?,
		    training_period_years = ?, tuning_trials = ?
		WHERE id = ?
	`, boolToInt(t.Active), t.BuyThreshold, t.SellThreshold, t.StopLossPercentage,
		t.BaseTicker, boolToInt(t.Inverse), t.TrailingStopPercentage,
		boolToInt(t.TrailingStopEnabled), t.TrailingWindowMinutes, t.BrokerID,
		t.ProfitATR, t.StopATR, t.MaxHolding, t.MinThreshold,
		t.TrainingPeriodYears, t.TuningTrials, t.ID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// FindActiveTargets возвращает все цели с active=true
func (s *Storage) FindActiveTargets() ([]models.TradingTarget, error) {
	rows, err := s.db.Query(`SELECT `+targetColumns+` FROM trading_targets WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []models.TradingTarget
	for rows.Next() {
		t, err := scanTarget(rows.Scan)
		if err != nil {
			continue
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// GetTargets возвращает все цели пользователя
func (s *Storage) GetTargets(userID int64) ([]models.TradingTarget, error) {
	rows, err := s.db.Query(`SELECT `+targetColumns+` FROM trading_targets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []models.TradingTarget
	for rows.Next() {
		t, err := scanTarget(rows.Scan)
		if err != nil {
			continue
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// GetTarget возвращает цель по (user, ticker)
func (s *Storage) GetTarget(userID int64, ticker string) (models.TradingTarget, error) {
	row := s.db.QueryRow(`SELECT `+targetColumns+` FROM trading_targets WHERE user_id = ? AND ticker = ?`,
		userID, ticker)

	t, err := scanTarget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}

	return t, err
}

// UpdateTargetActive включает/выключает автоторговлю по цели
func (s *Storage) UpdateTargetActive(targetID int64, active bool) error {
	_, err := s.db.Exec(`UPDATE trading_targets SET active = ? WHERE id = ?`, boolToInt(active), targetID)
	return err
}

// UpdateHoldingQuantity перезаписывает локальный счетчик позиции (брокер - источник правды)
func (s *Storage) UpdateHoldingQuantity(targetID int64, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}

	_, err := s.db.Exec(`UPDATE trading_targets SET holding_quantity = ? WHERE id = ?`, quantity, targetID)

	return err
}

// AdjustHoldingQuantity атомарно сдвигает счетчик позиции, не опускаясь ниже нуля
func (s *Storage) AdjustHoldingQuantity(targetID int64, delta int) error {
	_, err := s.db.Exec(`
		UPDATE trading_targets
		SET holding_quantity = MAX(0, holding_quantity + ?)
		WHERE id = ?
	`, delta, targetID)

	return err
}

// DeleteTarget удаляет цель пользователя
func (s *Storage) DeleteTarget(userID int64, ticker string) error {
	result, err := s.db.Exec(`DELETE FROM trading_targets WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// === Trade logs ===

// InsertTradeLog добавляет запись в журнал ордеров
func (s *Storage) InsertTradeLog(log models.TradeLog) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO trade_logs (user_id, ticker, action, price, order_id, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, log.UserID, log.Ticker, string(log.Action), log.Price, log.OrderID,
		string(log.Status), log.Timestamp.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade log: %w", err)
	}

	id, _ := result.LastInsertId()

	return id, nil
}

// TransitionTradeLog переводит запись из статуса from в to.
// Guard по текущему статусу делает переходы только-вперед и идемпотентными:
// повторный вызов по уже переведенной записи вернет false без изменений.
func (s *Storage) TransitionTradeLog(logID int64, from, to models.OrderStatus) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE trade_logs SET status = ? WHERE id = ? AND status = ?
	`, string(to), logID, string(from))
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()

	return rows > 0, nil
}

// FindPendingBefore возвращает PENDING записи старше threshold
func (s *Storage) FindPendingBefore(threshold time.Time) ([]models.TradeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, ticker, action, price, COALESCE(order_id, ''), status, timestamp
		FROM trade_logs
		WHERE status = 'PENDING' AND timestamp < ?
		ORDER BY timestamp
	`, threshold.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeLogs(rows)
}

// HasPendingSell проверяет, есть ли незакрытый SELL по (user, ticker)
func (s *Storage) HasPendingSell(userID int64, ticker string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM trade_logs
		WHERE user_id = ? AND ticker = ? AND action = 'SELL' AND status = 'PENDING'
	`, userID, ticker).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// CloseFilledBuys переводит все FILLED BUY записи по (user, ticker) в CLOSED.
// Вызывается когда SELL по той же паре подтвержден как исполненный.
func (s *Storage) CloseFilledBuys(userID int64, ticker string) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE trade_logs SET status = 'CLOSED'
		WHERE user_id = ? AND ticker = ? AND action = 'BUY' AND status = 'FILLED'
	`, userID, ticker)
	if err != nil {
		return 0, err
	}

	rows, _ := result.RowsAffected()

	return rows, nil
}

// PositionOpenedAt возвращает время самой ранней FILLED BUY записи -
// момент открытия текущей позиции
func (s *Storage) PositionOpenedAt(userID int64, ticker string) (time.Time, bool, error) {
	var ts time.Time
	err := s.db.QueryRow(`
		SELECT timestamp FROM trade_logs
		WHERE user_id = ? AND ticker = ? AND action = 'BUY' AND status = 'FILLED'
		ORDER BY timestamp
		LIMIT 1
	`, userID, ticker).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return ts, true, nil
}

// FindRecentTradeLogs возвращает последние записи пользователя
func (s *Storage) FindRecentTradeLogs(userID int64, limit int) ([]models.TradeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, ticker, action, price, COALESCE(order_id, ''), status, timestamp
		FROM trade_logs
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeLogs(rows)
}

// FindTradeLogsAsc возвращает все записи пользователя от старых к новым
// (для расчета прибыли)
func (s *Storage) FindTradeLogsAsc(userID int64) ([]models.TradeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, ticker, action, price, COALESCE(order_id, ''), status, timestamp
		FROM trade_logs
		WHERE user_id = ?
		ORDER BY timestamp
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTradeLogs(rows)
}

func scanTradeLogs(rows *sql.Rows) ([]models.TradeLog, error) {
	var logs []models.TradeLog
	for rows.Next() {
		var log models.TradeLog
		var action, status string

		if err := rows.Scan(&log.ID, &log.UserID, &log.Ticker, &action,
			&log.Price, &log.OrderID, &status, &log.Timestamp); err != nil {
			continue
		}

		log.Action = models.OrderType(action)
		log.Status = models.OrderStatus(status)
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// === Training history ===

// InsertTrainingHistory добавляет запись об обучении.
// Нарушение UNIQUE(user, ticker, date) означает повторный запуск за день.
func (s *Storage) InsertTrainingHistory(h models.TrainingHistory) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO training_history (user_id, ticker, train_date, job_id, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, h.UserID, h.Ticker, h.TrainDate, h.JobID, string(h.Status), h.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to insert training history: %w", err)
	}

	id, _ := result.LastInsertId()

	return id, nil
}

// UpdateTrainingStatus обновляет статус записи обучения
func (s *Storage) UpdateTrainingStatus(id int64, status models.TrainingStatus, errorMessage string) error {
	_, err := s.db.Exec(`
		UPDATE training_history SET status = ?, error_message = ? WHERE id = ?
	`, string(status), errorMessage, id)

	return err
}

// UpdateTrainingJobID сохраняет job_id, выданный AI сервисом
func (s *Storage) UpdateTrainingJobID(id int64, jobID string) error {
	_, err := s.db.Exec(`UPDATE training_history SET job_id = ? WHERE id = ?`, jobID, id)
	return err
}

// FindRunningTraining возвращает все записи в статусах PENDING/TRAINING.
// userID = 0 означает по всем пользователям.
func (s *Storage) FindRunningTraining(userID int64) ([]models.TrainingHistory, error) {
	query := `
		SELECT id, user_id, ticker, train_date, COALESCE(job_id, ''), status, COALESCE(error_message, ''), created_at
		FROM training_history
		WHERE status IN ('PENDING', 'TRAINING')`
	args := []any{}

	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrainingHistory(rows)
}

// LatestTraining возвращает последнюю запись обучения по (user, ticker)
func (s *Storage) LatestTraining(userID int64, ticker string) (*models.TrainingHistory, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, ticker, train_date, COALESCE(job_id, ''), status, COALESCE(error_message, ''), created_at
		FROM training_history
		WHERE user_id = ? AND ticker = ?
		ORDER BY id DESC
		LIMIT 1
	`, userID, ticker)

	var h models.TrainingHistory
	var status string

	err := row.Scan(&h.ID, &h.UserID, &h.Ticker, &h.TrainDate, &h.JobID, &status, &h.ErrorMessage, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	h.Status = models.TrainingStatus(status)

	return &h, nil
}

// DeleteTrainingHistory удаляет все записи обучения по (user, ticker)
func (s *Storage) DeleteTrainingHistory(userID int64, ticker string) error {
	_, err := s.db.Exec(`DELETE FROM training_history WHERE user_id = ? AND ticker = ?`, userID, ticker)
	return err
}

// DeleteTrainingHistoryByID удаляет одну запись обучения
func (s *Storage) DeleteTrainingHistoryByID(id int64) error {
	_, err := s.db.Exec(`DELETE FROM training_history WHERE id = ?`, id)
	return err
}

func scanTrainingHistory(rows *sql.Rows) ([]models.TrainingHistory, error) {
	var list []models.TrainingHistory
	for rows.Next() {
		var h models.TrainingHistory
		var status string

		if err := rows.Scan(&h.ID, &h.UserID, &h.Ticker, &h.TrainDate, &h.JobID,
			&status, &h.ErrorMessage, &h.CreatedAt); err != nil {
			continue
		}

		h.Status = models.TrainingStatus(status)
		list = append(list, h)
	}

	return list, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
