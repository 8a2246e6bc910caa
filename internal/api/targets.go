package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	authmw "autotrader/internal/api/middleware"
	"autotrader/internal/models"
	"autotrader/internal/storage"
)

// tickerPattern - обычные US тикеры плюс классы акций (BRK.B)
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

type createTargetRequest struct {
	Ticker   string `json:"ticker"`
	BrokerID int64  `json:"broker_id"`
}

// HandleGetTargets возвращает цели пользователя
func (h *Handler) HandleGetTargets(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	targets, err := h.storage.GetTargets(userID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to load targets")
		return
	}

	h.respondSuccess(w, "", targets)
}

// HandleCreateTarget создает цель с дефолтными настройками.
// Тикер проверяется синхронно, до любых обращений к брокеру.
func (h *Handler) HandleCreateTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	var req createTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if !tickerPattern.MatchString(ticker) {
		h.respondError(w, http.StatusBadRequest, "Invalid ticker format")
		return
	}

	target := models.NewTradingTarget(userID, ticker, req.BrokerID)

	id, err := h.storage.CreateTarget(target)
	if err != nil {
		h.respondError(w, http.StatusConflict, "Target already exists")
		return
	}

	target.ID = id

	h.respondJSON(w, http.StatusCreated, target)
}

type updateTargetRequest struct {
	Active                 bool    `json:"active"`
	BuyThreshold           int     `json:"buy_threshold"`
	SellThreshold          int     `json:"sell_threshold"`
	StopLossPercentage     float64 `json:"stop_loss_percentage"`
	BaseTicker             string  `json:"base_ticker"`
	Inverse                bool    `json:"inverse"`
	TrailingStopPercentage float64 `json:"trailing_stop_percentage"`
	TrailingStopEnabled    bool    `json:"trailing_stop_enabled"`
	TrailingWindowMinutes  int     `json:"trailing_window_minutes"`
	BrokerID               int64   `json:"broker_id"`
	ProfitATR              float64 `json:"profit_atr"`
	StopATR                float64 `json:"stop_atr"`
	MaxHolding             int     `json:"max_holding"`
	MinThreshold           float64 `json:"min_threshold"`
	TrainingPeriodYears    int     `json:"training_period_years"`
	TuningTrials           int     `json:"tuning_trials"`
}

// HandleUpdateTarget обновляет настройки цели
func (h *Handler) HandleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	target, err := h.storage.GetTarget(userID, ticker)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Target not found")
		return
	}

	var req updateTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.StopLossPercentage <= 0 || req.TrailingStopPercentage <= 0 || req.TrailingWindowMinutes <= 0 {
		h.respondError(w, http.StatusBadRequest, "Risk parameters must be positive")
		return
	}

	baseTicker := strings.ToUpper(strings.TrimSpace(req.BaseTicker))
	if baseTicker != "" && !tickerPattern.MatchString(baseTicker) {
		h.respondError(w, http.StatusBadRequest, "Invalid base ticker format")
		return
	}

	target.Active = req.Active
	target.BuyThreshold = req.BuyThreshold
	target.SellThreshold = req.SellThreshold
	target.StopLossPercentage = req.StopLossPercentage
	target.BaseTicker = baseTicker
	target.Inverse = req.Inverse
	target.TrailingStopPercentage = req.TrailingStopPercentage
	target.TrailingStopEnabled = req.TrailingStopEnabled
	target.TrailingWindowMinutes = req.TrailingWindowMinutes
	target.BrokerID = req.BrokerID
	target.ProfitATR = req.ProfitATR
	target.StopATR = req.StopATR
	target.MaxHolding = req.MaxHolding
	target.MinThreshold = req.MinThreshold
	target.TrainingPeriodYears = req.TrainingPeriodYears
	target.TuningTrials = req.TuningTrials

	if err := h.storage.UpdateTarget(target); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to update target")
		return
	}

	h.respondSuccess(w, "Target updated", target)
}

type toggleRequest struct {
	Active bool `json:"active"`
}

// HandleToggleTarget включает/выключает автоторговлю по цели
func (h *Handler) HandleToggleTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	target, err := h.storage.GetTarget(userID, ticker)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "Target not found")
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.storage.UpdateTargetActive(target.ID, req.Active); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to toggle target")
		return
	}

	h.respondSuccess(w, "Target toggled", map[string]bool{"active": req.Active})
}

// HandleDeleteTarget удаляет цель
func (h *Handler) HandleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	if err := h.storage.DeleteTarget(userID, ticker); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Target not found")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Failed to delete target")

		return
	}

	h.respondSuccess(w, "Target deleted", nil)
}
