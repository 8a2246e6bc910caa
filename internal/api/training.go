package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	authmw "autotrader/internal/api/middleware"
	"autotrader/internal/training"
)

// HandleStartTraining запускает обучение модели по тикеру
func (h *Handler) HandleStartTraining(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	history, err := h.trainingSvc.StartTraining(r.Context(), userID, ticker)
	if err != nil {
		if errors.Is(err, training.ErrTrainingInProgress) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}

		h.respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	h.respondJSON(w, http.StatusAccepted, history)
}

// HandleTrainingStatus опрашивает статус обучения
func (h *Handler) HandleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	history, err := h.trainingSvc.RefreshStatus(r.Context(), userID, ticker)
	if err != nil {
		if errors.Is(err, training.ErrNoTraining) {
			h.respondError(w, http.StatusNotFound, "No training found")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Failed to refresh status")

		return
	}

	h.respondSuccess(w, "", history)
}

// HandleTrainingLog возвращает лог обучения
func (h *Handler) HandleTrainingLog(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	log, err := h.trainingSvc.GetLog(r.Context(), userID, ticker)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, "Failed to fetch training log")
		return
	}

	h.respondSuccess(w, "", map[string]string{"log": log})
}

// HandleDeleteModel удаляет модель и историю обучения
func (h *Handler) HandleDeleteModel(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	if err := h.trainingSvc.DeleteModel(r.Context(), userID, ticker); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondSuccess(w, "Model deleted", nil)
}
