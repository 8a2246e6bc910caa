package api

import (
	"net/http"
	"strconv"

	authmw "autotrader/internal/api/middleware"
)

// HandleGetTradeLogs возвращает последние записи журнала ордеров
func (h *Handler) HandleGetTradeLogs(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.tradelogSvc.RecentLogs(userID, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to load trade logs")
		return
	}

	h.respondSuccess(w, "", logs)
}

// HandleGetProfit возвращает реализованную прибыль по завершенным циклам
func (h *Handler) HandleGetProfit(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	stats, err := h.tradelogSvc.CalculateProfit(userID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to calculate profit")
		return
	}

	h.respondSuccess(w, "", stats)
}
