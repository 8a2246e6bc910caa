package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	authmw "autotrader/internal/api/middleware"
	"autotrader/internal/models"
)

type brokerInfoResponse struct {
	ID            int64  `json:"id"`
	BrokerType    string `json:"broker_type"`
	AccountNumber string `json:"account_number"`
	Active        bool   `json:"active"`
}

// HandleGetBrokers возвращает брокеров пользователя.
// Ключи и секреты наружу не отдаются.
func (h *Handler) HandleGetBrokers(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	user, err := h.storage.GetUserByID(userID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	}

	resp := make([]brokerInfoResponse, 0, len(user.BrokerInfos))
	for _, info := range user.BrokerInfos {
		resp = append(resp, brokerInfoResponse{
			ID:            info.ID,
			BrokerType:    string(info.BrokerType),
			AccountNumber: info.AccountNumber,
			Active:        info.ID == user.ActiveBrokerID,
		})
	}

	h.respondSuccess(w, "", resp)
}

type addBrokerRequest struct {
	BrokerType    string `json:"broker_type"`
	AppKey        string `json:"app_key"`
	AppSecret     string `json:"app_secret"`
	AccountNumber string `json:"account_number"`
}

// HandleAddBroker добавляет учетные данные брокера
func (h *Handler) HandleAddBroker(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	var req addBrokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	brokerType := models.BrokerType(req.BrokerType)
	if brokerType != models.BrokerKIS && brokerType != models.BrokerLS {
		h.respondError(w, http.StatusBadRequest, "Broker type must be KIS or LS")
		return
	}

	info := models.BrokerInfo{
		UserID:        userID,
		BrokerType:    brokerType,
		AppKey:        req.AppKey,
		AppSecret:     req.AppSecret,
		AccountNumber: req.AccountNumber,
	}

	if !info.HasValidCredentials() {
		h.respondError(w, http.StatusBadRequest, "app_key, app_secret and account_number are required")
		return
	}

	id, err := h.storage.AddBrokerInfo(info)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to add broker")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// HandleDeleteBroker удаляет учетные данные брокера
func (h *Handler) HandleDeleteBroker(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	brokerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid broker id")
		return
	}

	if err := h.storage.DeleteBrokerInfo(userID, brokerID); err != nil {
		h.respondError(w, http.StatusNotFound, "Broker not found")
		return
	}

	h.respondSuccess(w, "Broker deleted", nil)
}

// HandleSetActiveBroker выбирает активного брокера пользователя
func (h *Handler) HandleSetActiveBroker(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	brokerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid broker id")
		return
	}

	user, err := h.storage.GetUserByID(userID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	}

	found := false
	for _, info := range user.BrokerInfos {
		if info.ID == brokerID {
			found = true
			break
		}
	}

	if !found {
		h.respondError(w, http.StatusNotFound, "Broker not found")
		return
	}

	if err := h.storage.UpdateUserSettings(userID, user.TradingStartTime, user.TradingEndTime,
		user.TelegramChatID, brokerID); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to set active broker")
		return
	}

	h.respondSuccess(w, "Active broker updated", nil)
}

// HandleGetAsset возвращает снимок счета у активного брокера
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	user, err := h.storage.GetUserByID(userID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	}

	asset := h.broker.GetAccountAsset(r.Context(), user)

	h.respondSuccess(w, "", asset)
}
