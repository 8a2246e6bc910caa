package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	authmw "autotrader/internal/api/middleware"
	"autotrader/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// HandleRegister регистрирует нового пользователя
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Password) < 8 {
		h.respondError(w, http.StatusBadRequest, "Username must be at least 3 chars, password at least 8")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user, err := h.storage.CreateUser(req.Username, hash)
	if err != nil {
		h.respondError(w, http.StatusConflict, "Username already taken")
		return
	}

	h.logger.Info("✅ User registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))

	token, err := h.authService.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.respondJSON(w, http.StatusCreated, authResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

// HandleLogin аутентифицирует пользователя
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.storage.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		h.respondError(w, http.StatusInternalServerError, "Internal error")

		return
	}

	if err := h.authService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.respondJSON(w, http.StatusOK, authResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

// HandleGetMe возвращает профиль текущего пользователя
func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	user, err := h.storage.GetUserByID(userID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "User not found")
		return
	}

	h.respondSuccess(w, "", map[string]any{
		"user_id":            user.ID,
		"username":           user.Username,
		"role":               user.Role,
		"active_broker_id":   user.ActiveBrokerID,
		"trading_start_time": user.TradingStartTime,
		"trading_end_time":   user.TradingEndTime,
		"telegram_chat_id":   user.TelegramChatID,
		"created_at":         user.CreatedAt.Format(time.RFC3339),
	})
}

type settingsRequest struct {
	TradingStartTime string `json:"trading_start_time"`
	TradingEndTime   string `json:"trading_end_time"`
	TelegramChatID   int64  `json:"telegram_chat_id"`
	ActiveBrokerID   int64  `json:"active_broker_id"`
}

// HandleUpdateSettings обновляет торговое окно и уведомления
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := authmw.GetUserID(r.Context())

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !validClock(req.TradingStartTime) || !validClock(req.TradingEndTime) {
		h.respondError(w, http.StatusBadRequest, "Trading times must be HH:MM or empty")
		return
	}

	if err := h.storage.UpdateUserSettings(userID, req.TradingStartTime, req.TradingEndTime,
		req.TelegramChatID, req.ActiveBrokerID); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	h.respondSuccess(w, "Settings updated", nil)
}

// validClock принимает "HH:MM" или пустую строку
func validClock(s string) bool {
	if s == "" {
		return true
	}

	if len(s) != 5 || s[2] != ':' {
		return false
	}

	_, err := time.Parse("15:04", s)

	return err == nil
}
