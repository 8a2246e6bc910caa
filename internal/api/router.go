package api

import (
	"net/http"

	"github.com/gorilla/mux"

	authmw "autotrader/internal/api/middleware"
	"autotrader/internal/middleware"
)

// SetupRouter настраивает роутинг для API
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Применяем CORS middleware ко всем маршрутам
	r.Use(middleware.CORS)

	// Публичные маршруты (не требуют аутентификации)
	r.HandleFunc("/api/auth/login", h.HandleLogin).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/register", h.HandleRegister).Methods("POST", "OPTIONS")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// Live события для фронтенда (токен в query)
	r.HandleFunc("/ws/events", h.HandleWebSocket)

	// Защищенные маршруты (требуют аутентификации)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authmw.AuthMiddleware(h.authService))

	// Profile / settings
	api.HandleFunc("/me", h.HandleGetMe).Methods("GET")
	api.HandleFunc("/me/settings", h.HandleUpdateSettings).Methods("PUT")

	// Brokers
	api.HandleFunc("/brokers", h.HandleGetBrokers).Methods("GET")
	api.HandleFunc("/brokers", h.HandleAddBroker).Methods("POST")
	api.HandleFunc("/brokers/{id:[0-9]+}", h.HandleDeleteBroker).Methods("DELETE")
	api.HandleFunc("/brokers/{id:[0-9]+}/active", h.HandleSetActiveBroker).Methods("PUT")

	// Trading targets
	api.HandleFunc("/targets", h.HandleGetTargets).Methods("GET")
	api.HandleFunc("/targets", h.HandleCreateTarget).Methods("POST")
	api.HandleFunc("/targets/{ticker}", h.HandleUpdateTarget).Methods("PUT")
	api.HandleFunc("/targets/{ticker}", h.HandleDeleteTarget).Methods("DELETE")
	api.HandleFunc("/targets/{ticker}/active", h.HandleToggleTarget).Methods("PUT")

	// Trade logs / profit
	api.HandleFunc("/trade-logs", h.HandleGetTradeLogs).Methods("GET")
	api.HandleFunc("/trade-logs/profit", h.HandleGetProfit).Methods("GET")

	// Account asset
	api.HandleFunc("/asset", h.HandleGetAsset).Methods("GET")

	// Model training
	api.HandleFunc("/training/{ticker}", h.HandleStartTraining).Methods("POST")
	api.HandleFunc("/training/{ticker}/status", h.HandleTrainingStatus).Methods("GET")
	api.HandleFunc("/training/{ticker}/logs", h.HandleTrainingLog).Methods("GET")
	api.HandleFunc("/training/{ticker}", h.HandleDeleteModel).Methods("DELETE")

	// Ручной запуск циклов
	api.HandleFunc("/trading/cycle", h.HandleRunCycle).Methods("POST")
	api.HandleFunc("/trading/reconcile", h.HandleRunReconcile).Methods("POST")

	return r
}

// HandleHealth возвращает статус здоровья сервиса
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondSuccess(w, "OK", map[string]string{
		"status": "healthy",
	})
}
