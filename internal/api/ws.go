package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"autotrader/internal/trading"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Фронтенд может жить на другом origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub раздает события торгового цикла подключенным браузерам.
// Каждый клиент видит только события своего пользователя.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]int64
	logger  *slog.Logger
}

// NewHub создает websocket хаб
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]int64),
		logger:  logger,
	}
}

// Broadcast отправляет событие всем подключениям его пользователя.
// Мертвые соединения отваливаются по ошибке записи.
func (hub *Hub) Broadcast(event trading.Event) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn, userID := range hub.clients {
		if userID != event.UserID {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}

// add регистрирует подключение
func (hub *Hub) add(conn *websocket.Conn, userID int64) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.clients[conn] = userID
}

// remove убирает подключение
func (hub *Hub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(hub.clients, conn)
}

// HandleWebSocket апгрейдит соединение и держит его до закрытия.
// Браузерный WebSocket не умеет заголовки, токен приходит в query.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	h.hub.add(conn, claims.UserID)

	h.logger.Info("🔌 WebSocket client connected",
		slog.Int64("user_id", claims.UserID))

	defer func() {
		h.hub.remove(conn)
		conn.Close()
	}()

	// Читаем только ради обнаружения закрытия, клиент ничего не шлет
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
