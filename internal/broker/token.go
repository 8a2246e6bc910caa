package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"autotrader/internal/cache"
)

// kisTokenTTL - KIS выдает токен на 24ч, обновляем заранее
const kisTokenTTL = 23 * time.Hour

// TokenManager кэширует access токены KIS по паре (appKey, appSecret).
// KIS ограничивает частоту выдачи токенов, поэтому повторное
// использование обязательно.
type TokenManager struct {
	client *resty.Client
	tokens *cache.Cache[string]
	logger *slog.Logger
	mu     sync.Mutex
}

// NewTokenManager создает менеджер токенов поверх общего resty клиента
func NewTokenManager(client *resty.Client, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		client: client,
		tokens: cache.New[string](kisTokenTTL),
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetAccessToken возвращает действующий access токен, запрашивая новый
// только при отсутствии в кэше
func (m *TokenManager) GetAccessToken(ctx context.Context, appKey, appSecret string) (string, error) {
	if appKey == "" || appSecret == "" {
		return "", ErrInvalidCredentials
	}

	key := appKey + ":" + appSecret

	// Один запрос токена за раз: параллельные промахи кэша не должны
	// дергать oauth эндпоинт наперегонки
	m.mu.Lock()
	defer m.mu.Unlock()

	if token, ok := m.tokens.Get(key); ok {
		return token, nil
	}

	m.logger.Info("🔑 Fetching new access token", slog.String("app_key", maskKey(appKey)))

	var result tokenResponse

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     appKey,
			"appsecret":  appSecret,
		}).
		SetResult(&result).
		Post(tokenEndpoint)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	if resp.IsError() || result.AccessToken == "" {
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode(), resp.String())
	}

	ttl := kisTokenTTL
	if result.ExpiresIn > 60 {
		ttl = time.Duration(result.ExpiresIn-60) * time.Second
	}

	m.tokens.SetWithTTL(key, result.AccessToken, ttl)

	return result.AccessToken, nil
}

// maskKey обрезает ключ для логов
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}

	return key[:4] + "****" + key[len(key)-4:]
}
