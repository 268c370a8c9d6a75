package session

import "context"

// TokenStore защищенное хранилище токенов, привязанное к сайту
type TokenStore interface {
	// Save сливает tokens с ранее сохраненными
	Save(ctx context.Context, tokens Tokens) error
	// Load возвращает nil без ошибки, если токенов нет
	Load(ctx context.Context) (*Tokens, error)
	Clear(ctx context.Context) error
}

type Connectivity interface {
	IsConnected(ctx context.Context) bool
}

// TokenRefresher обмен refresh-токена на новую пару
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

type Navigator interface {
	NavigateToLogin(reason string)
}

// Clearer очищает состояние, привязанное к сессии (бизнес-контекст и т.п.)
type Clearer interface {
	Clear(ctx context.Context) error
}

// Ensurer то, чем пользуются оркестратор и heartbeat
type Ensurer interface {
	EnsureValidSession(ctx context.Context) bool
}
