package auth

import (
	"context"
	"time"
)

// Repository хранит хэши refresh-токенов
type Repository interface {
	Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error
	// Consume удаляет действующий токен и возвращает его владельца
	Consume(ctx context.Context, tokenHash string) (int, error)
}
