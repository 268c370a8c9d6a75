package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

var errTokenNotFound = errors.New("refresh token not found or expired")

// TokenRepository хранит sha256 хэши refresh-токенов
type TokenRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewTokenRepository(pool *pgxpool.Pool, log *slog.Logger) *TokenRepository {
	return &TokenRepository{
		pool: pool,
		log:  log.With("component", "token_repository"),
	}
}

func (r *TokenRepository) Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
         VALUES ($1, decode($2, 'hex'), $3)`,
		userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume удаляет токен одним запросом, повторное использование невозможно
func (r *TokenRepository) Consume(ctx context.Context, tokenHash string) (int, error) {
	var userID int
	err := r.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens
         WHERE token_hash = decode($1, 'hex') AND expires_at > NOW()
         RETURNING user_id`,
		tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errTokenNotFound
		}
		return 0, fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

// PurgeExpired удаляет просроченные токены
func (r *TokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
