package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/auth"
)

type Auth struct {
	tokens auth.Servicer
	log    *slog.Logger
}

func New(tokens auth.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		tokens: tokens,
		log:    log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const UserIDKey contextKey = "userID"

const bearerPrefix = "Bearer "

// Middleware проверяет access токен из заголовка Authorization
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			a.log.Debug("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx, "missing bearer token")
			return
		}

		userID, err := a.tokens.Validate(ctx.Context(), strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			a.log.Debug("token rejected", slog.String("error", err.Error()))
			a.unauthorized(ctx, "invalid or expired token")
			return
		}

		next(huma.WithContext(ctx, context.WithValue(ctx.Context(), UserIDKey, userID)))
	}
}

func (a *Auth) unauthorized(ctx huma.Context, message string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetHeader("WWW-Authenticate", `Bearer realm="possync"`)
	ctx.SetStatus(http.StatusUnauthorized)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error":   "Unauthorized",
		"message": message,
	})
	if err != nil {
		a.log.Error("json encode", slog.String("error", err.Error()))
	}
}

func GetUserID(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}
