package user

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/auth"
	"possync/internal/domain/user"
)

const (
	grantPassword = "password"
	grantRefresh  = "refresh_token"
)

type Handler struct {
	service    user.Servicer
	tokens     auth.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service user.Servicer, tokens auth.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		tokens:     tokens,
		log:        log.With(slog.String("component", "user_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.tokenOp(), h.token)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	userID, err := h.service.Register(ctx, input.Body.Username, input.Body.Password)
	switch {
	case errors.Is(err, user.ErrInvalidInput):
		return nil, huma.Error400BadRequest(err.Error())
	case errors.Is(err, user.ErrExists):
		return nil, huma.Error409Conflict("user already exists")
	case err != nil:
		h.log.Error("register failed", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("register failed")
	}

	h.log.Info("user registered", slog.Int("user_id", userID))
	return &registerOutput{
		Body: RegisterResponse{ID: userID, Status: "Ok"},
	}, nil
}

func (h *Handler) token(ctx context.Context, input *tokenInput) (*tokenOutput, error) {
	form, err := url.ParseQuery(string(input.RawBody))
	if err != nil {
		return nil, invalidRequest("malformed form body")
	}
	if form.Get("client_id") == "" {
		return nil, invalidClient()
	}

	var (
		pair   auth.TokenPair
		userID int
	)
	switch grant := form.Get("grant_type"); grant {
	case grantPassword:
		u, err := h.service.Authenticate(ctx, form.Get("username"), form.Get("password"))
		if err != nil {
			if errors.Is(err, user.ErrInvalidAuth) {
				return nil, invalidGrant("invalid username or password")
			}
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		userID = u.ID
		pair, err = h.tokens.Issue(ctx, u.ID, u.Login)
		if err != nil {
			return nil, fmt.Errorf("issue tokens: %w", err)
		}

	case grantRefresh:
		pair, err = h.tokens.Refresh(ctx, form.Get("refresh_token"))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidRefreshToken) {
				return nil, invalidGrant("refresh token is invalid or expired")
			}
			return nil, fmt.Errorf("refresh tokens: %w", err)
		}
		if userID, err = h.tokens.Validate(ctx, pair.AccessToken); err != nil {
			return nil, fmt.Errorf("validate issued token: %w", err)
		}

	default:
		return nil, unsupportedGrant(grant)
	}

	h.log.Debug("tokens issued", slog.Int("user_id", userID), slog.String("grant_type", form.Get("grant_type")))
	return &tokenOutput{
		CacheControl: "no-store",
		Body:         newTokenResponse(pair, strconv.Itoa(userID)),
	}, nil
}
