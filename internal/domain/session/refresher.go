package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultRefreshThreshold = 30 * time.Minute

// NavigatorFunc адаптер функции к Navigator
type NavigatorFunc func(reason string)

func (f NavigatorFunc) NavigateToLogin(reason string) {
	f(reason)
}

// Refresher следит за валидностью OAuth-сессии.
// Одновременно выполняется не больше одного обновления токена.
type Refresher struct {
	mu          sync.Mutex
	invalidated atomic.Bool

	store     TokenStore
	conn      Connectivity
	refresher TokenRefresher
	navigator Navigator
	clearers  []Clearer
	threshold time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func NewRefresher(
	store TokenStore,
	conn Connectivity,
	refresher TokenRefresher,
	navigator Navigator,
	log *slog.Logger,
	clearers ...Clearer,
) *Refresher {
	return &Refresher{
		store:     store,
		conn:      conn,
		refresher: refresher,
		navigator: navigator,
		clearers:  clearers,
		threshold: DefaultRefreshThreshold,
		now:       time.Now,
		log:       log.With(slog.String("component", "session_refresher")),
	}
}

// EnsureValidSession true, если сессией можно пользоваться.
// Офлайн всегда true: работа продолжается без сети.
func (r *Refresher) EnsureValidSession(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.conn.IsConnected(ctx) {
		return true
	}

	tokens, err := r.store.Load(ctx)
	if err != nil {
		r.log.Error("failed to load tokens", slog.Any("error", err))
		return false
	}

	if tokens == nil || tokens.AccessToken == "" {
		return r.invalidate(ctx, "no stored token")
	}

	left, known := r.timeLeft(tokens)
	if known && left > r.threshold {
		r.invalidated.Store(false)
		return true
	}

	if tokens.RefreshToken == "" {
		if known && left > 0 {
			return true
		}
		return r.invalidate(ctx, "token expired and no refresh token")
	}

	r.log.Debug("refreshing session", slog.Duration("left", left), slog.Bool("expiry_known", known))

	fresh, err := r.refresher.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		r.log.Warn("token refresh failed", slog.Any("error", err))
		if known && left > 0 {
			return true
		}
		return r.invalidate(ctx, "token refresh failed")
	}

	if fresh.IssuedAt.IsZero() {
		fresh.IssuedAt = r.now()
	}
	if err := r.store.Save(ctx, fresh.Merge(tokens)); err != nil {
		r.log.Error("failed to save refreshed tokens", slog.Any("error", err))
	}

	r.invalidated.Store(false)
	r.log.Info("session refreshed")
	return true
}

// InvalidateSession очищает токены и бизнес-контекст и отправляет на логин.
// Повторные вызовы до следующей валидной сессии ничего не делают. Всегда false.
func (r *Refresher) InvalidateSession(ctx context.Context, reason string) bool {
	return r.invalidate(ctx, reason)
}

// Reset снимает флаг инвалидации после нового входа
func (r *Refresher) Reset() {
	r.invalidated.Store(false)
}

// State вычисляет состояние сессии без сетевых вызовов
func (r *Refresher) State(ctx context.Context) Validity {
	tokens, err := r.store.Load(ctx)
	if err != nil || tokens == nil || tokens.AccessToken == "" {
		return Invalid
	}
	left, known := r.timeLeft(tokens)
	switch {
	case !known:
		return NearExpiry
	case left <= 0:
		return Expired
	case left <= r.threshold:
		return NearExpiry
	default:
		return Valid
	}
}

func (r *Refresher) invalidate(ctx context.Context, reason string) bool {
	if !r.invalidated.CompareAndSwap(false, true) {
		return false
	}

	r.log.Warn("invalidating session", slog.String("reason", reason))

	if err := r.store.Clear(ctx); err != nil {
		r.log.Error("failed to clear token store", slog.Any("error", err))
	}
	for _, c := range r.clearers {
		if err := c.Clear(ctx); err != nil {
			r.log.Error("failed to clear session state", slog.Any("error", err))
		}
	}
	if r.navigator != nil {
		r.navigator.NavigateToLogin(reason)
	}
	return false
}

func (r *Refresher) timeLeft(tokens *Tokens) (time.Duration, bool) {
	exp, ok := tokens.ExpiresAt()
	if !ok {
		return 0, false
	}
	return exp.Sub(r.now()), true
}
