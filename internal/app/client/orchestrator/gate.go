package orchestrator

import (
	"context"

	"golang.org/x/exp/slog"

	"possync/internal/domain/sync"
)

const MsgNoData = "No data resolved after sync"

// CheckFunc проверяет наличие данных в локальном кэше, без сети
type CheckFunc func(ctx context.Context, key string) (bool, error)

// BootstrapFunc загружает недостающие данные
type BootstrapFunc func(ctx context.Context, key string) []sync.JobResult

// Gate блокирует действие, пока в кэше нет нужных данных
type Gate struct {
	name      string
	check     CheckFunc
	bootstrap BootstrapFunc
	log       *slog.Logger
}

func NewGate(name string, check CheckFunc, bootstrap BootstrapFunc, log *slog.Logger) *Gate {
	return &Gate{
		name:      name,
		check:     check,
		bootstrap: bootstrap,
		log:       log.With(slog.String("gate", name)),
	}
}

// EnsureReady сначала смотрит в кэш; при промахе запускает bootstrap и проверяет снова
func (g *Gate) EnsureReady(ctx context.Context, key string) sync.GateResult {
	if g.resolved(ctx, key) {
		return sync.Ready()
	}

	results := g.bootstrap(ctx, key)

	if r, ok := sync.FirstWith(results, sync.JobFailed); ok {
		return sync.Failed(r.Message)
	}
	if r, ok := sync.FirstWith(results, sync.JobPending); ok {
		return sync.Pending(r.Message)
	}

	if g.resolved(ctx, key) {
		return sync.Ready()
	}
	return sync.Failed(MsgNoData)
}

// resolved ошибка локальной проверки считается промахом
func (g *Gate) resolved(ctx context.Context, key string) bool {
	ok, err := g.check(ctx, key)
	if err != nil {
		g.log.Warn("local check failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// ParentCounter число дочерних записей родителя в кэше
type ParentCounter interface {
	CountByParent(ctx context.Context, scope sync.Scope, parent string) (int, error)
}

// Counter число записей в кэше
type Counter interface {
	Count(ctx context.Context, scope sync.Scope) (int, error)
}

// NewOpeningGate открытие кассы: нужны способы оплаты профиля
func NewOpeningGate(o *Orchestrator, contexts ContextSource, methods ParentCounter, log *slog.Logger) *Gate {
	check := func(ctx context.Context, profileID string) (bool, error) {
		sc, err := contexts.Build(ctx)
		if err != nil || !sc.Available() {
			return false, err
		}
		n, err := methods.CountByParent(ctx, sc.Scope(), profileID)
		return n > 0, err
	}
	return NewGate("opening", check, o.BootstrapPaymentMethods, log)
}

// NewProfileGate выбор профиля: нужен список профилей
func NewProfileGate(o *Orchestrator, contexts ContextSource, profiles Counter, log *slog.Logger) *Gate {
	check := func(ctx context.Context, _ string) (bool, error) {
		sc, err := contexts.Build(ctx)
		if err != nil || !sc.Available() {
			return false, err
		}
		n, err := profiles.Count(ctx, sc.Scope())
		return n > 0, err
	}
	bootstrap := func(ctx context.Context, _ string) []sync.JobResult {
		return o.BootstrapProfiles(ctx)
	}
	return NewGate("profile", check, bootstrap, log)
}
