package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/manager"
	"possync/internal/app/client/push"
	"possync/internal/domain/sync"
)

type forceKey struct{}

// WithForce заставляет pull-репозитории игнорировать TTL
func WithForce(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceKey{}, true)
}

func forced(ctx context.Context) bool {
	v, _ := ctx.Value(forceKey{}).(bool)
	return v
}

// fallbackContexts контекст для гейтов: до открытия POS-сессии
// используются сайт и компания из конфигурации
type fallbackContexts struct {
	provider   *sync.ContextProvider
	instanceID string
	companyID  string
	policy     sync.DatePolicy
	now        func() time.Time
}

func (f *fallbackContexts) Build(ctx context.Context) (sync.Context, error) {
	sc, err := f.provider.Build(ctx)
	if err != nil || sc.Available() {
		return sc, err
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return sync.Context{
		InstanceID: f.instanceID,
		CompanyID:  f.companyID,
		FromDate:   f.policy(now()),
	}, nil
}

// SyncReport итог ручной синхронизации
type SyncReport struct {
	Pull manager.State
	Push push.Report
}

// FullSync загружает справочники и счета
func (a *App) FullSync(ctx context.Context) manager.State {
	a.loading.Start()
	defer a.loading.Stop()
	return a.syncManager.FullSync(ctx)
}

// PushQueue отправляет документы, созданные офлайн
func (a *App) PushQueue(ctx context.Context) (push.Report, error) {
	if !a.httpClient.IsConnected(ctx) {
		return push.Report{}, fmt.Errorf("отправка отложена: %s", manager.MsgOffline)
	}
	if !a.refresher.EnsureValidSession(ctx) {
		return push.Report{}, fmt.Errorf("отправка отложена: %s", "invalid session")
	}

	a.loading.Start()
	defer a.loading.Stop()
	return a.pushQueue.RunPushQueue(ctx)
}

// Sync сначала отправляет очередь, затем загружает свежие данные
func (a *App) Sync(ctx context.Context, pushOnly, pullOnly bool) (SyncReport, error) {
	var report SyncReport
	var errs []error

	if !pullOnly {
		r, err := a.PushQueue(ctx)
		report.Push = r
		if err != nil {
			errs = append(errs, err)
		}
	}
	if !pushOnly {
		report.Pull = a.FullSync(ctx)
		if report.Pull.Phase == manager.PhaseError {
			errs = append(errs, errors.New(report.Pull.Message))
		}
	}
	return report, errors.Join(errs...)
}

// SyncStatus состояния синхронизации по типам документов
func (a *App) SyncStatus(ctx context.Context) ([]sync.State, error) {
	sc, err := a.gateContexts.Build(ctx)
	if err != nil {
		return nil, err
	}
	if !sc.Available() {
		return nil, sync.ErrContextUnavailable
	}
	if err := a.pushQueue.RefreshCounters(ctx); err != nil && !errors.Is(err, sync.ErrContextUnavailable) {
		a.log.Warn("failed to refresh push counters", slog.Any("error", err))
	}
	return a.state.List(ctx, sc.Scope())
}

// SubscribeSync изменения состояния SyncManager
func (a *App) SubscribeSync() (<-chan manager.State, func()) {
	return a.syncManager.Subscribe()
}

// EnsureProfiles гейт выбора профиля
func (a *App) EnsureProfiles(ctx context.Context) sync.GateResult {
	return a.profileGate.EnsureReady(ctx, "")
}

// EnsureOpening гейт открытия кассы
func (a *App) EnsureOpening(ctx context.Context, profileID string) sync.GateResult {
	return a.openingGate.EnsureReady(ctx, profileID)
}

func (a *App) startSync(ctx context.Context) {
	interval := a.config.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	a.log.Info("Запуск автоматической синхронизации", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("Синхронизация остановлена")
			return
		case <-ticker.C:
			a.syncOnce(ctx)
		}
	}
}

func (a *App) syncOnce(ctx context.Context) {
	if _, err := a.Sync(ctx, false, false); err != nil {
		a.log.Error("Ошибка синхронизации", slog.Any("error", err))
	}
}
