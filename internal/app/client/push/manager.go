package push

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/domain/sync"
)

// Task одно семейство документов в очереди отправки
type Task interface {
	DocType() sync.DocType
	Push(ctx context.Context, sc sync.Context) (int, error)
	Counts(ctx context.Context, scope sync.Scope) (pending, failed int, err error)
}

// ContextSource источник контекста синхронизации
type ContextSource interface {
	Build(ctx context.Context) (sync.Context, error)
}

// FamilyResult итог одного семейства
type FamilyResult struct {
	DocType sync.DocType
	Pushed  int
	Pending int
	Failed  int
	Err     error
}

// Report итог прогона очереди
type Report struct {
	Families []FamilyResult
}

// Changed true, если хотя бы один документ был отправлен
func (r Report) Changed() bool {
	for _, f := range r.Families {
		if f.Pushed > 0 {
			return true
		}
	}
	return false
}

func (r Report) FailedFamilies() []FamilyResult {
	var out []FamilyResult
	for _, f := range r.Families {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Manager прогоняет семейства строго в заданном порядке.
// Ошибка семейства не прерывает прогон: следующие семейства тоже отправляются.
type Manager struct {
	mu       gosync.Mutex
	tasks    []Task
	state    sync.StateRepository
	contexts ContextSource
	log      *slog.Logger
	now      func() time.Time
}

func NewManager(contexts ContextSource, state sync.StateRepository, log *slog.Logger, tasks ...Task) *Manager {
	return &Manager{
		tasks:    tasks,
		state:    state,
		contexts: contexts,
		log:      log.With(slog.String("component", "push")),
		now:      time.Now,
	}
}

// RunPushQueue отправляет все очереди. Ошибка агрегирует упавшие семейства.
func (m *Manager) RunPushQueue(ctx context.Context) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, err := m.contexts.Build(ctx)
	if err != nil {
		return Report{}, err
	}
	if !sc.Available() {
		m.log.Debug("sync context unavailable, push skipped")
		return Report{}, nil
	}

	var (
		report Report
		errs   []error
	)
	for _, task := range m.tasks {
		res := m.runTask(ctx, sc, task)
		report.Families = append(report.Families, res)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}

	return report, errors.Join(errs...)
}

// RefreshCounters пересчитывает счетчики очереди без отправки
func (m *Manager) RefreshCounters(ctx context.Context) error {
	sc, err := m.contexts.Build(ctx)
	if err != nil {
		return err
	}
	if !sc.Available() {
		return nil
	}

	var errs []error
	for _, task := range m.tasks {
		if _, _, err := m.refreshCounters(ctx, sc.Scope(), task); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) runTask(ctx context.Context, sc sync.Context, task Task) (res FamilyResult) {
	scope := sc.Scope()
	doc := task.DocType()
	res.DocType = doc

	if err := m.state.SetInProgress(ctx, scope, doc, true); err != nil {
		m.log.Warn("failed to set in-progress", slog.String("doctype", string(doc)), slog.String("error", err.Error()))
	}

	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("push %s panicked: %v", doc, rec)
		}

		if res.Err != nil {
			if err := m.state.MarkFailure(ctx, scope, doc, res.Err.Error()); err != nil {
				m.log.Warn("failed to persist push failure", slog.String("doctype", string(doc)), slog.String("error", err.Error()))
			}
		} else if err := m.state.MarkSuccess(ctx, scope, doc, m.now()); err != nil {
			m.log.Warn("failed to persist push success", slog.String("doctype", string(doc)), slog.String("error", err.Error()))
		}

		pending, failed, err := m.refreshCounters(ctx, scope, task)
		if err != nil {
			m.log.Warn("failed to refresh counters", slog.String("doctype", string(doc)), slog.String("error", err.Error()))
		}
		res.Pending, res.Failed = pending, failed

		if err := m.state.SetInProgress(ctx, scope, doc, false); err != nil {
			m.log.Warn("failed to reset in-progress", slog.String("doctype", string(doc)), slog.String("error", err.Error()))
		}
	}()

	res.Pushed, res.Err = task.Push(ctx, sc)
	return res
}

func (m *Manager) refreshCounters(ctx context.Context, scope sync.Scope, task Task) (int, int, error) {
	pending, failed, err := task.Counts(ctx, scope)
	if err != nil {
		return 0, 0, err
	}
	return pending, failed, m.state.SetCounters(ctx, scope, task.DocType(), pending, failed)
}
