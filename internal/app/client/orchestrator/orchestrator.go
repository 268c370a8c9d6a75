// Package orchestrator запускает bootstrap-задачи по ключу и гейты, которые на них опираются.
package orchestrator

import (
	"context"
	"fmt"
	gosync "sync"

	"golang.org/x/exp/slog"

	"possync/internal/domain/session"
	"possync/internal/domain/sync"
)

const (
	JobConnectivity   = "connectivity"
	JobSession        = "session"
	JobPaymentMethods = "sync_payment_methods"
	JobProfiles       = "sync_pos_profiles"

	KeyAllProfiles = "all"

	MsgOffline            = "Offline"
	MsgInvalidSession     = "Invalid session"
	MsgContextUnavailable = "Sync context unavailable"
)

// Job именованная задача; получает уже построенный контекст синхронизации
type Job struct {
	ID  string
	Run func(ctx context.Context, sc sync.Context) error
}

type ContextSource interface {
	Build(ctx context.Context) (sync.Context, error)
}

// PaymentMethodSyncer загрузка способов оплаты профиля
type PaymentMethodSyncer interface {
	Refresh(ctx context.Context, sc sync.Context, profileID string) (int, error)
}

// ProfileSyncer загрузка списка POS-профилей
type ProfileSyncer interface {
	Refresh(ctx context.Context, sc sync.Context, force bool) error
}

type Orchestrator struct {
	guard gosync.Mutex
	locks map[string]*gosync.Mutex

	conn     session.Connectivity
	session  session.Ensurer
	contexts ContextSource
	payments PaymentMethodSyncer
	profiles ProfileSyncer
	log      *slog.Logger
}

func New(
	conn session.Connectivity,
	sess session.Ensurer,
	contexts ContextSource,
	payments PaymentMethodSyncer,
	profiles ProfileSyncer,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		locks:    make(map[string]*gosync.Mutex),
		conn:     conn,
		session:  sess,
		contexts: contexts,
		payments: payments,
		profiles: profiles,
		log:      log.With(slog.String("component", "orchestrator")),
	}
}

// BootstrapPaymentMethods загружает способы оплаты профиля
func (o *Orchestrator) BootstrapPaymentMethods(ctx context.Context, profileID string) []sync.JobResult {
	return o.Run(ctx, profileID, Job{
		ID: JobPaymentMethods,
		Run: func(ctx context.Context, sc sync.Context) error {
			n, err := o.payments.Refresh(ctx, sc, profileID)
			if err != nil {
				return err
			}
			o.log.Debug("payment methods bootstrapped", slog.String("profile", profileID), slog.Int("count", n))
			return nil
		},
	})
}

// BootstrapProfiles загружает список профилей под ключом "all"
func (o *Orchestrator) BootstrapProfiles(ctx context.Context) []sync.JobResult {
	return o.Run(ctx, KeyAllProfiles, Job{
		ID: JobProfiles,
		Run: func(ctx context.Context, sc sync.Context) error {
			return o.profiles.Refresh(ctx, sc, true)
		},
	})
}

// Run выполняет задачи под мьютексом ключа. Ошибки и паники задач
// превращаются в FAILED, наружу ничего не пробрасывается.
func (o *Orchestrator) Run(ctx context.Context, key string, jobs ...Job) []sync.JobResult {
	lock := o.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if !o.conn.IsConnected(ctx) {
		return []sync.JobResult{{ID: JobConnectivity, Status: sync.JobPending, Message: MsgOffline}}
	}
	if !o.session.EnsureValidSession(ctx) {
		return []sync.JobResult{{ID: JobSession, Status: sync.JobFailed, Message: MsgInvalidSession}}
	}

	sc, err := o.contexts.Build(ctx)
	if err != nil {
		o.log.Warn("failed to build sync context", slog.String("key", key), slog.String("error", err.Error()))
	}

	results := make([]sync.JobResult, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, o.runJob(ctx, sc, job))
	}
	return results
}

func (o *Orchestrator) runJob(ctx context.Context, sc sync.Context, job Job) (res sync.JobResult) {
	res.ID = job.ID

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = sync.JobFailed
			res.Message = fmt.Sprintf("panic: %v", rec)
		}
		if res.Status == sync.JobFailed {
			o.log.Warn("bootstrap job failed", slog.String("job", job.ID), slog.String("error", res.Message))
		}
	}()

	if !sc.Available() {
		res.Status = sync.JobPending
		res.Message = MsgContextUnavailable
		return res
	}

	if err := job.Run(ctx, sc); err != nil {
		res.Status = sync.JobFailed
		res.Message = err.Error()
		return res
	}

	res.Status = sync.JobDone
	return res
}

func (o *Orchestrator) lockFor(key string) *gosync.Mutex {
	o.guard.Lock()
	defer o.guard.Unlock()

	lock, ok := o.locks[key]
	if !ok {
		lock = &gosync.Mutex{}
		o.locks[key] = lock
	}
	return lock
}
