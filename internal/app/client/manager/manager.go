// Package manager полная синхронизация по требованию пользователя или по таймеру.
package manager

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"possync/internal/domain/session"
	"possync/internal/domain/sync"
)

const (
	DefaultCooldown = 5 * time.Second
	MsgOffline      = "no hay conexión a internet"

	subscriberBuffer = 16
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSyncing
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSyncing:
		return "syncing"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State Idle | Syncing(step) | Success | Error(message)
type State struct {
	Phase   Phase
	Step    string
	Message string
}

func (s State) String() string {
	switch s.Phase {
	case PhaseSyncing:
		return "syncing: " + s.Step
	case PhaseError:
		return "error: " + s.Message
	default:
		return s.Phase.String()
	}
}

// PullTask одна независимая загрузка
type PullTask struct {
	Name string
	Run  func(ctx context.Context, sc sync.Context) error
}

type ContextSource interface {
	Build(ctx context.Context) (sync.Context, error)
}

type Manager struct {
	mu         gosync.Mutex
	state      State
	generation uint64
	subs       map[uint64]chan State
	nextSub    uint64

	conn     session.Connectivity
	contexts ContextSource
	tasks    []PullTask
	cooldown time.Duration
	log      *slog.Logger
}

func New(conn session.Connectivity, contexts ContextSource, cooldown time.Duration, log *slog.Logger, tasks ...PullTask) *Manager {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Manager{
		subs:     make(map[uint64]chan State),
		conn:     conn,
		contexts: contexts,
		tasks:    tasks,
		cooldown: cooldown,
		log:      log.With(slog.String("component", "sync-manager")),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe возвращает канал изменений состояния и функцию отписки.
// Медленный подписчик теряет промежуточные состояния.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, subscriberBuffer)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if ch, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// FullSync запускает все загрузки параллельно и ждет их завершения.
// Повторный вызов во время Syncing ничего не делает.
func (m *Manager) FullSync(ctx context.Context) State {
	if current, busy := m.syncing(); busy {
		return current
	}

	if !m.conn.IsConnected(ctx) {
		m.log.Info("full sync skipped: offline")
		return m.finish(State{Phase: PhaseError, Message: MsgOffline})
	}

	m.mu.Lock()
	if m.state.Phase == PhaseSyncing {
		current := m.state
		m.mu.Unlock()
		return current
	}
	m.setLocked(State{Phase: PhaseSyncing, Step: "pull"})
	m.mu.Unlock()

	sc, err := m.contexts.Build(ctx)
	if err != nil {
		return m.finish(State{Phase: PhaseError, Message: err.Error()})
	}

	started := time.Now()

	var g errgroup.Group
	for _, task := range m.tasks {
		task := task
		g.Go(func() error {
			return runTask(ctx, task, sc)
		})
	}

	if err := g.Wait(); err != nil {
		m.log.Warn("full sync failed", slog.String("error", err.Error()))
		return m.finish(State{Phase: PhaseError, Message: err.Error()})
	}

	m.log.Info("full sync finished", slog.Duration("took", time.Since(started)))
	return m.finish(State{Phase: PhaseSuccess})
}

// runTask выполняет загрузку; паника задачи становится ее ошибкой
func runTask(ctx context.Context, task PullTask, sc sync.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: panic: %v", task.Name, rec)
		}
	}()

	if err := task.Run(ctx, sc); err != nil {
		return fmt.Errorf("%s: %w", task.Name, err)
	}
	return nil
}

// finish выставляет терминальное состояние и через cooldown возвращает Idle
func (m *Manager) finish(s State) State {
	m.mu.Lock()
	m.setLocked(s)
	gen := m.generation
	m.mu.Unlock()

	time.AfterFunc(m.cooldown, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// за время cooldown мог начаться новый прогон
		if m.generation == gen {
			m.setLocked(State{Phase: PhaseIdle})
		}
	})
	return s
}

func (m *Manager) syncing() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.state.Phase == PhaseSyncing
}

func (m *Manager) setLocked(s State) {
	m.state = s
	m.generation++
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
