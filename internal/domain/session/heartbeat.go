package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultHeartbeatInterval = 5 * time.Minute

// Heartbeat периодически продлевает сессию, пока есть сеть
type Heartbeat struct {
	session  Ensurer
	store    TokenStore
	conn     Connectivity
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHeartbeat(session Ensurer, store TokenStore, conn Connectivity, interval time.Duration, log *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		session:  session,
		store:    store,
		conn:     conn,
		interval: interval,
		log:      log.With(slog.String("component", "token_heartbeat")),
	}
}

// Start запускает цикл; повторный вызов во время работы ничего не делает
func (h *Heartbeat) Start(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	h.running = true
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.loop(ctx, h.done)

	h.log.Info("heartbeat started", slog.Duration("interval", h.interval))
	return true
}

// Stop останавливает цикл и ждет его завершения
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.cancel()
	done := h.done
	h.running = false
	h.mu.Unlock()

	<-done
	h.log.Info("heartbeat stopped")
}

func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Heartbeat) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Heartbeat) tick(ctx context.Context) {
	tokens, err := h.store.Load(ctx)
	if err != nil {
		h.log.Debug("heartbeat: token store unavailable", slog.Any("error", err))
		return
	}
	if tokens == nil {
		return
	}
	if !h.conn.IsConnected(ctx) {
		return
	}
	if !h.session.EnsureValidSession(ctx) {
		h.log.Warn("heartbeat: session is no longer valid")
	}
}
