package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/config"
	"possync/internal/app/client/crypto"
	"possync/internal/app/client/manager"
	"possync/internal/app/client/orchestrator"
	"possync/internal/app/client/pull"
	"possync/internal/app/client/push"
	"possync/internal/domain/document"
	"possync/internal/domain/session"
	"possync/internal/domain/sync"
	"possync/internal/infrastructure/storage/sqlite"
)

var (
	ErrNoSession       = errors.New("pos session is not open")
	ErrProfileNotFound = errors.New("pos profile not found")
)

// App собирает движок синхронизации клиента
type App struct {
	config  *config.Config
	log     *slog.Logger
	loading *LoadingIndicator

	storage  *sqlite.Storage
	tables   sqlite.Tables
	state    *sqlite.StateRepository
	sessions *sqlite.SessionStore

	httpClient *httpClient
	tokens     session.TokenStore
	refresher  *session.Refresher
	heartbeat  *session.Heartbeat

	contexts     *sync.ContextProvider
	gateContexts *fallbackContexts

	customers  *pull.Repository[document.Customer, *document.Customer]
	categories *pull.Repository[document.Category, *document.Category]
	inventory  *pull.Inventory
	invoices   *pull.Repository[document.SalesDocument, *document.SalesDocument]
	profiles   *pull.Repository[document.POSProfile, *document.POSProfile]
	payments   *pull.PaymentMethods

	orchestrator *orchestrator.Orchestrator
	openingGate  *orchestrator.Gate
	profileGate  *orchestrator.Gate
	pushQueue    *push.Manager
	syncManager  *manager.Manager

	loginRequired chan string

	wg     gosync.WaitGroup
	cancel context.CancelFunc
	mu     gosync.Mutex
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := sqlite.New(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации локального хранилища: %w", err)
	}

	tokens, err := crypto.NewSecureStore(cfg.ConfigDir, cfg.InstanceID)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("ошибка инициализации хранилища токенов: %w", err)
	}

	httpCl, err := NewHTTPClient(cfg, tokens, log)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	app := &App{
		config:        cfg,
		log:           log,
		storage:       storage,
		tables:        storage.Tables(),
		state:         sqlite.NewStateRepository(storage),
		sessions:      sqlite.NewSessionStore(storage),
		httpClient:    httpCl,
		tokens:        tokens,
		loginRequired: make(chan string, 1),
	}

	app.loading = NewLoadingIndicator(func(visible bool) {
		log.Debug("loading indicator", slog.Bool("visible", visible))
	})

	app.wire()
	return app, nil
}

func (a *App) wire() {
	cfg, log := a.config, a.log

	a.refresher = session.NewRefresher(a.tokens, a.httpClient, a.httpClient,
		session.NavigatorFunc(a.navigateToLogin), log, a.sessions)
	a.heartbeat = session.NewHeartbeat(a.refresher, a.tokens, a.httpClient, cfg.HeartbeatInterval, log)

	policy := sync.MonthsBack(cfg.SyncMonthsBack)
	a.contexts = sync.NewContextProvider(a.sessions, policy)
	a.gateContexts = &fallbackContexts{
		provider:   a.contexts,
		instanceID: cfg.InstanceID,
		companyID:  cfg.CompanyID,
		policy:     policy,
	}

	deps := pull.Deps{
		Remote: a.httpClient,
		State:  a.state,
		TTL:    sync.NewTTL(cfg.CacheTTL),
		Log:    log,
	}
	a.customers = pull.NewCustomers(deps, a.tables.Customers)
	a.categories = pull.NewCategories(deps, a.tables.Categories)
	a.inventory = &pull.Inventory{
		Items:  pull.NewItems(deps, a.tables.Items),
		Bins:   pull.NewBins(deps, a.tables.Bins),
		Prices: pull.NewPrices(deps, a.tables.Prices),
	}
	a.invoices = pull.NewInvoices(deps, a.tables.Invoices)
	a.profiles = pull.NewProfiles(deps, a.tables.Profiles)
	a.payments = pull.NewPaymentMethods(deps, a.tables.Profiles, a.tables.PaymentMethods)

	a.orchestrator = orchestrator.New(a.httpClient, a.refresher, a.gateContexts, a.payments, a.profiles, log)
	a.openingGate = orchestrator.NewOpeningGate(a.orchestrator, a.gateContexts, a.tables.PaymentMethods, log)
	a.profileGate = orchestrator.NewProfileGate(a.orchestrator, a.gateContexts, a.tables.Profiles, log)

	customers := push.LookupFrom[document.Customer](a.tables.Customers)
	quotations := push.LookupFrom[document.SalesDocument](a.tables.Quotations)
	orders := push.LookupFrom[document.SalesDocument](a.tables.SalesOrders)
	invoices := push.LookupFrom[document.SalesDocument](a.tables.Invoices)

	a.pushQueue = push.NewManager(a.contexts, a.state, log,
		push.NewPusher[document.Customer](sync.DocCustomer, a.tables.Customers, a.httpClient, log),
		push.NewPusher[document.SalesDocument](sync.DocQuotation, a.tables.Quotations, a.httpClient, log).
			WithResolver(push.SalesResolver(customers, nil)),
		push.NewPusher[document.SalesDocument](sync.DocSalesOrder, a.tables.SalesOrders, a.httpClient, log).
			WithResolver(push.SalesResolver(customers, quotations)),
		push.NewPusher[document.SalesDocument](sync.DocDeliveryNote, a.tables.DeliveryNotes, a.httpClient, log).
			WithResolver(push.SalesResolver(customers, orders)),
		push.NewPusher[document.SalesDocument](sync.DocSalesInvoice, a.tables.Invoices, a.httpClient, log).
			WithResolver(push.SalesResolver(customers, orders)),
		push.NewPusher[document.PaymentEntry](sync.DocPaymentEntry, a.tables.Payments, a.httpClient, log).
			WithResolver(push.PaymentResolver(invoices, customers)),
	)

	a.syncManager = manager.New(a.httpClient, a.contexts, cfg.SyncCooldown, log,
		manager.PullTask{Name: "customers", Run: func(ctx context.Context, sc sync.Context) error {
			return a.customers.Refresh(ctx, sc, forced(ctx))
		}},
		manager.PullTask{Name: "categories", Run: func(ctx context.Context, sc sync.Context) error {
			return a.categories.Refresh(ctx, sc, forced(ctx))
		}},
		manager.PullTask{Name: "inventory", Run: func(ctx context.Context, sc sync.Context) error {
			return a.inventory.Refresh(ctx, sc, forced(ctx))
		}},
		manager.PullTask{Name: "invoices", Run: func(ctx context.Context, sc sync.Context) error {
			return a.invoices.Refresh(ctx, sc, forced(ctx))
		}},
	)
}

func (a *App) Close() error {
	return a.storage.Close()
}

// LoginRequired сигнал о том, что сессия сброшена и нужен повторный вход
func (a *App) LoginRequired() <-chan string {
	return a.loginRequired
}

func (a *App) navigateToLogin(reason string) {
	a.log.Warn("Требуется повторный вход", slog.String("reason", reason))
	select {
	case a.loginRequired <- reason:
	default:
	}
}

// Register регистрирует нового пользователя
func (a *App) Register(ctx context.Context, username, password string) error {
	if err := a.httpClient.Register(ctx, username, password); err != nil {
		return err
	}

	a.log.Info("Пользователь успешно зарегистрирован", slog.String("login", username))
	return nil
}

// Login выполняет вход пользователя и сохраняет токены
func (a *App) Login(ctx context.Context, username, password string) error {
	tokens, err := a.httpClient.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if tokens.UserID == "" {
		tokens.UserID = username
	}

	if err := a.tokens.Save(ctx, tokens); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	a.refresher.Reset()

	a.log.Info("Вход выполнен успешно", slog.String("login", username))
	return nil
}

// Logout удаляет токены и закрывает POS-сессию
func (a *App) Logout(ctx context.Context) error {
	if err := a.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	if err := a.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("ошибка закрытия сессии: %w", err)
	}
	return nil
}

// AuthStatus состояние сессии без сетевых вызовов
func (a *App) AuthStatus(ctx context.Context) (session.Validity, *session.Tokens, error) {
	tokens, err := a.tokens.Load(ctx)
	if err != nil {
		return session.Invalid, nil, err
	}
	return a.refresher.State(ctx), tokens, nil
}

// EnsureSession продлевает сессию при необходимости
func (a *App) EnsureSession(ctx context.Context) bool {
	return a.refresher.EnsureValidSession(ctx)
}

// CheckConnection проверяет соединение с сервером
func (a *App) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return a.httpClient.HealthCheck(ctx)
}

// CurrentSession текущая POS-сессия или nil
func (a *App) CurrentSession(ctx context.Context) (*sync.Session, error) {
	return a.sessions.Current(ctx)
}

// Run демон: heartbeat, периодическая синхронизация и отправка очереди
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	go a.handleSignals(ctx)

	a.heartbeat.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.startSync(ctx)
	}()

	a.log.Info("Клиент запущен",
		slog.String("server", a.config.ServerAddress),
		slog.String("env", a.config.Env),
	)

	a.wg.Wait()
	a.heartbeat.Stop()
	return nil
}

func (a *App) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.log.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
		a.Shutdown()
	case <-ctx.Done():
	}
}

func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	a.wg.Wait()
	a.log.Info("Клиент завершил работу")
}
