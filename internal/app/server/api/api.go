// Справочный сервер документов для POS клиента:
//
//	GET  /api/method/ping                     # проверка связи (публичный)
//	POST /api/method/register                 # регистрация (публичный)
//	POST /api/method/oauth/token              # password и refresh_token grant (публичный)
//	GET  /api/resource/{doctype}              # список документов (auth)
//	GET  /api/resource/{doctype}/{name}       # документ по имени (auth)
//	POST /api/resource/{doctype}              # создать документ (auth)
package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	healthAPI "possync/internal/app/server/api/http/health"
	"possync/internal/app/server/api/http/middleware"
	authMW "possync/internal/app/server/api/http/middleware/auth"
	"possync/internal/app/server/api/http/middleware/logger"
	resourceAPI "possync/internal/app/server/api/http/resource"
	userAPI "possync/internal/app/server/api/http/user"
	"possync/internal/app/server/config"
	"possync/internal/domain/auth"
	"possync/internal/domain/document"
	"possync/internal/domain/user"
	"possync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health   *healthAPI.Handler
	User     *userAPI.Handler
	Resource *resourceAPI.Handler
}

// Services доменные сервисы, которые обслуживают HTTP обработчики
type Services struct {
	Users     user.Servicer
	Tokens    auth.Servicer
	Documents document.Servicer
}

// NewServices собирает сервисы поверх postgres репозиториев
func NewServices(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Services {
	userRepo := postgres.NewUserRepository(storage.Pool(), log)
	tokenRepo := postgres.NewTokenRepository(storage.Pool(), log)
	documentRepo := postgres.NewDocumentRepository(storage.Pool(), log)

	return &Services{
		Users:     user.NewService(userRepo, user.NewCredentialsValidator(), log),
		Tokens:    auth.NewService(tokenRepo, cfg.Auth.Secret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, log),
		Documents: document.NewService(documentRepo, log),
	}
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(services *Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("POS Sync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(services, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Resource.SetupRoutes(API)

	return mux
}

func handlers(services *Services, log *slog.Logger) *Handlers {
	authMiddleware := authMW.New(services.Tokens, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := healthAPI.NewHandler(log, middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	userHandler := userAPI.NewHandler(services.Users, services.Tokens, log,
		middlewares.Add(loggerMW.Middleware()).GetAllAndClear())

	resourceHandler := resourceAPI.NewHandler(services.Documents, log,
		middlewares.Add(loggerMW.Middleware(), authMiddleware.Middleware()).GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		User:     userHandler,
		Resource: resourceHandler,
	}
}
