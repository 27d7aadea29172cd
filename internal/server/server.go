package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/usermgmt/internal/config"
	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/handlers"
	"github.com/iudanet/usermgmt/internal/server/middleware"
	"github.com/iudanet/usermgmt/internal/server/objstore"
	"github.com/iudanet/usermgmt/internal/server/service"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/internal/server/token"
)

// Deps собирает зависимости HTTP сервера, созданные в main
type Deps struct {
	Logger *slog.Logger
	Users  storage.UserStorage
	Tokens *token.Manager

	UserService *service.UserService
	AuthService *service.AuthService
	Images      objstore.ImageStore
}

// Server оборачивает http.Server с собранным роутером
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New собирает роутер и middleware цепочки.
// Порог входа в цепочку: recovery -> metrics -> logging, затем
// auth middleware на bearer-маршрутах, ролевые guard-ы на
// административных маршрутах и rate limit на login/reset.
func New(cfg *config.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	authHandler := handlers.NewAuthHandler(deps.Logger, deps.UserService, deps.AuthService)
	userHandler := handlers.NewUserHandler(deps.Logger, deps.UserService, deps.Images)
	healthHandler := handlers.NewHealthHandler(deps.Logger)

	requireAuth := middleware.AuthMiddleware(deps.Logger, deps.Tokens, deps.Users)
	rateLimit := middleware.RateLimitMiddleware(cfg.AuthRateLimit, cfg.AuthRateWindow, deps.Logger)
	adminOnly := middleware.RequireRoles(deps.Logger, string(models.RoleAdmin))
	staffOnly := middleware.RequireRoles(deps.Logger,
		string(models.RoleAdmin), string(models.RoleModerator))

	// Публичные маршруты аутентификации
	mux.HandleFunc("POST /auth/signup", authHandler.Signup)
	mux.Handle("POST /auth/login", rateLimit(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh-token", authHandler.Refresh)
	mux.Handle("POST /auth/reset-password", rateLimit(http.HandlerFunc(authHandler.ResetPassword)))

	// Маршруты под bearer токеном
	mux.Handle("GET /user/me", requireAuth(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PATCH /user/me", requireAuth(http.HandlerFunc(userHandler.UpdateMe)))
	mux.Handle("DELETE /user/me", requireAuth(http.HandlerFunc(userHandler.DeleteMe)))

	mux.Handle("POST /user/me/image", requireAuth(http.HandlerFunc(userHandler.UploadImage)))
	mux.Handle("GET /user/me/image", requireAuth(http.HandlerFunc(userHandler.GetImage)))
	mux.Handle("DELETE /user/me/image", requireAuth(http.HandlerFunc(userHandler.DeleteImage)))

	mux.Handle("GET /user/{id}", requireAuth(http.HandlerFunc(userHandler.GetByID)))
	mux.Handle("PATCH /user/{id}", requireAuth(adminOnly(http.HandlerFunc(userHandler.UpdateByID))))
	mux.Handle("GET /users", requireAuth(staffOnly(http.HandlerFunc(userHandler.List))))

	// Служебные маршруты
	mux.HandleFunc("GET /healthcheck", healthHandler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Внешняя цепочка применяется ко всем маршрутам,
	// healthcheck и metrics не логируются
	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(deps.Logger, []string{"/healthcheck", "/metrics"})(handler)
	handler = middleware.MetricsMiddleware()(handler)
	handler = middleware.RecoveryMiddleware(deps.Logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: deps.Logger,
		cfg:    cfg,
	}
}

// Run запускает сервер и блокируется до отмены контекста,
// после чего выполняет graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
