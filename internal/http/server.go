// Package http provides the administrative HTTP server and its middleware.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	authUseCase "github.com/allisson/lightldap/internal/auth/usecase"
	"github.com/allisson/lightldap/internal/config"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
	directoryHTTP "github.com/allisson/lightldap/internal/directory/http"
	"github.com/allisson/lightldap/internal/metrics"
)

// Server represents the administrative HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The router is installed by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handlers groups the request handlers mounted by SetupRouter.
type Handlers struct {
	Auth      *authHTTP.AuthHandler
	User      *directoryHTTP.UserHandler
	Group     *directoryHTTP.GroupHandler
	Attribute *directoryHTTP.AttributeHandler
}

// SetupRouter builds the gin engine with every route of the administrative API.
// The rate limiter cleanup goroutines stop when ctx is done.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	handlers Handlers,
	sessionUseCase authUseCase.SessionUseCase,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	router.Use(CustomLoggerMiddleware(s.logger))
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	authenticated := authHTTP.AuthenticationMiddleware(sessionUseCase, s.logger)
	admin := authHTTP.RequireGroupMiddleware(s.logger, directoryDomain.AdminGroup)

	auth := router.Group("/auth")
	if cfg.RateLimitLoginEnabled {
		auth.Use(authHTTP.IPRateLimitMiddleware(
			ctx,
			cfg.RateLimitLoginRequestsPerSec,
			cfg.RateLimitLoginBurst,
			s.logger,
		))
	}
	{
		auth.POST("/simple/login", handlers.Auth.SimpleLoginHandler)
		auth.POST("/opaque/login/start", handlers.Auth.LoginStartHandler)
		auth.POST("/opaque/login/finish", handlers.Auth.LoginFinishHandler)
		auth.POST("/refresh", handlers.Auth.RefreshHandler)
		auth.POST("/logout", authenticated, handlers.Auth.LogoutHandler)
		auth.POST("/opaque/register/start", authenticated, handlers.Auth.RegisterStartHandler)
		auth.POST("/opaque/register/finish", authenticated, handlers.Auth.RegisterFinishHandler)
	}

	api := router.Group("/api/v1")
	api.Use(authenticated)
	if cfg.RateLimitEnabled {
		api.Use(authHTTP.RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	users := api.Group("/users")
	{
		users.GET("", handlers.User.ListHandler)
		users.POST("", admin, handlers.User.CreateHandler)
		users.GET("/:id", handlers.User.GetHandler)
		users.PATCH("/:id", handlers.User.UpdateHandler)
		users.DELETE("/:id", admin, handlers.User.DeleteHandler)
		users.GET("/:id/groups", handlers.User.ListGroupsHandler)
	}

	groups := api.Group("/groups")
	{
		groups.GET("", handlers.Group.ListHandler)
		groups.POST("", admin, handlers.Group.CreateHandler)
		groups.GET("/:id", handlers.Group.GetHandler)
		groups.DELETE("/:id", admin, handlers.Group.DeleteHandler)
		groups.PUT("/:id/members/:user_id", admin, handlers.Group.AddMemberHandler)
		groups.DELETE("/:id/members/:user_id", admin, handlers.Group.RemoveMemberHandler)
	}

	attributes := api.Group("/attributes")
	{
		attributes.GET("", handlers.Attribute.ListHandler)
		attributes.POST("", admin, handlers.Attribute.CreateHandler)
		attributes.DELETE("/:name", admin, handlers.Attribute.DeleteHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready once the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := http.StatusOK

	if s.db == nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			components["database"] = "error"
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		c.JSON(status, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(status, gin.H{"status": "ready", "components": components})
}
