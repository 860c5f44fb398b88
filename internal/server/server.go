// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"snipted/internal/auth"
	"snipted/internal/cache"
	"snipted/internal/config"
	"snipted/internal/database"
	"snipted/internal/middleware"
	"snipted/internal/models"
	"snipted/internal/repository"
	"snipted/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.TokenIssuer
	userRepo       repository.UserRepository
	snippetRepo    repository.SnippetRepository
	tagRepo        repository.TagRepository
	snippetService *service.SnippetService
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	snippetRepo := repository.NewSnippetRepository(db)
	tagRepo := repository.NewTagRepository(db)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("snipted-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()),
		userRepo:       userRepo,
		snippetRepo:    snippetRepo,
		tagRepo:        tagRepo,
	}
	server.snippetService = service.NewSnippetService(snippetRepo, tagRepo)
	server.userService = service.NewUserService(userRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Distributed tracing
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Snipted Backend Metrics Dashboard",
	}))

	// Auth routes
	authGroup := v1.Group("/auth")
	authGroup.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	authGroup.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/refresh", s.CSRFRequired(), s.Refresh)
	authGroup.Post("/logout", s.CSRFRequired(), s.Logout)

	// Public snippet routes (browse/search/read)
	publicSnippets := v1.Group("/snippets")
	publicSnippets.Get("/", s.GetSnippets)
	publicSnippets.Get("/search", middleware.RateLimit(
		s.redis, 10, time.Minute, "search"), s.SearchSnippets)
	publicSnippets.Get("/:id", s.GetSnippet)

	// Public tag listing
	v1.Get("/tags", s.GetTags)

	// User routes; reads are public, registration mirrors /auth/register
	// without the cookie session, /me needs one.
	users := v1.Group("/users")
	users.Post("/", s.CreateUser)
	users.Get("/", s.GetUsers)
	users.Get("/me", s.AuthRequired(), s.GetMe)
	// Specific /:id/:resource routes BEFORE generic /:id route
	users.Get("/:id/snippets", s.GetUserSnippets)
	users.Get("/:id", s.GetUserByID)

	// Protected snippet routes
	protected := v1.Group("", s.AuthRequired(), s.CSRFRequired())
	snippets := protected.Group("/snippets")
	snippets.Post("/", middleware.RateLimit(
		s.redis, 20, time.Minute, "create_snippet"), s.CreateSnippet)
	// Specific /:id/:resource routes BEFORE generic /:id routes
	snippets.Post("/:id/like", s.ToggleLike)
	snippets.Put("/:id", s.UpdateSnippet)
	snippets.Delete("/:id", s.DeleteSnippet)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The app degrades gracefully without Redis; readiness only
		// reports it.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. The access token is
// read from the access_token cookie first, then from the Authorization
// header for non-browser clients.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies("access_token")
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					tokenString = parts[1]
				}
			}
		}

		if tokenString == "" {
			middleware.AuthFailures.WithLabelValues("missing_token").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Not authenticated"))
		}

		email, err := s.tokens.Verify(tokenString)
		if err != nil {
			middleware.AuthFailures.WithLabelValues("invalid_token").Inc()
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Could not validate credentials"))
		}

		user, err := s.userRepo.GetByEmail(c.Context(), email)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if user == nil {
			middleware.AuthFailures.WithLabelValues("unknown_user").Inc()
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("User", email))
		}
		if !user.IsActive {
			middleware.AuthFailures.WithLabelValues("inactive_user").Inc()
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Inactive user"))
		}

		// Store user ID in context
		c.Locals("userID", user.ID)
		// Sync to UserContext for logging and downstream services
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// CSRFRequired returns the double-submit CSRF middleware. It only guards
// state-changing requests carrying a session cookie; pure Bearer-token
// clients have no cookie for an attacker to ride. The refresh cookie counts
// as a session: it outlives the access cookie, and a refresh request arriving
// after access expiry must still present the CSRF header.
func (s *Server) CSRFRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.config.CSRFDisabled {
			return c.Next()
		}

		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		if c.Cookies("access_token") == "" && c.Cookies("refresh_token") == "" {
			return c.Next()
		}

		cookieToken := c.Cookies("csrf_token")
		headerToken := c.Get("X-CSRF-Token")
		if err := auth.ValidateCSRF(cookieToken, headerToken); err != nil {
			middleware.AuthFailures.WithLabelValues("csrf").Inc()
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewCSRFError())
		}

		return c.Next()
	}
}

// optionalUserID resolves the requesting user from cookie or header without
// enforcing authentication. Anonymous and invalid tokens yield zero.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok && id != 0 {
		return id
	}

	tokenString := c.Cookies("access_token")
	if tokenString == "" {
		authHeader := c.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		return 0
	}

	email, err := s.tokens.Verify(tokenString)
	if err != nil {
		return 0
	}
	user, err := s.userRepo.GetByEmail(c.Context(), email)
	if err != nil || user == nil || !user.IsActive {
		return 0
	}
	return user.ID
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "Snipted API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
