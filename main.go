package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sa3tha/sa3tha_backend/config"
	"github.com/sa3tha/sa3tha_backend/controllers"
	"github.com/sa3tha/sa3tha_backend/geo"
	"github.com/sa3tha/sa3tha_backend/middleware"
	"github.com/sa3tha/sa3tha_backend/repositories"
	"github.com/sa3tha/sa3tha_backend/routes"
	"github.com/sa3tha/sa3tha_backend/scheduler"
	"github.com/sa3tha/sa3tha_backend/services"
	"github.com/sa3tha/sa3tha_backend/websocket"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	// Connect to database
	client, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatal("MongoDB connection error: ", err)
	}
	db := client.Database(cfg.DBName)

	// Push transport; without credentials notifications are recorded only
	var pusher services.Pusher
	if app, err := config.InitFirebase(cfg); err != nil {
		logger.Warn("firebase unavailable, push delivery disabled", zap.Error(err))
	} else {
		pusher = services.NewFCMPusher(app)
	}

	// Region boundaries
	regions, err := geo.LoadRegionResolver(cfg.GovernoratesPath)
	if err != nil {
		logger.Warn("governorate boundaries not loaded, region resolution disabled",
			zap.String("path", cfg.GovernoratesPath),
			zap.Error(err))
		regions = &geo.RegionResolver{}
	} else {
		logger.Info("governorate boundaries loaded", zap.Int("regions", regions.Len()))
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Initialize repositories
	contactRepo := repositories.NewContactRepository(db)
	userRepo := repositories.NewUserRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	reviewRepo := repositories.NewReviewRepository(db)
	catalogRepo := repositories.NewCatalogRepository(db)
	txRunner := repositories.NewTxRunner(client, cfg.MongoTransactions)

	// Initialize services
	dispatcher := services.NewNotificationDispatcher(notificationRepo, pusher, wsHub, logger)
	lifecycle := services.NewContactLifecycle(contactRepo, userRepo, reviewRepo, catalogRepo, txRunner, dispatcher, regions, logger)
	matcher := services.NewExpertMatcher(userRepo, catalogRepo, regions, logger)
	profile := services.NewUserProfileService(userRepo, regions, logger)

	// Follow-up scheduler
	var followups *scheduler.FollowupScheduler
	if cfg.SchedulerEnabled {
		var lease scheduler.Lease
		if redisClient := config.ConnectRedis(cfg); redisClient != nil {
			defer redisClient.Close()
			lease = scheduler.NewRedisLease(redisClient, logger)
		}
		passes := scheduler.NewPasses(contactRepo, userRepo, catalogRepo, dispatcher, matcher, logger)
		followups = scheduler.NewFollowupScheduler(passes, lease, logger)
		if err := followups.Start(); err != nil {
			logger.Fatal("failed to start follow-up scheduler", zap.Error(err))
		}
	}

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewCustomValidator()

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()
	go func() {
		for range time.Tick(time.Minute) {
			rateLimiter.Cleanup()
		}
	}()

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		ConnectSources:  cfg.CORSAllowedOrigins,
		HSTS:            !cfg.IsDevelopment(),
		NoStorePrefixes: []string{"/api/"},
	}))
	e.Use(httpsRedirect())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "OK",
			"message": "Sa3tha Backend is running",
			"version": "1.0",
		})
	})

	routes.SetupRoutes(e, routes.Handlers{
		Contacts:      controllers.NewContactController(lifecycle),
		Experts:       controllers.NewExpertController(matcher, profile),
		Notifications: controllers.NewNotificationController(dispatcher),
		Users:         controllers.NewUserController(profile),
		Hub:           wsHub,
		HealthCheck: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	}, cfg.JWTSecret)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if followups != nil {
		followups.Stop(ctx)
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	wsHub.Close()
	if err := client.Disconnect(ctx); err != nil {
		logger.Error("mongo disconnect", zap.Error(err))
	}
}

func newLogger(cfg *config.AppConfig) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(http.StatusMovedPermanently, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
