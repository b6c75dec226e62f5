package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	messageHandler "github.com/jwalitptl/clinic-api/internal/handler/message"
	notificationHandler "github.com/jwalitptl/clinic-api/internal/handler/notification"
	postHandler "github.com/jwalitptl/clinic-api/internal/handler/post"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/relay"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	messageService "github.com/jwalitptl/clinic-api/internal/service/message"
	notificationService "github.com/jwalitptl/clinic-api/internal/service/notification"
	postService "github.com/jwalitptl/clinic-api/internal/service/post"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	postRepo := postgres.NewPostRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Redis broker carries relay pushes across instances. The relay degrades
	// to single-instance delivery when it is unavailable.
	var broker messaging.Broker
	broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, relay pushes stay process-local")
		broker = nil
	} else {
		defer broker.Close()
	}

	var emailSvc email.Service
	if cfg.Email.Enabled {
		emailSvc = email.NewService(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
	}

	// Relay
	hub := relay.NewHub(appLogger, appMetrics)
	dispatcher := relay.NewDispatcher(hub, broker, appLogger)

	// Services
	notificationSvc := notificationService.NewService(notificationRepo, userRepo, emailSvc, appLogger, appMetrics)
	appointmentSvc := appointmentService.NewService(appointmentRepo, notificationSvc, appLogger, appMetrics)
	messageSvc := messageService.NewService(messageRepo, notificationSvc, dispatcher, appLogger, appMetrics)
	postSvc := postService.NewService(postRepo, appMetrics)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	// Handlers
	h := handler.NewHandler()
	r := router.NewRouter(authMiddleware, h, router.Config{
		RateLimit:  100,
		RateBurst:  200,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	r.Setup()

	protected := r.Protected()
	appointmentHandler.NewHandler(appointmentSvc).RegisterRoutes(protected)
	notificationHandler.NewHandler(notificationSvc).RegisterRoutes(protected)
	messageHandler.NewHandler(messageSvc).RegisterRoutes(protected)
	postHandler.NewHandler(postSvc).RegisterRoutes(protected)
	relay.NewHandler(hub, messageSvc, jwtSvc).RegisterRoutes(r.Public())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("relay dispatcher stopped")
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
