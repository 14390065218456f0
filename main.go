package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"outreach/config"
	"outreach/events"
	"outreach/middleware"
	"outreach/routes"
	"outreach/services"
	"outreach/worker"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		})
		if err != nil {
			log.Warnf("Sentry disabled: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if config.AppConfig.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(config.AppConfig.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to message broker: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	users := services.NewUserService(config.DB)
	err := users.EnsureAdmin(context.Background(), config.AppConfig.AdminEmail, config.AppConfig.AdminPassword, config.AppConfig.AdminName)
	if err != nil {
		log.Fatalf("Failed to provision admin account: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "outreach",
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: !config.AppConfig.IsProduction()}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   config.AppConfig.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:           86400,
	}))
	app.Use(middleware.Metrics())

	routes.SetupRoutes(app, config.DB, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maintenance := worker.NewMaintenanceWorker(config.DB)
	go func() {
		if err := maintenance.Start(ctx, config.AppConfig.CleanupCron); err != nil {
			log.Errorf("Maintenance worker stopped: %v", err)
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down server...")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("Server shutdown: %v", err)
		}
	}()

	// Start server
	log.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
