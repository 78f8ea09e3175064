package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/chore-tracker-api/internal/config"
	"github.com/arnold/chore-tracker-api/internal/database"
	"github.com/arnold/chore-tracker-api/internal/handlers"
	"github.com/arnold/chore-tracker-api/internal/middleware"
	"github.com/arnold/chore-tracker-api/internal/routes"
	"github.com/arnold/chore-tracker-api/internal/services"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	port := pflag.StringP("port", "p", "", "listen port (overrides PORT)")
	databaseURL := pflag.String("database-url", "", "database connection string (overrides DATABASE_URL)")
	migrateOnly := pflag.Bool("migrate-only", false, "run migrations and exit")
	pflag.Parse()

	if *databaseURL != "" {
		os.Setenv("DATABASE_URL", *databaseURL)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)
	log.Println("Database connected")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}
	log.Println("Migrations completed")
	if *migrateOnly {
		return
	}

	ctx := context.Background()
	email, err := services.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName)
	if err != nil {
		log.Printf("Warning: email disabled: %v", err)
		email, _ = services.NewEmailService(ctx, "", "", "")
	}
	push := services.NewPushService(ctx, db, cfg.FCMServiceAccount)
	hub := handlers.NewHub()
	notifier := services.NewNotifier(db, push, hub)

	h := &handlers.Handler{
		Auth:     middleware.NewAuth(db, cfg.JWTSecret, cfg.TokenTTL),
		Accounts: services.NewAccountService(db, email, services.WithFirstUserSupervisor(cfg.FirstUserSupervisor)),
		Families: services.NewFamilyService(db, notifier),
		Tasks:    services.NewTaskService(db, notifier, services.NewProofStore(cfg.UploadDir, cfg.MaxUploadSize)),
		Notifier: notifier,
		Hub:      hub,
	}

	app := routes.NewApp(h, routes.Options{
		UploadDir:     cfg.UploadDir,
		MaxUploadSize: cfg.MaxUploadSize,
		CORSOrigins:   cfg.CORSOrigins,
		RequestLog:    true,
	})

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
