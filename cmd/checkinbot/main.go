package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/CheckinBoT/internal/api"
	"github.com/Kerhoff/CheckinBoT/internal/auth"
	"github.com/Kerhoff/CheckinBoT/internal/config"
	"github.com/Kerhoff/CheckinBoT/internal/handlers"
	"github.com/Kerhoff/CheckinBoT/internal/mail"
	"github.com/Kerhoff/CheckinBoT/internal/metrics"
	"github.com/Kerhoff/CheckinBoT/internal/qrtoken"
	"github.com/Kerhoff/CheckinBoT/internal/repository/postgres"
	"github.com/Kerhoff/CheckinBoT/internal/service"
	"github.com/Kerhoff/CheckinBoT/internal/telegram"
	"github.com/Kerhoff/CheckinBoT/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.Info("Starting CheckinBoT...")

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database
	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	repos := service.Repositories{
		Organizations: postgres.NewOrganizationRepository(db.DB),
		Patterns:      postgres.NewPatternRepository(db.DB),
		Events:        postgres.NewEventRepository(db.DB),
		Attendance:    postgres.NewAttendanceRepository(db.DB),
		Messages:      postgres.NewMessageRepository(db.DB),
	}

	signer, err := qrtoken.NewSigner(qrtoken.StaticSecret(cfg.TokenSecret),
		qrtoken.WithTTL(cfg.TokenTTL), qrtoken.WithSkew(cfg.TokenSkew))
	if err != nil {
		l.Fatalf("Failed to create QR token signer: %v", err)
	}
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		l.Fatalf("Failed to create access token issuer: %v", err)
	}
	if !cfg.MailEnabled() {
		l.Warn("SENDGRID_API_KEY is not set, attendee emails will only be logged")
	}
	mailer := mail.New(cfg.SendGridAPIKey, cfg.MailFromName, cfg.MailFromAddress, l)
	m := metrics.New()

	// Service layer
	svc := service.New(l, service.Options{
		MaxInstances:    cfg.MaxRecurrenceInstances,
		DefaultTimezone: cfg.DefaultTimezone,
		PublicBaseURL:   cfg.PublicBaseURL,
	}, repos, signer, tokens, mailer, m)

	// Telegram bot
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}

		// Register command handlers
		bot.RegisterCommand("start", "", handlers.NewStartHandler(svc, l))
		bot.RegisterCommand("help", "Show available commands", handlers.NewHelpHandler(l))
		bot.RegisterCommand("events", "Show upcoming events", handlers.NewEventsHandler(svc, l))
		bot.RegisterCommand("close", "Stop accepting check-ins", handlers.NewCloseHandler(svc, l))
		bot.RegisterCommand("reopen", "Accept check-ins again", handlers.NewReopenHandler(svc, l))
		bot.RegisterCommand("attendees", "List who checked in", handlers.NewAttendeesHandler(svc, l))
		bot.RegisterCommand("qr", "Get a fresh check-in link", handlers.NewQRHandler(svc, l))

		svc.SetNotifier(bot)

		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		l.Info("TELEGRAM_TOKEN is not set, organizer bot disabled")
	}

	// Start message scheduler
	go func() {
		if err := svc.StartMessageScheduler(ctx); err != nil {
			l.Errorf("Message scheduler error: %v", err)
		}
	}()

	// Metrics
	metricsServer := metrics.NewServer(":"+cfg.PrometheusPort, m)
	go func() {
		l.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// HTTP API
	apiServer := api.NewServer(svc, tokens, m, l, api.Options{AllowedOrigins: cfg.CORSAllowedOrigins})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	l.Info("CheckinBoT started successfully")

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	l.Info("Shutting down HTTP servers...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown error: %v", err)
	}

	l.Info("CheckinBoT stopped")
}
