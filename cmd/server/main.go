package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/sync/errgroup"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/config"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/database"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/discord"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/logging"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/rate"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/routes"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/services"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/store"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Report store
	var (
		reportStore  store.Store
		dbLogHandler *logging.DBHandler
		cleanupDone  = make(chan struct{})
	)
	if cfg.UsesSQL() {
		db, err := database.Connect(cfg)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		gormStore, err := store.NewGormStore(db)
		if err != nil {
			slog.Error("report store init failed", "error", err)
			os.Exit(1)
		}
		reportStore = gormStore

		// Database log handler (ERROR+ async batch)
		dbLogHandler = logging.NewDBHandler(db, slog.New(stdout))
		slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, dbLogHandler)))

		// Log cleanup
		logging.StartCleanup(db, cfg.LogRetention, cleanupDone)
	} else {
		fileStore, err := store.NewFileStore(cfg.ReportsFile)
		if err != nil {
			slog.Error("report store init failed", "path", cfg.ReportsFile, "error", err)
			os.Exit(1)
		}
		reportStore = fileStore
	}
	slog.Info("report store ready", "driver", cfg.StoreDriver)

	// Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session init failed", "error", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	// Services
	notifier := discord.NewChannelNotifier(session, cfg.SupportRoleID, cfg.ReportLogChannelID, cfg.ClosedLogChannelID)
	reportService, err := services.NewReportService(ctx, reportStore, rate.NewCooldown(cfg.ReportCooldown),
		services.WithNotifier(notifier))
	if err != nil {
		slog.Error("report service init failed", "error", err)
		os.Exit(1)
	}
	bot := discord.NewBot(session, reportService, cfg)

	// Handlers
	reportHandler := handlers.NewReportHandler(reportService)
	healthHandler := handlers.NewHealthHandler(reportStore, cfg.StoreDriver)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:             64 * 1024,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, cfg, reportHandler, healthHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return discord.Run(gctx, session, bot)
	})
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("bot stopped with error", "error", runErr)
	}

	close(cleanupDone)
	if dbLogHandler != nil {
		dbLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if err := reportStore.Close(); err != nil {
		slog.Error("report store close error", "error", err)
	}

	slog.Info("bot stopped")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}
