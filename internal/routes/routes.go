package routes

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/config"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/reportbot/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	reportHandler *handlers.ReportHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	if !cfg.APIEnabled() {
		slog.Info("staff API disabled, JWT_SECRET not set")
		return
	}

	jwt := middleware.JWTProtected(cfg)
	support := middleware.SupportRequired(cfg)

	// Any authenticated member may file a report.
	api.Post("/reports", jwt, reportHandler.CreateReport)

	// Support staff only
	api.Get("/reports", jwt, support, reportHandler.ListReports)
	api.Get("/reports/:id", jwt, support, reportHandler.GetReport)
	api.Post("/reports/:id/claim", jwt, support, reportHandler.ClaimReport)
	api.Post("/reports/:id/close", jwt, support, reportHandler.CloseReport)
}
