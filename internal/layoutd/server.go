// Package layoutd is the reference layout store: a fiber HTTP service that
// keeps projects and their panels in sqlite.
package layoutd

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// AppConfig holds the HTTP server settings.
type AppConfig struct {
	AppName      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Quiet disables request logging.
	Quiet bool
}

// Logger returns the request logging middleware.
func Logger() fiber.Handler {
	return logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	})
}

// NewApp builds the fiber app with every route registered.
func NewApp(cfg AppConfig, h *Handler) *fiber.App {
	if cfg.AppName == "" {
		cfg.AppName = "Layout Store"
	}
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		AppName:      cfg.AppName,
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	if !cfg.Quiet {
		app.Use(Logger())
	}

	// ============================================================
	// Routes
	// ============================================================

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Post("/login", h.Login)

	projects := app.Group("/projects/:project", h.RequireAuth)
	projects.Get("/layout", h.Layout)
	projects.Post("/panels", h.CreatePanel)
	projects.Patch("/panels/:id", h.MovePanel)
	projects.Delete("/panels/:id", h.DeletePanel)

	return app
}
