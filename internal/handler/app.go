package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/config"
)

// maxBodySize fits the largest accepted keyword list with room to spare.
const maxBodySize = 32 << 20

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(cfg config.ServerConfig, ctl *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "keyword-planner-volumes",
		BodyLimit:             maxBodySize,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(RequestLogger())

	ctl.Register(app)
	return app
}
