package api

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"routekeeper/internal/config"
	"routekeeper/internal/engine"
	"routekeeper/internal/logging"
	"routekeeper/internal/position"
	"routekeeper/internal/sessions"
)

// defaultBodyLimit leaves room for base64 encoded photos and short clips.
const defaultBodyLimit = 32 << 20

// Deps are the daemon components the handlers act on.
type Deps struct {
	Engine   *engine.Engine
	Push     *position.Push
	Sessions *sessions.Repository
	// Stop ends the route. When nil the engine is stopped directly.
	Stop func(ctx context.Context, name string, save bool) (engine.StopResult, error)
}

// Options configures New.
type Options struct {
	Token     string
	Export    config.Export
	BodyLimit int
	Logger    *slog.Logger
}

type handlers struct {
	deps     Deps
	export   config.Export
	validate *validator.Validate
	logger   *slog.Logger
}

// New builds the fiber application.
func New(deps Deps, opts Options) *fiber.App {
	logger := logging.NewComponentLogger(opts.Logger, "api")
	limit := opts.BodyLimit
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	app := fiber.New(fiber.Config{
		AppName:               "routekeeper",
		BodyLimit:             limit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())

	h := &handlers{deps: deps, export: opts.Export, validate: validator.New(), logger: logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r := app.Group("/api", BearerAuth(opts.Token))
	registerTrackingRoutes(r, h)
	registerSessionRoutes(r, h)
	return app
}

func (h *handlers) parse(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return h.validate.Struct(dst)
}
