package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flowpay/flowpay/internal/auth"
	"github.com/flowpay/flowpay/internal/config"
	"github.com/flowpay/flowpay/internal/identity"
	"github.com/flowpay/flowpay/internal/middleware"
	"github.com/flowpay/flowpay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Wallet   *wallet.Service
	Identity *identity.Service
	Tokens   *auth.Manager
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	identityHandler := identity.NewHandler(d.Identity, d.Tokens)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute)
	RegisterIdentityRoutes(api, identityHandler, rateLimiter)

	protected := api.Group("", middleware.JWTAuth(d.Tokens))
	RegisterWalletRoutes(protected, wallet.NewHandler(d.Wallet))

	return nil
}
