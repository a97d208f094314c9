package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowpay/flowpay/internal/identity"
)

// RegisterIdentityRoutes wires public registration and login endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, rateLimiter fiber.Handler) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", rateLimiter, h.Login)
}
