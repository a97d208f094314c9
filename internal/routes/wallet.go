package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowpay/flowpay/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints for the authenticated user.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Balance)
	r.Post("/wallet/credit", h.Credit)
	r.Post("/wallet/debit", h.Debit)
	r.Get("/wallet/transactions", h.Transactions)
}
