package wallet

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const idempotencyKeyHeader = "X-Idempotency-Key"

// Handler exposes the wallet HTTP endpoints. The user ID comes from the auth
// middleware; requests without an idempotency token never reach the engine.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type mutationRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Balance returns the wallet snapshot for the authenticated user.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	snap, err := h.service.Balance(c.UserContext(), userID)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": snap})
}

// Credit applies a credit mutation for the authenticated user.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Credit, "Amount credited successfully")
}

// Debit applies a debit mutation for the authenticated user.
func (h *Handler) Debit(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Debit, "Amount debited successfully")
}

// Transactions returns the paged ledger history for the authenticated user.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	entries, err := h.service.History(c.UserContext(), userID, limit, offset)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
			"count":  len(entries),
		},
	})
}

func (h *Handler) mutate(c *fiber.Ctx, apply func(ctx context.Context, userID string, amount decimal.Decimal, description, token string) (Entry, error), message string) error {
	userID, _ := c.Locals("user_id").(string)

	token := c.Get(idempotencyKeyHeader)
	if token == "" {
		return errorResponse(c, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", idempotencyKeyHeader+" header is required")
	}

	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
	}

	entry, err := apply(c.UserContext(), userID, req.Amount, req.Description, token)
	if err != nil {
		return mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": message, "data": entry})
}

func mapError(c *fiber.Ctx, err error) error {
	var insufficient *InsufficientBalanceError
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return errorResponse(c, http.StatusNotFound, "NOT_FOUND", "Wallet not found")
	case errors.As(err, &insufficient):
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":            "INSUFFICIENT_BALANCE",
				"message":         "Insufficient balance for this transaction",
				"currentBalance":  insufficient.CurrentBalance,
				"requestedAmount": insufficient.RequestedAmount,
			},
		})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingToken):
		return errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		return errorResponse(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Unable to process the request, retry with the same idempotency key")
	}
}

func errorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   fiber.Map{"code": code, "message": message},
	})
}
