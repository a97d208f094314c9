package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/flowpay/flowpay/internal/auth"
)

// Handler exposes registration and login endpoints.
type Handler struct {
	service *Service
	tokens  *auth.Manager
}

// NewHandler builds an identity HTTP handler.
func NewHandler(service *Service, tokens *auth.Manager) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Register creates an account; the wallet follows asynchronously via the
// user.registered event.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.Register(c.UserContext(), RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUserExists):
			return fiber.NewError(http.StatusConflict, "email already registered")
		default:
			return fiber.NewError(http.StatusServiceUnavailable, "registration failed, try again")
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    userResponse{UserID: user.ID, Email: user.Email, Name: user.Name},
	})
}

// Login verifies credentials and issues an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "invalid email or password")
		}
		return fiber.NewError(http.StatusServiceUnavailable, "login failed, try again")
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token issuance failed")
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"accessToken": token,
			"user":        userResponse{UserID: user.ID, Email: user.Email, Name: user.Name},
		},
	})
}
