package handlers

import (
	"twitapp/internal/middleware"
	"twitapp/internal/models"
	"twitapp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/user")
	userRoutes.Post("/register", h.HandleRegister)
	userRoutes.Post("/login", h.HandleLogin)
}

// RegisterProtectedRoutes registers the routes that need an authenticated caller.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	userRoutes := router.Group("/user")
	userRoutes.Post("/change-password", h.HandleChangePassword)
	userRoutes.Post("/logout", h.HandleLogout)
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req models.Credentials
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	summary, err := h.authService.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req models.Credentials
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	token, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// HandleChangePassword changes the password of the account named in the body.
func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req models.ChangePasswordRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	msg, err := h.authService.ChangePassword(c.UserContext(), middleware.UserID(c), req.Email, req.Password, req.NewPassword)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// HandleLogout tells the client to drop its token. Nothing is revoked server side.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": h.authService.Logout(c.UserContext(), middleware.UserID(c)),
	})
}
