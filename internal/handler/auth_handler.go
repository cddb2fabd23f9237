package handler

import (
	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest represents the reset password request body
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ValidateTokenRequest represents the validate token request body
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// Login handles user authentication
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperror.Validation("email and password are required")
	}

	response, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(response)
}

// Register creates a cashier account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	user, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"data":    user.ToResponse(),
	})
}

// ResetPassword handles password change
// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.OldPassword == "" || req.NewPassword == "" {
		return apperror.Validation("email, old_password, and new_password are required")
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

// Heartbeat keeps the session alive
// POST /api/v1/auth/heartbeat
func (h *AuthHandler) Heartbeat(c *fiber.Ctx) error {
	actor := actorFrom(c)
	if err := h.authService.Heartbeat(c.UserContext(), actor.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Heartbeat received", "status": "online"})
}

// ValidateToken handles JWT token validation
// POST /api/v1/auth/validate-token
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	var req ValidateTokenRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Token == "" {
		return apperror.Validation("token is required")
	}

	response, err := h.authService.ValidateToken(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(response)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.authService.Profile(c.UserContext(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

// PATCH /api/v1/auth/me
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	profile, err := h.authService.UpdateProfile(c.UserContext(), actorFrom(c).ID, &req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Profile updated successfully", "data": profile})
}
