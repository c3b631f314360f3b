package handlers

import (
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

// AuthHandler signs in the shop administrator.
type AuthHandler struct {
	adminEmail    string
	adminPassHash string
	secret        string
	tokenTTL      time.Duration
	validate      *validatorv10.Validate
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(adminEmail, adminPassHash, secret string, tokenTTL time.Duration, validate *validatorv10.Validate) *AuthHandler {
	return &AuthHandler{
		adminEmail:    adminEmail,
		adminPassHash: adminPassHash,
		secret:        secret,
		tokenTTL:      tokenTTL,
		validate:      validate,
	}
}

// Login exchanges admin credentials for a JWT.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing credentials"); err != nil {
		return err
	}

	if h.adminEmail == "" || h.adminPassHash == "" ||
		!strings.EqualFold(strings.TrimSpace(req.Email), h.adminEmail) ||
		!utils.CheckPassword(h.adminPassHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(h.secret, h.adminEmail, utils.ScopeAdmin, h.tokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   token,
	})
}
