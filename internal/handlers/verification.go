package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
	"github.com/example/storefront/internal/verification"
)

// VerificationHandler issues and checks email verification codes.
type VerificationHandler struct {
	codes         CodeVerifier
	mailer        Mailer
	domainAllowed func(email string) bool
	secret        string
	tokenTTL      time.Duration
	validate      *validatorv10.Validate
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(codes CodeVerifier, mailer Mailer, domainAllowed func(string) bool, secret string, tokenTTL time.Duration, validate *validatorv10.Validate) *VerificationHandler {
	return &VerificationHandler{
		codes:         codes,
		mailer:        mailer,
		domainAllowed: domainAllowed,
		secret:        secret,
		tokenTTL:      tokenTTL,
		validate:      validate,
	}
}

// SendCode emails a fresh six digit code to the posted address.
func (h *VerificationHandler) SendCode(c *fiber.Ctx) error {
	var req validation.SendCodeRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "a valid email is required"); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if h.domainAllowed != nil && !h.domainAllowed(email) {
		return fiber.NewError(fiber.StatusBadRequest, "email domain not allowed")
	}

	code, err := h.codes.Issue(c.UserContext(), email)
	if err != nil {
		return err
	}

	if err := h.mailer.SendVerificationCode(c.UserContext(), email, code); err != nil {
		log.Printf("[Mail] verification code to %s failed: %v", email, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not send the code")
	}

	return c.JSON(fiber.Map{"success": true})
}

// VerifyCode checks a code and returns a token proving the email was
// verified.
func (h *VerificationHandler) VerifyCode(c *fiber.Ctx) error {
	var req validation.VerifyCodeRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing data"); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	err := h.codes.Verify(c.UserContext(), email, req.Code)
	switch {
	case errors.Is(err, verification.ErrCodeNotFound),
		errors.Is(err, verification.ErrCodeMismatch),
		errors.Is(err, verification.ErrTooManyAttempts):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}

	token, err := utils.GenerateToken(h.secret, email, utils.ScopeEmailVerification, h.tokenTTL)
	if err != nil {
		return err
	}
	log.Printf("[Verify] %s verified", email)

	return c.JSON(fiber.Map{
		"success":            true,
		"verification_token": token,
	})
}
