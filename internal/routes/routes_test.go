package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/validation"
)

func newTestApp() *fiber.App {
	validate := validation.New()
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	Register(app, Handlers{
		Auth:         handlers.NewAuthHandler("", "", "secret", time.Hour, validate),
		Admin:        handlers.NewAdminHandler(nil, nil),
		Orders:       handlers.NewOrderHandler(nil, nil, handlers.NewOrderEffects(nil, nil, nil, "CLP", ""), handlers.EmailGate{}, validate),
		Payments:     handlers.NewPaymentHandler(nil, nil, nil, validate),
		Verification: handlers.NewVerificationHandler(nil, nil, nil, "secret", time.Hour, validate),
		Products:     handlers.NewProductHandler(nil, validate),
		Carts:        handlers.NewCartHandler(nil, nil, validate),
		Checkout:     handlers.NewCheckoutHandler(nil, nil, nil, nil, handlers.EmailGate{}, validate),
	}, "secret")
	return app
}

func TestRegister(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		error  string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"login is public", http.MethodPost, "/api/admin/login", `{"email":"a@b.cl","password":"x"}`, http.StatusUnauthorized, "invalid credentials"},
		{"stats need a token", http.MethodGet, "/api/admin/stats", "", http.StatusUnauthorized, "missing authorization header"},
		{"status update needs a token", http.MethodPut, "/api/admin/orders/x/status", `{"status":"shipped"}`, http.StatusUnauthorized, "missing authorization header"},
		{"product writes need a token", http.MethodDelete, "/api/admin/products/x", "", http.StatusUnauthorized, "missing authorization header"},
		{"cart disabled", http.MethodGet, "/api/cart/abc", "", http.StatusServiceUnavailable, "cart storage unavailable"},
		{"track without token", http.MethodGet, "/api/orders/track", "", http.StatusBadRequest, "missing token"},
		{"wrong method", http.MethodGet, "/api/payments/preference", "", http.StatusMethodNotAllowed, ""},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.error != "" {
				var body map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.error, body["error"])
			}
		})
	}
}
