package validation

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOrderRequest(t *testing.T) {
	v := New()

	valid := SaveOrderRequest{
		Email: "ana@gmail.com",
		Cart:  []CartItem{{Name: "Taza", Price: 2500, Quantity: 2}},
	}
	assert.NoError(t, v.Struct(valid))

	missing := SaveOrderRequest{Email: "ana@gmail.com"}
	assert.Error(t, v.Struct(missing))

	badMethod := valid
	badMethod.PaymentMethod = "bitcoin"
	assert.Error(t, v.Struct(badMethod))

	badLine := valid
	badLine.Cart = []CartItem{{Name: "Taza", Price: 2500, Quantity: 0}}
	assert.Error(t, v.Struct(badLine))
}

func TestCheckoutRequestNeedsCartOrItems(t *testing.T) {
	v := New()
	base := CheckoutRequest{
		Email:         "ana@gmail.com",
		Address:       "Av. 1",
		City:          "Santiago",
		Region:        "RM",
		PaymentMethod: "mercadopago",
	}

	assert.Error(t, v.Struct(base), "neither cart nor items")

	withCart := base
	withCart.CartID = "abc"
	assert.NoError(t, v.Struct(withCart))

	withItems := base
	withItems.Items = []CartItem{{Name: "Taza", Price: 1, Quantity: 1}}
	assert.NoError(t, v.Struct(withItems))

	both := withItems
	both.CartID = "abc"
	assert.Error(t, v.Struct(both))
}

func bindApp(message string) *fiber.App {
	app := fiber.New()
	v := New()
	app.Post("/", func(c *fiber.Ctx) error {
		var req SaveOrderRequest
		if err := BindAndValidate(c, &req, v, message); err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Message, "fields": verr.Fields})
			}
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestBindAndValidate(t *testing.T) {
	app := bindApp("missing data")

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"email":"ana@gmail.com","cart":[{"name":"Taza","price":1,"quantity":1}]}`, fiber.StatusNoContent},
		{"missing cart", `{"email":"ana@gmail.com"}`, fiber.StatusBadRequest},
		{"malformed", `{"email":`, fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
