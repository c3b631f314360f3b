package handlers

import (
	"errors"
	"log"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/validation"
)

// CheckoutHandler turns a cart into an order and, for Mercado Pago, a
// hosted checkout.
type CheckoutHandler struct {
	orders   OrderStore
	carts    CartStore
	gateway  PaymentGateway
	effects  *OrderEffects
	gate     EmailGate
	validate *validatorv10.Validate
}

// NewCheckoutHandler constructs CheckoutHandler. carts may be nil.
func NewCheckoutHandler(orders OrderStore, carts CartStore, gateway PaymentGateway, effects *OrderEffects, gate EmailGate, validate *validatorv10.Validate) *CheckoutHandler {
	return &CheckoutHandler{
		orders:   orders,
		carts:    carts,
		gateway:  gateway,
		effects:  effects,
		gate:     gate,
		validate: validate,
	}
}

// Checkout creates a pending order from a server cart or inline items.
// A gateway failure leaves the order pending.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing checkout data"); err != nil {
		return err
	}

	if err := h.gate.check(req.VerificationToken, req.Email); err != nil {
		return err
	}

	items := req.Items
	if req.CartID != "" {
		if h.carts == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "cart storage unavailable")
		}
		crt, err := h.carts.Get(c.UserContext(), req.CartID)
		if errors.Is(err, cart.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "cart not found")
		}
		if err != nil {
			return err
		}
		if len(crt.Lines) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
		}
		for _, line := range crt.Lines {
			items = append(items, validation.CartItem{
				ProductID: line.ProductID,
				Name:      line.Name,
				Price:     line.Price,
				Quantity:  line.Quantity,
			})
		}
	}

	order, err := buildOrder(orderInput{
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		Region:        req.Region,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if err != nil {
		return err
	}

	if err := h.orders.Create(c.UserContext(), order); err != nil {
		return err
	}
	log.Printf("[Checkout] order %s created for %s via %s", order.ID, order.Email, order.PaymentMethod)

	resp := fiber.Map{
		"success":        true,
		"order_id":       order.ID,
		"tracking_token": order.TrackingToken,
	}

	if order.PaymentMethod == models.MethodMercadoPago {
		pref, err := h.gateway.CreatePreference(c.UserContext(), services.PreferenceInput{
			Items:             preferenceItems(order),
			ExternalReference: order.ID.String(),
			PayerEmail:        order.Email,
		})
		if err != nil {
			log.Printf("[Checkout] preference for order %s failed: %v", order.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "error creating preference")
		}

		order.PreferenceID = pref.ID
		if err := h.orders.SetPreference(c.UserContext(), order.ID, pref.ID); err != nil {
			log.Printf("[Checkout] storing preference for order %s failed: %v", order.ID, err)
		}
		resp["init_point"] = pref.InitPoint
		resp["preference_id"] = pref.ID
	}

	if req.CartID != "" {
		if err := h.carts.Delete(c.UserContext(), req.CartID); err != nil {
			log.Printf("[Checkout] clearing cart %s failed: %v", req.CartID, err)
		}
	}

	h.effects.OrderCreated(*order)

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// preferenceItems lists the stored order lines as gateway items.
func preferenceItems(order *models.Order) []services.PreferenceItem {
	items := make([]services.PreferenceItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.PreferenceItem{
			Title:     item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return items
}
