package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/validation"
)

// amountTolerance absorbs rounding between the gateway amount and the order
// total.
const amountTolerance = 0.01

// PaymentHandler manages Mercado Pago endpoints.
type PaymentHandler struct {
	gateway  PaymentGateway
	orders   OrderStore
	effects  *OrderEffects
	validate *validatorv10.Validate
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(gateway PaymentGateway, orders OrderStore, effects *OrderEffects, validate *validatorv10.Validate) *PaymentHandler {
	return &PaymentHandler{
		gateway:  gateway,
		orders:   orders,
		effects:  effects,
		validate: validate,
	}
}

// CreatePreference creates a hosted checkout for the posted cart. With an
// external_reference the preference is rebuilt from that stored order, which
// must still be awaiting payment; the posted items are ignored.
func (h *PaymentHandler) CreatePreference(c *fiber.Ctx) error {
	var req validation.PreferenceRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "no items received"); err != nil {
		return err
	}

	if req.ExternalReference != "" {
		return h.orderPreference(c, req.ExternalReference)
	}
	if len(req.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no items received")
	}

	items := make([]services.PreferenceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.NormalizeItem(services.PreferenceItem{
			Title:     item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}))
	}

	pref, err := h.gateway.CreatePreference(c.UserContext(), services.PreferenceInput{
		Items:      items,
		PayerEmail: req.PayerEmail,
	})
	if err != nil {
		log.Printf("[Payment] create preference failed: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "error creating preference")
	}

	return c.JSON(fiber.Map{
		"init_point":    pref.InitPoint,
		"preference_id": pref.ID,
	})
}

func (h *PaymentHandler) orderPreference(c *fiber.Ctx, reference string) error {
	orderID, err := uuid.Parse(reference)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid external_reference")
	}

	order, err := h.orders.FindByID(c.UserContext(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if err != nil {
		return err
	}
	if order.PaymentStatus == models.PaymentPaid || order.PaymentStatus == models.PaymentRefunded {
		return fiber.NewError(fiber.StatusConflict, "order is not awaiting payment")
	}

	pref, err := h.gateway.CreatePreference(c.UserContext(), services.PreferenceInput{
		Items:             preferenceItems(order),
		ExternalReference: order.ID.String(),
		PayerEmail:        order.Email,
	})
	if err != nil {
		log.Printf("[Payment] preference for order %s failed: %v", order.ID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "error creating preference")
	}
	if err := h.orders.SetPreference(c.UserContext(), order.ID, pref.ID); err != nil {
		log.Printf("[Payment] storing preference for order %s failed: %v", order.ID, err)
	}

	return c.JSON(fiber.Map{
		"init_point":    pref.InitPoint,
		"preference_id": pref.ID,
	})
}

// notificationID accepts ids sent either as JSON strings or numbers.
type notificationID string

func (n *notificationID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		return nil
	}
	*n = notificationID(b)
	return nil
}

type webhookRequest struct {
	ID     notificationID `json:"id"`
	Type   string         `json:"type"`
	Topic  string         `json:"topic"`
	Action string         `json:"action"`
	Data   struct {
		ID notificationID `json:"id"`
	} `json:"data"`
}

// Webhook receives Mercado Pago payment notifications and records the
// payment outcome on the referenced order.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			log.Printf("[Payment] webhook body could not be decoded: %v", err)
		}
	}

	topic := firstNonEmpty(req.Type, req.Topic, c.Query("type"), c.Query("topic"))
	if topic != "" && topic != "payment" {
		return c.SendString("ok")
	}

	paymentID := firstNonEmpty(string(req.Data.ID), c.Query("data.id"), c.Query("id"), string(req.ID))
	if paymentID == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing payment id")
	}

	payment, err := h.gateway.GetPayment(c.UserContext(), paymentID)
	if err != nil {
		log.Printf("[Payment] fetch payment %s failed: %v", paymentID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("error")
	}

	orderID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		log.Printf("[Payment] payment %s has no order reference (%q), ignoring", payment.ID, payment.ExternalReference)
		return c.SendString("ok")
	}

	order, err := h.orders.FindByID(c.UserContext(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Payment] payment %s references unknown order %s", payment.ID, orderID)
		return c.SendString("ok")
	}
	if err != nil {
		log.Printf("[Payment] load order %s failed: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("error")
	}

	status := models.PaymentStatusFromGateway(payment.Status)
	if status == models.PaymentPaid && payment.Amount+amountTolerance < order.Total {
		log.Printf("[Payment] payment %s for order %s covers %.2f of %.2f, order stays %s",
			payment.ID, orderID, payment.Amount, order.Total, order.PaymentStatus)
		return c.SendString("ok")
	}

	applied, err := h.orders.UpdatePayment(c.UserContext(), orderID, status, payment.ID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Payment] payment %s references unknown order %s", payment.ID, orderID)
		return c.SendString("ok")
	}
	if err != nil {
		log.Printf("[Payment] update order %s failed: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("error")
	}
	if !applied {
		log.Printf("[Payment] order %s is already %s, payment %s (%s) ignored", orderID, order.PaymentStatus, payment.ID, payment.Status)
		return c.SendString("ok")
	}
	log.Printf("[Payment] order %s payment %s is %s (%s)", orderID, payment.ID, status, payment.Status)

	if status == models.PaymentPaid {
		order.PaymentStatus = status
		order.PaymentID = payment.ID
		h.effects.OrderPaid(*order, payment.ID, payment.Amount)
	}

	return c.SendString("ok")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
