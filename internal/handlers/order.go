package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

// EmailGate checks verification tokens before an order is accepted. When
// Required is false, orders are accepted without one.
type EmailGate struct {
	Required bool
	Secret   string
}

func (g EmailGate) check(token, email string) error {
	if !g.Required {
		return nil
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "email not verified")
	}
	verified, err := utils.ParseToken(g.Secret, token, utils.ScopeEmailVerification)
	if err != nil || verified != strings.ToLower(strings.TrimSpace(email)) {
		return fiber.NewError(fiber.StatusUnauthorized, "email not verified")
	}
	return nil
}

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders   OrderStore
	mailer   Mailer
	effects  *OrderEffects
	gate     EmailGate
	validate *validatorv10.Validate
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders OrderStore, mailer Mailer, effects *OrderEffects, gate EmailGate, validate *validatorv10.Validate) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		mailer:   mailer,
		effects:  effects,
		gate:     gate,
		validate: validate,
	}
}

// SaveOrder persists an order placed by the storefront.
func (h *OrderHandler) SaveOrder(c *fiber.Ctx) error {
	var req validation.SaveOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing data to save the order"); err != nil {
		return err
	}

	if err := h.gate.check(req.VerificationToken, req.Email); err != nil {
		return err
	}

	order, err := buildOrder(orderInput{
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		Region:        req.Region,
		Total:         req.Total,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Cart,
	})
	if err != nil {
		return err
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentPaid
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = models.MethodDebit
	}

	if err := h.orders.Create(c.UserContext(), order); err != nil {
		return err
	}
	log.Printf("[Order] saved order %s for %s", order.ID, order.Email)

	h.effects.OrderCreated(*order)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// TrackOrder returns an order and its lines by tracking token.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token")
	}

	order, err := h.orders.FindByTrackingToken(c.UserContext(), token)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}
	if err != nil {
		return err
	}

	items := make([]fiber.Map, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, fiber.Map{
			"id":       item.ID,
			"name":     item.Name,
			"quantity": item.Quantity,
			"price":    item.UnitPrice,
			"subtotal": item.Subtotal,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order": fiber.Map{
			"id":             order.ID,
			"email":          order.Email,
			"total":          order.Total,
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"created_at":     order.CreatedAt,
		},
		"items": items,
	})
}

// SendConfirmation emails the order confirmation on demand.
func (h *OrderHandler) SendConfirmation(c *fiber.Ctx) error {
	var req validation.ConfirmationRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing data to send the email"); err != nil {
		return err
	}

	err := h.mailer.SendOrderConfirmation(c.UserContext(), services.OrderConfirmation{
		To:          req.Email,
		OrderID:     req.OrderID,
		Total:       strconv.FormatFloat(req.Total, 'f', -1, 64),
		Address:     req.Address,
		City:        req.City,
		Region:      req.Region,
		TrackingURL: h.effects.TrackingURL(req.TrackingToken),
	})
	if err != nil {
		log.Printf("[Mail] confirmation for order %s failed: %v", req.OrderID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not send the email")
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListOrders returns orders newest first for the admin panel.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	status := c.Query("status")
	if status != "" && !models.IsKnownStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	orders, total, err := h.orders.List(c.UserContext(), store.OrderFilter{
		Status: status,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"orders":     orders,
		"pagination": pg.Meta(total),
	})
}

// UpdateStatus moves an order through its fulfillment statuses.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing data to update the order"); err != nil {
		return err
	}
	if !models.IsKnownStatus(req.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	prev, err := h.orders.UpdateStatus(c.UserContext(), id, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case err != nil:
		return err
	}

	if prev != req.Status {
		admin, _ := middleware.CurrentAdmin(c)
		log.Printf("[Order] order %s moved from %s to %s by %s", id, prev, req.Status, admin)
		h.effects.StatusChanged(id.String(), prev, req.Status)
	}

	return c.JSON(fiber.Map{"success": true})
}

type orderInput struct {
	Email         string
	Phone         string
	Address       string
	City          string
	Region        string
	Total         float64
	PaymentStatus string
	PaymentMethod string
	Items         []validation.CartItem
}

// buildOrder turns cart lines into a pending order with a fresh tracking
// token. A zero total is computed from the lines.
func buildOrder(in orderInput) (*models.Order, error) {
	token, err := utils.NewTrackingToken()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Email:         strings.TrimSpace(in.Email),
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		Region:        in.Region,
		Status:        models.StatusPending,
		PaymentStatus: in.PaymentStatus,
		PaymentMethod: in.PaymentMethod,
		TrackingToken: token,
	}

	for _, line := range in.Items {
		item := models.OrderItem{
			Name:      line.Name,
			UnitPrice: line.Price,
			Quantity:  line.Quantity,
			Subtotal:  line.Price * float64(line.Quantity),
		}
		if line.ProductID != "" {
			if id, err := uuid.Parse(line.ProductID); err == nil {
				item.ProductID = &id
			}
		}
		order.Items = append(order.Items, item)
	}

	order.Total = in.Total
	if order.Total == 0 {
		order.RecalculateTotal()
	}
	return order, nil
}
