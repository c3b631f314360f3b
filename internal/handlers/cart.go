package handlers

import (
	"errors"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/validation"
)

// CartHandler manages server-side carts. Every route answers 503 when no
// cart storage is configured.
type CartHandler struct {
	carts    CartStore
	products ProductStore
	validate *validatorv10.Validate
}

// NewCartHandler constructs CartHandler. carts may be nil.
func NewCartHandler(carts CartStore, products ProductStore, validate *validatorv10.Validate) *CartHandler {
	return &CartHandler{carts: carts, products: products, validate: validate}
}

// RequireStore rejects cart requests when carts are disabled.
func (h *CartHandler) RequireStore(c *fiber.Ctx) error {
	if h.carts == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "cart storage unavailable")
	}
	return c.Next()
}

// CreateCart starts an empty cart.
func (h *CartHandler) CreateCart(c *fiber.Ctx) error {
	crt, err := h.carts.Create(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cartResponse(crt))
}

// GetCart returns a cart with its totals.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	crt, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(crt))
}

// AddItem adds a catalog product to the cart.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req validation.AddCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing product"); err != nil {
		return err
	}

	product, err := h.products.Get(c.UserContext(), uuid.MustParse(req.ProductID))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}
	if err != nil {
		return err
	}

	line := cart.Line{
		ProductID: product.ID.String(),
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  req.Quantity,
	}
	if product.HasImage {
		line.ImageURL = "/api/products/" + product.ID.String() + "/image"
	}

	return h.update(c, func(crt *cart.Cart) error {
		crt.Add(line)
		return nil
	})
}

// SetQuantity overwrites a line quantity; below one removes the line.
func (h *CartHandler) SetQuantity(c *fiber.Ctx) error {
	var req validation.SetCartQuantityRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing quantity"); err != nil {
		return err
	}

	productID := c.Params("productId")
	return h.update(c, func(crt *cart.Cart) error {
		if !crt.SetQuantity(productID, req.Quantity) {
			return errItemNotInCart
		}
		return nil
	})
}

// RemoveItem drops a product from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID := c.Params("productId")
	return h.update(c, func(crt *cart.Cart) error {
		if !crt.Remove(productID) {
			return errItemNotInCart
		}
		return nil
	})
}

// DeleteCart discards the cart.
func (h *CartHandler) DeleteCart(c *fiber.Ctx) error {
	if err := h.carts.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

var errItemNotInCart = fiber.NewError(fiber.StatusNotFound, "item not in cart")

// update applies fn to the cart named in the path and renders the result.
func (h *CartHandler) update(c *fiber.Ctx, fn func(*cart.Cart) error) error {
	crt, err := h.carts.Update(c.UserContext(), c.Params("id"), fn)
	if errors.Is(err, cart.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "cart not found")
	}
	if errors.Is(err, cart.ErrConflict) {
		return fiber.NewError(fiber.StatusConflict, "cart is being updated, try again")
	}
	if err != nil {
		return err
	}
	return c.JSON(cartResponse(crt))
}

func (h *CartHandler) load(c *fiber.Ctx) (*cart.Cart, error) {
	crt, err := h.carts.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, cart.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "cart not found")
	}
	return crt, err
}

func cartResponse(crt *cart.Cart) fiber.Map {
	lines := crt.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	return fiber.Map{
		"success":    true,
		"cart_id":    crt.ID,
		"lines":      lines,
		"total":      crt.Total(),
		"count":      crt.Count(),
		"updated_at": crt.UpdatedAt,
	}
}
