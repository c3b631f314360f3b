package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/validation"
)

const maxImageBytes = 5 << 20

// ProductHandler manages the product catalog.
type ProductHandler struct {
	products ProductStore
	validate *validatorv10.Validate
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(products ProductStore, validate *validatorv10.Validate) *ProductHandler {
	return &ProductHandler{products: products, validate: validate}
}

// ListProducts returns the catalog in creation order.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.products.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "products": products})
}

// GetProduct returns a single product.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "product": product})
}

// GetImage streams the stored product image.
func (h *ProductHandler) GetImage(c *fiber.Ctx) error {
	product, err := h.find(c)
	if err != nil {
		return err
	}
	if len(product.Image) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "image not found")
	}

	c.Set(fiber.HeaderContentType, product.ImageType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(product.Image)
}

// CreateProduct adds a product. Accepts JSON or a multipart form with an
// optional "image" file.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing product data"); err != nil {
		return err
	}

	product := models.Product{
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
	}
	if err := readImage(c, &product); err != nil {
		return err
	}

	if err := h.products.Create(c.UserContext(), &product); err != nil {
		return err
	}
	product.HasImage = product.ImageType != ""

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "product": product})
}

// UpdateProduct overwrites a product. The image is kept unless a new one is
// uploaded.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate, "missing product data"); err != nil {
		return err
	}

	product := models.Product{
		BaseModel:   models.BaseModel{ID: id},
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
	}
	if err := readImage(c, &product); err != nil {
		return err
	}

	if err := h.products.Update(c.UserContext(), &product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	updated, err := h.products.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "product": updated})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.products.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func (h *ProductHandler) find(c *fiber.Ctx) (*models.Product, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	product, err := h.products.Get(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// readImage loads the optional "image" form file into product.
func readImage(c *fiber.Ctx, product *models.Product) error {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil
	}

	file, err := c.FormFile("image")
	if err != nil {
		// no file part
		return nil
	}
	if file.Size > maxImageBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return err
	}
	if len(data) > maxImageBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "image too large")
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return fiber.NewError(fiber.StatusBadRequest, "file is not an image")
	}

	product.Image = data
	product.ImageType = contentType
	return nil
}
