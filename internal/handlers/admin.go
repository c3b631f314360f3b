package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/utils"
)

// OrderReports is the reporting side of the order store.
type OrderReports interface {
	Stats(ctx context.Context, since time.Time) (*store.OrderStats, error)
	Customers(ctx context.Context, limit, offset int) ([]store.CustomerSummary, int64, error)
	List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error)
}

// AdminHandler manages admin-only reporting endpoints.
type AdminHandler struct {
	reports  OrderReports
	products ProductStore
	now      func() time.Time
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(reports OrderReports, products ProductStore) *AdminHandler {
	return &AdminHandler{reports: reports, products: products, now: time.Now}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	now := h.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := h.reports.Stats(c.UserContext(), startOfDay)
	if err != nil {
		return err
	}

	products, err := h.products.List(c.UserContext())
	if err != nil {
		return err
	}

	outOfStock := 0
	for _, p := range products {
		if p.Stock <= 0 {
			outOfStock++
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":     stats.TotalOrders,
			"total_products":   len(products),
			"out_of_stock":     outOfStock,
			"total_revenue":    stats.TotalRevenue,
			"today_revenue":    stats.RevenueSince,
			"orders_by_status": stats.OrdersByStatus,
		},
	})
}

// ListCustomers returns shoppers grouped by email with their spend.
func (h *AdminHandler) ListCustomers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	customers, total, err := h.reports.Customers(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"customers":  customers,
		"pagination": pg.Meta(total),
	})
}

// RecentOrders returns the five newest orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	orders, _, err := h.reports.List(c.UserContext(), store.OrderFilter{Limit: 5})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}
