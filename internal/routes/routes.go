package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Admin        *handlers.AdminHandler
	Orders       *handlers.OrderHandler
	Payments     *handlers.PaymentHandler
	Verification *handlers.VerificationHandler
	Products     *handlers.ProductHandler
	Carts        *handlers.CartHandler
	Checkout     *handlers.CheckoutHandler
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, h Handlers, jwtSecret string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Payments
	payments := api.Group("/payments")
	payments.Post("/preference", h.Payments.CreatePreference)
	payments.Post("/webhook", h.Payments.Webhook)

	// Orders
	orders := api.Group("/orders")
	orders.Post("/", h.Orders.SaveOrder)
	orders.Get("/track", h.Orders.TrackOrder)
	orders.Post("/confirmation", h.Orders.SendConfirmation)

	api.Post("/checkout", h.Checkout.Checkout)

	// Email verification
	verification := api.Group("/verification")
	verification.Post("/send", h.Verification.SendCode)
	verification.Post("/verify", h.Verification.VerifyCode)

	// Catalog
	products := api.Group("/products")
	products.Get("/", h.Products.ListProducts)
	products.Get("/:id", h.Products.GetProduct)
	products.Get("/:id/image", h.Products.GetImage)

	// Server cart
	carts := api.Group("/cart", h.Carts.RequireStore)
	carts.Post("/", h.Carts.CreateCart)
	carts.Get("/:id", h.Carts.GetCart)
	carts.Delete("/:id", h.Carts.DeleteCart)
	carts.Post("/:id/items", h.Carts.AddItem)
	carts.Patch("/:id/items/:productId", h.Carts.SetQuantity)
	carts.Delete("/:id/items/:productId", h.Carts.RemoveItem)

	// Admin
	admin := api.Group("/admin")
	admin.Post("/login", h.Auth.Login)

	auth := middleware.AdminAuth(jwtSecret)
	admin.Get("/stats", auth, h.Admin.DashboardStats)
	admin.Get("/customers", auth, h.Admin.ListCustomers)
	admin.Get("/orders/recent", auth, h.Admin.RecentOrders)
	admin.Get("/orders", auth, h.Orders.ListOrders)
	admin.Put("/orders/:id/status", auth, h.Orders.UpdateStatus)
	admin.Post("/products", auth, h.Products.CreateProduct)
	admin.Put("/products/:id", auth, h.Products.UpdateProduct)
	admin.Delete("/products/:id", auth, h.Products.DeleteProduct)
}
