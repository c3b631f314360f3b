package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/store"
	"github.com/example/storefront/internal/utils"
	"github.com/example/storefront/internal/validation"
)

const testSecret = "test-secret"

type fakeGateway struct {
	pref     *services.Preference
	prefErr  error
	payment  *services.Payment
	payErr   error
	prefs    []services.PreferenceInput
	payments []string
}

func (g *fakeGateway) CreatePreference(_ context.Context, in services.PreferenceInput) (*services.Preference, error) {
	g.prefs = append(g.prefs, in)
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	return g.pref, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*services.Payment, error) {
	g.payments = append(g.payments, id)
	if g.payErr != nil {
		return nil, g.payErr
	}
	return g.payment, nil
}

type fakeMailer struct {
	err           error
	codes         map[string]string
	confirmations []services.OrderConfirmation
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, c services.OrderConfirmation) error {
	if m.err != nil {
		return m.err
	}
	m.confirmations = append(m.confirmations, c)
	return nil
}

type fakeNotifier struct {
	orders   []services.OrderNotification
	payments []services.PaymentSuccessNotification
}

func (n *fakeNotifier) NotifyNewOrder(_ context.Context, order services.OrderNotification) error {
	n.orders = append(n.orders, order)
	return nil
}

func (n *fakeNotifier) NotifyPaymentSuccess(_ context.Context, payment services.PaymentSuccessNotification) error {
	n.payments = append(n.payments, payment)
	return nil
}

type fakeEvents struct {
	types []string
}

func (e *fakeEvents) Publish(_ context.Context, eventType, _ string, _ any) {
	e.types = append(e.types, eventType)
}

type fakeCodes struct {
	issued    map[string]string
	verifyErr error
}

func (f *fakeCodes) Issue(_ context.Context, email string) (string, error) {
	if f.issued == nil {
		f.issued = map[string]string{}
	}
	f.issued[email] = "123456"
	return "123456", nil
}

func (f *fakeCodes) Verify(_ context.Context, _, _ string) error {
	return f.verifyErr
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
	next  int
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string]*cart.Cart{}}
}

func (m *memCarts) Create(_ context.Context) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c := &cart.Cart{ID: fmt.Sprintf("cart-%d", m.next)}
	m.carts[c.ID] = c
	return c, nil
}

func (m *memCarts) Get(_ context.Context, id string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (m *memCarts) Update(_ context.Context, id string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	if err := fn(&cp); err != nil {
		return nil, err
	}
	m.carts[id] = &cp
	return &cp, nil
}

func (m *memCarts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

type testEnv struct {
	app      *fiber.App
	orders   *store.OrderStore
	products *store.ProductStore
	gateway  *fakeGateway
	mailer   *fakeMailer
	notifier *fakeNotifier
	events   *fakeEvents
	codes    *fakeCodes
	carts    *memCarts
}

type envOptions struct {
	gate     EmailGate
	noCarts  bool
	adminPwd string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	db := newTestDB(t)

	env := &testEnv{
		orders:   store.NewOrderStore(db),
		products: store.NewProductStore(db),
		gateway: &fakeGateway{
			pref: &services.Preference{ID: "pref-1", InitPoint: "https://mp.example/checkout/pref-1"},
		},
		mailer:   &fakeMailer{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
		codes:    &fakeCodes{},
	}

	effects := NewOrderEffects(env.mailer, env.notifier, env.events, "CLP", "https://shop.example.com", InlineEffects())

	var carts CartStore
	if !opts.noCarts {
		env.carts = newMemCarts()
		carts = env.carts
	}

	adminHash := ""
	if opts.adminPwd != "" {
		var err error
		adminHash, err = utils.HashPassword(opts.adminPwd)
		require.NoError(t, err)
	}

	validate := validation.New()
	orderHandler := NewOrderHandler(env.orders, env.mailer, effects, opts.gate, validate)
	paymentHandler := NewPaymentHandler(env.gateway, env.orders, effects, validate)
	verificationHandler := NewVerificationHandler(env.codes, env.mailer, func(email string) bool {
		return len(email) > 10 && email[len(email)-10:] == "@gmail.com"
	}, testSecret, time.Hour, validate)
	productHandler := NewProductHandler(env.products, validate)
	cartHandler := NewCartHandler(carts, env.products, validate)
	checkoutHandler := NewCheckoutHandler(env.orders, carts, env.gateway, effects, opts.gate, validate)
	authHandler := NewAuthHandler("admin@shop.cl", adminHash, testSecret, time.Hour, validate)
	adminHandler := NewAdminHandler(env.orders, env.products)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/payments/preference", paymentHandler.CreatePreference)
	app.Post("/api/payments/webhook", paymentHandler.Webhook)
	app.Post("/api/orders", orderHandler.SaveOrder)
	app.Get("/api/orders/track", orderHandler.TrackOrder)
	app.Post("/api/orders/confirmation", orderHandler.SendConfirmation)
	app.Post("/api/checkout", checkoutHandler.Checkout)
	app.Post("/api/verification/send", verificationHandler.SendCode)
	app.Post("/api/verification/verify", verificationHandler.VerifyCode)
	app.Get("/api/products", productHandler.ListProducts)
	app.Get("/api/products/:id", productHandler.GetProduct)
	app.Get("/api/products/:id/image", productHandler.GetImage)

	cartGroup := app.Group("/api/cart", cartHandler.RequireStore)
	cartGroup.Post("/", cartHandler.CreateCart)
	cartGroup.Get("/:id", cartHandler.GetCart)
	cartGroup.Post("/:id/items", cartHandler.AddItem)
	cartGroup.Patch("/:id/items/:productId", cartHandler.SetQuantity)
	cartGroup.Delete("/:id/items/:productId", cartHandler.RemoveItem)
	cartGroup.Delete("/:id", cartHandler.DeleteCart)

	app.Post("/api/admin/login", authHandler.Login)
	auth := middleware.AdminAuth(testSecret)
	app.Get("/api/admin/stats", auth, adminHandler.DashboardStats)
	app.Get("/api/admin/customers", auth, adminHandler.ListCustomers)
	app.Get("/api/admin/orders/recent", auth, adminHandler.RecentOrders)
	app.Get("/api/admin/orders", auth, orderHandler.ListOrders)
	app.Put("/api/admin/orders/:id/status", auth, orderHandler.UpdateStatus)
	app.Post("/api/admin/products", auth, productHandler.CreateProduct)
	app.Put("/api/admin/products/:id", auth, productHandler.UpdateProduct)
	app.Delete("/api/admin/products/:id", auth, productHandler.DeleteProduct)

	env.app = app
	return env
}

// adminToken returns a bearer header value for the admin routes.
func adminToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, "admin@shop.cl", utils.ScopeAdmin, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// do sends body as JSON (when not nil) and decodes a JSON response into a
// map. Non-JSON responses come back under the "raw" key.
func (env *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}
