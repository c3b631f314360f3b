package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// A 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, envOptions{adminPwd: "s3cret"})

	status, body := env.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@shop.cl"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing credentials", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@shop.cl", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "ADMIN@shop.cl", "password": "s3cret"})
	require.Equal(t, http.StatusOK, status)
	token := body["token"].(string)

	email, err := utils.ParseToken(testSecret, token, utils.ScopeAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin@shop.cl", email)

	status, _ = env.do(t, http.MethodGet, "/api/admin/stats", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogin_NotConfigured(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	status, _ := env.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@shop.cl", "password": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@shop.cl", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutes_RejectVerificationTokens(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	token, err := utils.GenerateToken(testSecret, "admin@shop.cl", utils.ScopeEmailVerification, time.Hour)
	require.NoError(t, err)

	status, _ := env.do(t, http.MethodGet, "/api/admin/customers", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProducts_JSONLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	auth := adminToken(t)

	status, _ := env.do(t, http.MethodPost, "/api/admin/products", map[string]any{"name": "Taza", "price": 2500})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, http.MethodPost, "/api/admin/products", map[string]any{"price": 2500}, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing product data", body["error"])

	status, body = env.do(t, http.MethodPost, "/api/admin/products", map[string]any{"name": " Taza ", "price": 2500, "stock": 3}, "Authorization", auth)
	require.Equal(t, http.StatusCreated, status)
	product := body["product"].(map[string]any)
	id := product["id"].(string)
	assert.Equal(t, "Taza", product["name"])
	assert.Equal(t, false, product["has_image"])

	status, body = env.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["products"], 1)

	status, _ = env.do(t, http.MethodGet, "/api/products/"+id+"/image", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPut, "/api/admin/products/"+id, map[string]any{"name": "Taza grande", "price": 3000, "stock": 0}, "Authorization", auth)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodGet, "/api/products/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	product = body["product"].(map[string]any)
	assert.Equal(t, "Taza grande", product["name"])
	assert.InDelta(t, 3000, product["price"], 0.001)

	status, body = env.do(t, http.MethodGet, "/api/admin/stats", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total_products"])
	assert.EqualValues(t, 1, data["out_of_stock"])

	status, _ = env.do(t, http.MethodDelete, "/api/admin/products/"+id, nil, "Authorization", auth)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodGet, "/api/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProducts_MultipartImage(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Polera"))
	require.NoError(t, w.WriteField("price", "9990"))
	require.NoError(t, w.WriteField("stock", "4"))
	part, err := w.CreateFormFile("image", "pixel.png")
	require.NoError(t, err)
	_, err = part.Write(pngPixel)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", adminToken(t))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	products, err := env.products.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].HasImage)
	assert.Empty(t, products[0].Image)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/products/"+products[0].ID.String()+"/image", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, raw)
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	auth := adminToken(t)
	ctx := context.Background()

	for _, email := range []string{"ana@gmail.com", "ana@gmail.com", "luis@gmail.com"} {
		order, err := buildOrder(orderInput{
			Email:         email,
			Total:         1000,
			PaymentStatus: models.PaymentPaid,
			PaymentMethod: models.MethodDebit,
		})
		require.NoError(t, err)
		require.NoError(t, env.orders.Create(ctx, order))
	}

	status, body := env.do(t, http.MethodGet, "/api/admin/stats", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 3, data["total_orders"])
	assert.InDelta(t, 3000, data["total_revenue"], 0.001)
	assert.InDelta(t, 3000, data["today_revenue"], 0.001)

	status, body = env.do(t, http.MethodGet, "/api/admin/customers", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, status)
	customers := body["customers"].([]any)
	require.Len(t, customers, 2)
	assert.Equal(t, "ana@gmail.com", customers[0].(map[string]any)["email"])

	status, body = env.do(t, http.MethodGet, "/api/admin/orders/recent", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 3)
}

func TestWrongMethod(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	status, _ := env.do(t, http.MethodGet, "/api/orders", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}
