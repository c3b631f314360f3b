package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/store"
)

// OrderStore is the order persistence the handlers need.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByTrackingToken(ctx context.Context, token string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (string, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, paymentStatus, paymentID string) (bool, error)
	SetPreference(ctx context.Context, id uuid.UUID, preferenceID string) error
}

// ProductStore is the catalog persistence the handlers need.
type ProductStore interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CartStore persists server-side carts. Update applies fn atomically with
// respect to other updates of the same cart.
type CartStore interface {
	Create(ctx context.Context) (*cart.Cart, error)
	Get(ctx context.Context, id string) (*cart.Cart, error)
	Update(ctx context.Context, id string, fn func(*cart.Cart) error) (*cart.Cart, error)
	Delete(ctx context.Context, id string) error
}

// PaymentGateway creates hosted checkouts and looks up payments.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, in services.PreferenceInput) (*services.Preference, error)
	GetPayment(ctx context.Context, id string) (*services.Payment, error)
}

// Mailer sends the storefront's transactional email.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendOrderConfirmation(ctx context.Context, c services.OrderConfirmation) error
}

// Notifier alerts the shop admins.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, order services.OrderNotification) error
	NotifyPaymentSuccess(ctx context.Context, payment services.PaymentSuccessNotification) error
}

// CodeVerifier issues and checks email verification codes.
type CodeVerifier interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
}
