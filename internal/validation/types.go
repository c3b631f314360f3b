package validation

// PreferenceItem is one cart line sent to create a payment preference.
// Missing or invalid values are normalized rather than rejected.
type PreferenceItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// PreferenceRequest is the payload for POST /api/payments/preference.
// Items are required unless ExternalReference names a stored order.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	PayerEmail        string           `json:"payer_email" validate:"omitempty,email"`
}

// CartItem is a line of the browser cart.
type CartItem struct {
	ProductID string  `json:"product_id" validate:"omitempty,uuid"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"min=1"`
}

// SaveOrderRequest is the payload for POST /api/orders.
type SaveOrderRequest struct {
	Email             string     `json:"email" validate:"required,email"`
	Phone             string     `json:"phone"`
	Address           string     `json:"address"`
	City              string     `json:"city"`
	Region            string     `json:"region"`
	Total             float64    `json:"total" validate:"gte=0"`
	Cart              []CartItem `json:"cart" validate:"required,min=1,dive"`
	PaymentStatus     string     `json:"payment_status" validate:"omitempty,oneof=pending paid rejected refunded"`
	PaymentMethod     string     `json:"payment_method" validate:"omitempty,oneof=debit credit mercadopago transfer cash"`
	VerificationToken string     `json:"verification_token"`
}

// SendCodeRequest is the payload for POST /api/verification/send.
type SendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyCodeRequest is the payload for POST /api/verification/verify.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// ConfirmationRequest is the payload for POST /api/orders/confirmation.
type ConfirmationRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	OrderID       string  `json:"order_id" validate:"required"`
	Total         float64 `json:"total"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	Region        string  `json:"region"`
	TrackingToken string  `json:"tracking_token"`
}

// CheckoutRequest is the payload for POST /api/checkout.
type CheckoutRequest struct {
	Email             string     `json:"email" validate:"required,email"`
	Phone             string     `json:"phone"`
	Address           string     `json:"address" validate:"required"`
	City              string     `json:"city" validate:"required"`
	Region            string     `json:"region" validate:"required"`
	PaymentMethod     string     `json:"payment_method" validate:"required,oneof=debit credit mercadopago transfer cash"`
	VerificationToken string     `json:"verification_token"`
	CartID            string     `json:"cart_id"`
	Items             []CartItem `json:"items" validate:"omitempty,dive"`
}

// LoginRequest is the payload for POST /api/admin/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateStatusRequest is the payload for PUT /api/admin/orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ProductRequest is the JSON or form payload for admin product writes.
type ProductRequest struct {
	Name        string  `json:"name" form:"name" validate:"required"`
	Price       float64 `json:"price" form:"price" validate:"gte=0"`
	Stock       int     `json:"stock" form:"stock" validate:"gte=0"`
	Description string  `json:"description" form:"description"`
}

// AddCartItemRequest is the payload for POST /api/cart/:id/items.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// SetCartQuantityRequest is the payload for PATCH /api/cart/:id/items/:productId.
type SetCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}
