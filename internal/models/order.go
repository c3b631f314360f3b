package models

import (
	"github.com/google/uuid"
)

// Order is a customer purchase with its shipping and payment metadata.
type Order struct {
	BaseModel
	Email         string      `gorm:"index;not null" json:"email"`
	Phone         string      `json:"phone"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	Region        string      `json:"region"`
	Total         float64     `json:"total"`
	Status        string      `gorm:"index;default:pending" json:"status"`
	PaymentStatus string      `json:"payment_status"`
	PaymentMethod string      `json:"payment_method"`
	PaymentID     string      `json:"payment_id,omitempty"`
	PreferenceID  string      `json:"preference_id,omitempty"`
	TrackingToken string      `gorm:"uniqueIndex;size:64" json:"tracking_token"`
	Items         []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// OrderItem is a single product and quantity inside an order. Name and
// unit price are copied from the cart so later catalog edits do not
// rewrite history.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Name      string     `json:"name"`
	UnitPrice float64    `json:"price"`
	Quantity  int        `json:"quantity"`
	Subtotal  float64    `json:"subtotal"`
}

// RecalculateTotal sums the line subtotals into Total.
func (o *Order) RecalculateTotal() {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal
	}
	o.Total = total
}
