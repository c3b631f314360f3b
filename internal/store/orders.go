package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status string
	Limit  int
	Offset int
}

// OrderStore persists orders and their lines.
type OrderStore struct {
	db *gorm.DB
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create inserts the order together with its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

// FindByTrackingToken loads an order and its items by tracking token.
func (s *OrderStore) FindByTrackingToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		First(&order, "tracking_token = ?", token).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByID loads an order and its items.
func (s *OrderStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// List returns orders newest first along with the total number matching.
func (s *OrderStore) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		query = query.Limit(f.Limit).Offset(f.Offset)
	}

	var orders []models.Order
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus moves an order to a new fulfillment status and returns the
// status it had before. The write is conditional on the status read, so a
// concurrent change surfaces as models.ErrInvalidTransition.
func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (string, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Select("id", "status").First(&order, "id = ?", id).Error; err != nil {
		return "", translate(err)
	}

	if !models.CanTransition(order.Status, status) {
		return order.Status, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, status)
	}
	if order.Status == status {
		return order.Status, nil
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, order.Status).
		Update("status", status)
	if res.Error != nil {
		return order.Status, res.Error
	}
	if res.RowsAffected == 0 {
		return order.Status, fmt.Errorf("%w: order changed concurrently", models.ErrInvalidTransition)
	}
	return order.Status, nil
}

// UpdatePayment records the gateway outcome for an order. A paid order
// only moves on to refunded and a refunded order keeps its status, so a late
// notification for another attempt cannot rewrite it. applied reports whether
// the row changed; for models.PaymentPaid it marks the first confirmation.
func (s *OrderStore) UpdatePayment(ctx context.Context, id uuid.UUID, paymentStatus, paymentID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if paymentStatus == models.PaymentRefunded {
		query = query.Where("payment_status <> ?", models.PaymentRefunded)
	} else {
		query = query.Where("payment_status NOT IN ?", []string{models.PaymentPaid, models.PaymentRefunded})
	}

	updates := map[string]any{"payment_status": paymentStatus}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// SetPreference stores the payment preference created for an order.
func (s *OrderStore) SetPreference(ctx context.Context, id uuid.UUID, preferenceID string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("preference_id", preferenceID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
