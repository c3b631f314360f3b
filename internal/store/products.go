package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

// ProductStore persists the product catalog.
type ProductStore struct {
	db *gorm.DB
}

// NewProductStore creates a new ProductStore.
func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns every product in creation order, without image blobs.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).
		Omit("image").
		Order("created_at asc").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Get loads one product, image included.
func (s *ProductStore) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// Create inserts a product.
func (s *ProductStore) Create(ctx context.Context, product *models.Product) error {
	return s.db.WithContext(ctx).Create(product).Error
}

// Update overwrites the editable columns of a product. The image is only
// replaced when the caller supplies a new one.
func (s *ProductStore) Update(ctx context.Context, product *models.Product) error {
	columns := []string{"name", "price", "stock", "description"}
	if len(product.Image) > 0 {
		columns = append(columns, "image", "image_type")
	}

	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select(columns).
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
