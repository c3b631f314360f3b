package models

import "gorm.io/gorm"

// Product is a catalog entry. The image is stored inline as a blob.
type Product struct {
	BaseModel
	Name        string  `gorm:"not null" json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Description string  `json:"description"`
	Image       []byte  `json:"-"`
	ImageType   string  `json:"-"`
	HasImage    bool    `gorm:"-" json:"has_image"`
}

// AfterFind derives HasImage from the stored content type, so listings
// can skip loading the blob itself.
func (p *Product) AfterFind(tx *gorm.DB) error {
	p.HasImage = p.ImageType != ""
	return nil
}
