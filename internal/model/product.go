package model

import "github.com/google/uuid"

type Product struct {
	BaseModel
	SKU        string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required,max=50"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	PriceCents int64      `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	Stock      int        `gorm:"not null;default:0" json:"stock" validate:"gte=0"`
	Unit       string     `gorm:"type:varchar(20)" json:"unit"`
	ImageURL   *string    `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category   *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty" validate:"-"`
}

// ProductPatch carries a partial product update; nil fields are left untouched.
type ProductPatch struct {
	SKU        *string    `json:"sku" validate:"omitempty,min=1,max=50"`
	Name       *string    `json:"name" validate:"omitempty,min=1,max=255"`
	PriceCents *int64     `json:"price_cents" validate:"omitempty,gte=0"`
	Stock      *int       `json:"stock" validate:"omitempty,gte=0"`
	Unit       *string    `json:"unit"`
	ImageURL   *string    `json:"image_url"`
	CategoryID *uuid.UUID `json:"category_id"`
	// ClearCategory detaches the product from its category.
	ClearCategory bool `json:"clear_category"`
}

// Changes maps the present fields to their column names.
func (p ProductPatch) Changes() map[string]any {
	changes := map[string]any{}
	if p.SKU != nil {
		changes["sku"] = *p.SKU
	}
	if p.Name != nil {
		changes["name"] = *p.Name
	}
	if p.PriceCents != nil {
		changes["price_cents"] = *p.PriceCents
	}
	if p.Stock != nil {
		changes["stock"] = *p.Stock
	}
	if p.Unit != nil {
		changes["unit"] = *p.Unit
	}
	if p.ImageURL != nil {
		changes["image_url"] = *p.ImageURL
	}
	if p.ClearCategory {
		changes["category_id"] = nil
	} else if p.CategoryID != nil {
		changes["category_id"] = *p.CategoryID
	}
	return changes
}
