package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RefundReason string

const (
	ReasonCustomerRequest RefundReason = "customer-request"
	ReasonDamaged         RefundReason = "damaged"
	ReasonDefective       RefundReason = "defective"
	ReasonWrongItem       RefundReason = "wrong-item"
	ReasonExpired         RefundReason = "expired"
	ReasonOther           RefundReason = "other"
)

func (r RefundReason) IsValid() bool {
	switch r {
	case ReasonCustomerRequest, ReasonDamaged, ReasonDefective, ReasonWrongItem, ReasonExpired, ReasonOther:
		return true
	}
	return false
}

const RefundStatusCompleted = "completed"

type Refund struct {
	BaseModel
	Number          string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"number"`
	TransactionID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"transaction_id"`
	TotalCents      int64      `gorm:"not null" json:"total_cents"`
	Status          string     `gorm:"type:varchar(20);not null" json:"status"`
	ProcessedByID   *uuid.UUID `gorm:"type:uuid" json:"processed_by_id,omitempty"`
	ProcessedByName string     `gorm:"type:varchar(255)" json:"processed_by"`
	CustomerName    string     `gorm:"type:varchar(255)" json:"customer_name"`

	Items []RefundItem `gorm:"foreignKey:RefundID" json:"items"`
}

type RefundItem struct {
	ID                uuid.UUID    `gorm:"type:uuid;primary_key;" json:"id"`
	RefundID          uuid.UUID    `gorm:"type:uuid;not null;index" json:"refund_id"`
	TransactionItemID uuid.UUID    `gorm:"type:uuid;not null" json:"transaction_item_id"`
	ProductID         *uuid.UUID   `gorm:"type:uuid" json:"product_id,omitempty"`
	Name              string       `gorm:"type:varchar(255);not null" json:"name"`
	Quantity          int          `gorm:"not null" json:"quantity"`
	UnitPriceCents    int64        `gorm:"not null" json:"unit_price_cents"`
	RefundCents       int64        `gorm:"not null" json:"refund_cents"`
	Reason            RefundReason `gorm:"type:varchar(30);not null" json:"reason"`
	CreatedAt         time.Time    `json:"created_at"`
}

func (i *RefundItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
