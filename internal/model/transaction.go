package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TxStatusCompleted         TransactionStatus = "completed"
	TxStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TxStatusRefunded          TransactionStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentDebit PaymentMethod = "debit"
	PaymentQRIS  PaymentMethod = "qris"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentQRIS:
		return true
	}
	return false
}

// Transaction is a completed sale. Totals are snapshotted at checkout and only
// change through refunds; Version guards concurrent refunds.
type Transaction struct {
	BaseModel
	SubtotalCents int64             `gorm:"not null" json:"subtotal_cents"`
	TaxCents      int64             `gorm:"not null" json:"tax_cents"`
	TotalCents    int64             `gorm:"not null" json:"total_cents"`
	Status        TransactionStatus `gorm:"type:varchar(20);not null;default:completed;index" json:"status"`
	Version       int               `gorm:"not null;default:1" json:"version"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20)" json:"payment_method"`
	TenderedCents int64         `json:"tendered_cents"`
	ChangeCents   int64         `json:"change_cents"`
	Note          string        `json:"note,omitempty"`

	CashierID    *uuid.UUID `gorm:"type:uuid;index" json:"cashier_id,omitempty"`
	Cashier      *User      `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	CustomerID   *uuid.UUID `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	CustomerName string     `gorm:"type:varchar(255)" json:"customer_name"`

	Items []TransactionItem `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
}

// TransactionItem snapshots name and price at sale time. ProductID is kept only
// to restore stock on refund; it is not a live catalog reference.
type TransactionItem struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	TransactionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     *uuid.UUID `gorm:"type:uuid;index" json:"product_id,omitempty"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	SKU           string     `gorm:"type:varchar(50)" json:"sku"`
	Quantity      int        `gorm:"not null" json:"quantity"`
	PriceCents    int64      `gorm:"not null" json:"price_cents"`
	SubtotalCents int64      `gorm:"not null" json:"subtotal_cents"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (i *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
