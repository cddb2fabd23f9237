package model

// Tier is a loyalty classification derived from a customer's point balance.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

type Customer struct {
	BaseModel
	Name          string  `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Email         *string `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty" validate:"omitempty,email"`
	Phone         *string `gorm:"type:varchar(30)" json:"phone,omitempty" validate:"omitempty,max=30"`
	LoyaltyPoints int     `gorm:"not null;default:0" json:"loyalty_points"`
	Tier          Tier    `gorm:"type:varchar(10);not null;default:BRONZE;index" json:"tier"`

	Transactions     []Transaction `gorm:"foreignKey:CustomerID" json:"transactions,omitempty"`
	TransactionCount int64         `gorm:"-" json:"transaction_count"`
}

// CustomerPatch is a partial update. Only non-nil fields are applied.
type CustomerPatch struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone" validate:"omitempty,max=30"`
	LoyaltyPoints *int    `json:"loyalty_points" validate:"omitempty,gte=0"`
	Tier          *Tier   `json:"tier" validate:"omitempty,tier"`
}

// Changes maps the contact fields to their column names. Points and tier
// are resolved by the loyalty rules before they reach the store.
func (p CustomerPatch) Changes() map[string]any {
	changes := map[string]any{}
	if p.Name != nil {
		changes["name"] = *p.Name
	}
	if p.Email != nil {
		if *p.Email == "" {
			changes["email"] = nil
		} else {
			changes["email"] = *p.Email
		}
	}
	if p.Phone != nil {
		if *p.Phone == "" {
			changes["phone"] = nil
		} else {
			changes["phone"] = *p.Phone
		}
	}
	return changes
}
