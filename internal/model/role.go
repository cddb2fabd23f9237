package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // ADMIN, CASHIER
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleAdmin   = "ADMIN"
	RoleCashier = "CASHIER"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Full back-office access: catalog, customers, users, refunds",
	},
	{
		Code:        RoleCashier,
		Name:        "Cashier",
		Description: "Point-of-sale access: checkout, invoices, customer lookup",
	},
}

// CashierPrivileges is the subset granted to the CASHIER role on seed.
var CashierPrivileges = []string{
	PrivProductView,
	PrivCategoryView,
	PrivCustomerView,
	PrivCustomerCreate,
	PrivTransactionView,
	PrivTransactionCreate,
	PrivDashboardView,
}
