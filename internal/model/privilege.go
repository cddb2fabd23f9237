package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "product:create"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Create Product"
}

const (
	PrivUserView            = "user:view"
	PrivUserCreate          = "user:create"
	PrivUserUpdate          = "user:update"
	PrivUserDelete          = "user:delete"
	PrivUserUpdatePrivilege = "user:update_privilege"

	PrivProductView   = "product:view"
	PrivProductCreate = "product:create"
	PrivProductUpdate = "product:update"
	PrivProductDelete = "product:delete"

	PrivCategoryView   = "category:view"
	PrivCategoryManage = "category:manage"

	PrivCustomerView   = "customer:view"
	PrivCustomerCreate = "customer:create"
	PrivCustomerUpdate = "customer:update"
	PrivCustomerDelete = "customer:delete"
	PrivLoyaltyAdjust  = "customer:adjust_points"

	PrivTransactionView   = "transaction:view"
	PrivTransactionCreate = "transaction:create"
	PrivRefundCreate      = "refund:create"

	PrivDashboardView = "dashboard:view"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
	{Code: PrivUserUpdatePrivilege, Name: "Update User Privileges"},
	// Catalog
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivCategoryView, Name: "View Category"},
	{Code: PrivCategoryManage, Name: "Manage Category"},
	// Customers & loyalty
	{Code: PrivCustomerView, Name: "View Customer"},
	{Code: PrivCustomerCreate, Name: "Create Customer"},
	{Code: PrivCustomerUpdate, Name: "Update Customer"},
	{Code: PrivCustomerDelete, Name: "Delete Customer"},
	{Code: PrivLoyaltyAdjust, Name: "Adjust Loyalty Points"},
	// Sales
	{Code: PrivTransactionView, Name: "View Transaction"},
	{Code: PrivTransactionCreate, Name: "Create Transaction"},
	{Code: PrivRefundCreate, Name: "Process Refund"},
	// Dashboard
	{Code: PrivDashboardView, Name: "View Dashboard"},
}
