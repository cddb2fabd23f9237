package handler

import (
	"go-pos-admin/internal/middleware"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/service"
	"go-pos-admin/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups every HTTP handler served under /api/v1.
type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Role        *RoleHandler
	Dashboard   *DashboardHandler
	Product     *ProductHandler
	Customer    *CustomerHandler
	Transaction *TransactionHandler
	Health      *HealthHandler
}

// RegisterRoutes mounts the REST API on app.
func RegisterRoutes(app *fiber.App, h Handlers, authService service.AuthService, log *logger.Logger) {
	priv := middleware.RequirePrivilege

	if h.Health != nil {
		app.Get("/healthz", h.Health.Health)
	}

	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", h.Auth.Register)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/validate-token", h.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	requireAuth := middleware.RequireAuth(authService, log)
	auth.Post("/heartbeat", requireAuth, h.Auth.Heartbeat)
	auth.Get("/me", requireAuth, h.Auth.Profile)
	auth.Patch("/me", requireAuth, h.Auth.UpdateProfile)

	protected := api.Group("", requireAuth)

	// Dashboard
	protected.Get("/dashboard/stats", priv(model.PrivDashboardView), h.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/daily-sales", priv(model.PrivDashboardView), h.Dashboard.GetDailySales)

	// Catalog
	protected.Get("/products", priv(model.PrivProductView), h.Product.GetProducts)
	protected.Get("/products/:id", priv(model.PrivProductView), h.Product.GetProduct)
	protected.Post("/products", priv(model.PrivProductCreate), h.Product.CreateProduct)
	protected.Patch("/products/:id", priv(model.PrivProductUpdate), h.Product.UpdateProduct)
	protected.Delete("/products/:id", priv(model.PrivProductDelete), h.Product.DeleteProduct)

	protected.Get("/categories", priv(model.PrivCategoryView), h.Product.GetCategories)
	protected.Post("/categories", priv(model.PrivCategoryManage), h.Product.CreateCategory)
	protected.Put("/categories/:id", priv(model.PrivCategoryManage), h.Product.RenameCategory)
	protected.Delete("/categories/:id", priv(model.PrivCategoryManage), h.Product.DeleteCategory)

	// Customers
	protected.Get("/customers", priv(model.PrivCustomerView), h.Customer.GetCustomers)
	protected.Get("/customers/:id", priv(model.PrivCustomerView), h.Customer.GetCustomer)
	protected.Post("/customers", priv(model.PrivCustomerCreate), h.Customer.CreateCustomer)
	protected.Patch("/customers/:id", priv(model.PrivCustomerUpdate), h.Customer.UpdateCustomer)
	protected.Put("/customers/:id/points", priv(model.PrivLoyaltyAdjust), h.Customer.UpdatePoints)
	protected.Delete("/customers/:id", priv(model.PrivCustomerDelete), h.Customer.DeleteCustomer)

	// Sales
	protected.Get("/transactions", priv(model.PrivTransactionView), h.Transaction.GetTransactions)
	protected.Get("/transactions/:id", priv(model.PrivTransactionView), h.Transaction.GetTransaction)
	protected.Get("/transactions/:id/invoice", priv(model.PrivTransactionView), h.Transaction.GetInvoice)
	protected.Post("/transactions", priv(model.PrivTransactionCreate), h.Transaction.Checkout)
	protected.Post("/transactions/:id/refunds", priv(model.PrivRefundCreate), h.Transaction.Refund)
	protected.Get("/refunds", middleware.RequireAnyPrivilege(model.PrivTransactionView, model.PrivRefundCreate), h.Transaction.GetRefunds)

	// User management
	protected.Get("/users", priv(model.PrivUserView), h.User.GetUsers)
	protected.Get("/users/:id", priv(model.PrivUserView), h.User.GetUser)
	protected.Post("/users", priv(model.PrivUserCreate), h.User.CreateUser)
	protected.Put("/users/:id", priv(model.PrivUserUpdate), h.User.UpdateUser)
	protected.Delete("/users/:id", priv(model.PrivUserDelete), h.User.DeleteUser)
	protected.Put("/users/:id/privileges", priv(model.PrivUserUpdatePrivilege), h.User.UpdateUserPrivileges)

	protected.Get("/roles", h.Role.GetRoles)
	protected.Get("/privileges", h.Role.GetPrivileges)
}
