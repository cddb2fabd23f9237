package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-admin/internal/cache"
	"go-pos-admin/internal/config"
	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/lock"
	"go-pos-admin/internal/middleware"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/service"
	"go-pos-admin/internal/testutil"
	"go-pos-admin/pkg/jwt"
	"go-pos-admin/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiFixture struct {
	app *fiber.App
	db  *gorm.DB
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	ctx := context.Background()

	privRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	userRepo := repository.NewUserRepo(db)
	productRepo := repository.NewProductRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	require.NoError(t, privRepo.SeedDefaults(ctx))
	require.NoError(t, roleRepo.SeedDefaults(ctx))

	log := logger.Nop()
	tokens := jwt.NewManager(config.JWTConfig{Secret: "test", Issuer: "test", ExpirationHours: 1})
	authService := service.NewAuthService(userRepo, roleRepo, tokens, nil, log, time.Hour)
	userService := service.NewUserService(userRepo, privRepo, roleRepo)
	catalog := service.NewCatalogService(productRepo, repository.NewCategoryRepo(db), cache.New(nil, 0), nil, log, time.Second)
	customers := service.NewCustomerService(db, customerRepo, nil, log, time.Second)
	sales := service.NewSaleService(db, service.SaleDeps{
		Products:     productRepo,
		Customers:    customerRepo,
		Transactions: txRepo,
		Refunds:      repository.NewRefundRepo(db),
		Pricer:       ledger.NewPricer(decimal.RequireFromString("0.11")),
		Locker:       lock.NewLocalLocker(),
		LockTTL:      time.Second,
		Log:          log,
		StoreTimeout: 5 * time.Second,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	RegisterRoutes(app, Handlers{
		Auth:        NewAuthHandler(authService),
		User:        NewUserHandler(userService),
		Role:        NewRoleHandler(userService),
		Dashboard:   NewDashboardHandler(service.NewDashboardService(txRepo, 5, time.Second)),
		Product:     NewProductHandler(catalog),
		Customer:    NewCustomerHandler(customers),
		Transaction: NewTransactionHandler(sales),
		Health: NewHealthHandler(map[string]Pinger{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		}),
	}, authService, log)

	return &apiFixture{app: app, db: db}
}

// seedAdmin creates an ADMIN user holding every privilege.
func (f *apiFixture) seedAdmin(t *testing.T) {
	t.Helper()
	u := testutil.SeedUser(t, f.db, "admin@pos.test", "secret1", model.RoleAdmin)
	var all []model.Privilege
	require.NoError(t, f.db.Find(&all).Error)
	require.NoError(t, f.db.Model(&u).Association("Privileges").Replace(all))
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (f *apiFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func (f *apiFixture) registerCashier(t *testing.T) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/v1/auth/register", "", service.RegisterRequest{
		Email: "kasir@pos.test", Password: "secret1", FullName: "Kasir",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return f.login(t, "kasir@pos.test", "secret1")
}

func TestCheckoutEndpoint(t *testing.T) {
	f := newAPI(t)
	token := f.registerCashier(t)
	a := testutil.SeedProduct(t, f.db, "A", 1500, 10)
	b := testutil.SeedProduct(t, f.db, "B", 3000, 5)

	status, body := f.do(t, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"items": []map[string]any{
			{"product_id": a.ID, "quantity": 2, "price_cents": 1500},
			{"product_id": b.ID, "quantity": 1, "price_cents": 3000},
		},
		"payment_method": "cash",
		"tendered_cents": 10000,
	})
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	require.EqualValues(t, 6000, data["subtotal_cents"])
	require.EqualValues(t, 660, data["tax_cents"])
	require.EqualValues(t, 6660, data["total_cents"])
	require.EqualValues(t, 3340, data["change_cents"])
	require.Equal(t, "Walk-in", data["customer_name"])
}

func TestCheckoutErrorsCarryCodeAndReason(t *testing.T) {
	f := newAPI(t)
	token := f.registerCashier(t)
	a := testutil.SeedProduct(t, f.db, "A", 1500, 1)

	status, body := f.do(t, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"items":          []map[string]any{{"product_id": a.ID, "quantity": 1, "price_cents": 1200}},
		"payment_method": "debit",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "CONFLICT", body["code"])
	require.Equal(t, "PRICE_MISMATCH", body["reason"])
	require.Equal(t, false, body["retryable"])

	status, body = f.do(t, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"items":          []map[string]any{{"product_id": a.ID, "quantity": 2}},
		"payment_method": "debit",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "INSUFFICIENT_STOCK", body["reason"])

	status, body = f.do(t, http.MethodPost, "/api/v1/transactions", token, map[string]any{"items": []any{}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestRefundRequiresPrivilege(t *testing.T) {
	f := newAPI(t)
	f.seedAdmin(t)
	cashier := f.registerCashier(t)
	admin := f.login(t, "admin@pos.test", "secret1")
	a := testutil.SeedProduct(t, f.db, "A", 1500, 10)

	status, body := f.do(t, http.MethodPost, "/api/v1/transactions", cashier, map[string]any{
		"items":          []map[string]any{{"product_id": a.ID, "quantity": 2}},
		"payment_method": "qris",
	})
	require.Equal(t, http.StatusCreated, status, body)
	sale := body["data"].(map[string]any)
	txID := sale["id"].(string)
	itemID := sale["items"].([]any)[0].(map[string]any)["id"].(string)
	refundPath := "/api/v1/transactions/" + txID + "/refunds"
	refundBody := map[string]any{"items": []map[string]any{{"item_id": itemID, "quantity": 1, "reason": "damaged"}}}

	status, body = f.do(t, http.MethodPost, refundPath, cashier, refundBody)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", body["code"])

	status, body = f.do(t, http.MethodPost, refundPath, admin, refundBody)
	require.Equal(t, http.StatusCreated, status, body)
	require.EqualValues(t, 1500, body["data"].(map[string]any)["total_cents"])

	status, body = f.do(t, http.MethodPost, refundPath, admin, map[string]any{"items": []any{}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "EMPTY_SELECTION", body["reason"])

	status, body = f.do(t, http.MethodGet, "/api/v1/transactions/"+txID+"/invoice", admin, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1665, body["grand_total_cents"])
}

func TestAuthFailures(t *testing.T) {
	f := newAPI(t)

	status, body := f.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", body["code"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/products", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "x@pos.test", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, status)

	token := f.registerCashier(t)
	status, body = f.do(t, http.MethodGet, "/api/v1/transactions/not-a-uuid", token, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_ERROR", body["code"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/users", token, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestCustomerPointsNeedLoyaltyPrivilege(t *testing.T) {
	f := newAPI(t)
	f.seedAdmin(t)
	cashier := f.registerCashier(t)
	admin := f.login(t, "admin@pos.test", "secret1")
	c := testutil.SeedCustomer(t, f.db, "Ani")

	// Cashiers may not edit customers at all; the loyalty check is for admins
	// that hold customer:update without customer:adjust_points.
	status, _ := f.do(t, http.MethodPatch, "/api/v1/customers/"+c.ID.String(), cashier, map[string]any{"loyalty_points": 5000})
	require.Equal(t, http.StatusForbidden, status)

	status, body := f.do(t, http.MethodPut, "/api/v1/customers/"+c.ID.String()+"/points", admin, map[string]any{"loyalty_points": 5000})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "GOLD", body["data"].(map[string]any)["tier"])

	status, body = f.do(t, http.MethodGet, "/api/v1/customers/"+c.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, status)
	standing := body["standing"].(map[string]any)
	require.Equal(t, "PLATINUM", standing["next_tier"])
	require.EqualValues(t, 5000, standing["remaining_points"])
}

func TestHealthz(t *testing.T) {
	f := newAPI(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}
