// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"testing"

	"go-pos-admin/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory sqlite database private to the test.
// A single connection serializes writers the way row locks would in postgres.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pos_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t testing.TB, db *gorm.DB, sku string, priceCents int64, stock int) model.Product {
	t.Helper()
	p := model.Product{SKU: sku, Name: "Product " + sku, PriceCents: priceCents, Stock: stock, Unit: "pcs"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// SeedCustomer inserts a BRONZE customer.
func SeedCustomer(t testing.TB, db *gorm.DB, name string) model.Customer {
	t.Helper()
	c := model.Customer{Name: name, Tier: model.TierBronze}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// SeedUser inserts an active user with the given role code, creating the role if needed.
func SeedUser(t testing.TB, db *gorm.DB, email, password, roleCode string) model.User {
	t.Helper()
	role := model.Role{Code: roleCode, Name: roleCode}
	require.NoError(t, db.Where(model.Role{Code: roleCode}).FirstOrCreate(&role).Error)

	u := model.User{Email: email, FullName: "User " + email, RoleID: &role.ID, IsActive: true}
	require.NoError(t, u.SetPassword(password))
	require.NoError(t, db.Create(&u).Error)
	u.Role = &role
	return u
}
