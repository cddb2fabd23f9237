package service

import (
	"context"
	"testing"

	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/testutil"
	"go-pos-admin/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	svc     UserService
	admin   *model.Role
	cashier *model.Role
}

func newUserService(t *testing.T) *userFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	ctx := context.Background()
	privileges := repository.NewPrivilegeRepo(db)
	roles := repository.NewRoleRepo(db)
	require.NoError(t, privileges.SeedDefaults(ctx))
	require.NoError(t, roles.SeedDefaults(ctx))

	admin, err := roles.FindByCode(ctx, model.RoleAdmin)
	require.NoError(t, err)
	cashier, err := roles.FindByCode(ctx, model.RoleCashier)
	require.NoError(t, err)
	return &userFixture{
		svc:     NewUserService(repository.NewUserRepo(db), privileges, roles),
		admin:   admin,
		cashier: cashier,
	}
}

func TestCreateUserCopiesRolePrivileges(t *testing.T) {
	f := newUserService(t)
	ctx := context.Background()

	u, err := f.svc.CreateUser(ctx, &CreateUserRequest{
		Email:    " Kasir@POS.test ",
		Password: "secret1",
		FullName: "Kasir Satu",
		RoleID:   f.cashier.ID,
	}, Actor{})
	require.NoError(t, err)
	require.Equal(t, "kasir@pos.test", u.Email)
	require.Equal(t, "system", u.CreatedBy)
	require.True(t, u.HasPrivilege(model.PrivTransactionCreate))
	require.False(t, u.HasPrivilege(model.PrivUserDelete))

	_, err = f.svc.CreateUser(ctx, &CreateUserRequest{
		Email: "kasir@pos.test", Password: "secret1", FullName: "Dup", RoleID: f.cashier.ID,
	}, Actor{})
	require.ErrorIs(t, err, ErrEmailExists)

	_, err = f.svc.CreateUser(ctx, &CreateUserRequest{
		Email: "other@pos.test", Password: "secret1", FullName: "Other", RoleID: 999,
	}, Actor{})
	require.ErrorIs(t, err, ErrRoleNotFound)

	_, err = f.svc.CreateUser(ctx, &CreateUserRequest{Email: "bad", Password: "1", RoleID: f.cashier.ID}, Actor{})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestUpdateUserRoleChangeResetsPrivileges(t *testing.T) {
	f := newUserService(t)
	ctx := context.Background()
	u, err := f.svc.CreateUser(ctx, &CreateUserRequest{
		Email: "kasir@pos.test", Password: "secret1", FullName: "Kasir", RoleID: f.cashier.ID,
	}, Actor{})
	require.NoError(t, err)

	u, err = f.svc.UpdateUserPrivileges(ctx, u.ID, []string{model.PrivProductView}, Actor{})
	require.NoError(t, err)
	require.Equal(t, []string{model.PrivProductView}, u.GetPrivilegeCodes())

	// Same role keeps the custom grant.
	u, err = f.svc.UpdateUser(ctx, u.ID, &UpdateUserRequest{
		Email: "kasir@pos.test", FullName: "Kasir Renamed", RoleID: f.cashier.ID,
	}, Actor{})
	require.NoError(t, err)
	require.Equal(t, "Kasir Renamed", u.FullName)
	require.Equal(t, []string{model.PrivProductView}, u.GetPrivilegeCodes())

	u, err = f.svc.UpdateUser(ctx, u.ID, &UpdateUserRequest{
		Email: "kasir@pos.test", FullName: "Kasir Renamed", RoleID: f.admin.ID,
	}, Actor{})
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, u.RoleCode())
	require.True(t, u.HasPrivilege(model.PrivUserDelete))
}

func TestUpdateUserPrivilegesRejectsUnknownCode(t *testing.T) {
	f := newUserService(t)
	ctx := context.Background()
	u, err := f.svc.CreateUser(ctx, &CreateUserRequest{
		Email: "kasir@pos.test", Password: "secret1", FullName: "Kasir", RoleID: f.cashier.ID,
	}, Actor{})
	require.NoError(t, err)

	_, err = f.svc.UpdateUserPrivileges(ctx, u.ID, []string{model.PrivProductView, "pos:teleport"}, Actor{})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = f.svc.UpdateUserPrivileges(ctx, uuid.New(), []string{model.PrivProductView}, Actor{})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	f := newUserService(t)
	ctx := context.Background()
	u, err := f.svc.CreateUser(ctx, &CreateUserRequest{
		Email: "kasir@pos.test", Password: "secret1", FullName: "Kasir", RoleID: f.cashier.ID,
	}, Actor{})
	require.NoError(t, err)

	err = f.svc.DeleteUser(ctx, u.ID, Actor{ID: u.ID})
	require.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	require.NoError(t, f.svc.DeleteUser(ctx, u.ID, Actor{ID: uuid.New()}))
	_, err = f.svc.GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, f.svc.DeleteUser(ctx, u.ID, Actor{ID: uuid.New()}), ErrUserNotFound)

	users, err := f.svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
}
