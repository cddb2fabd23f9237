package service

import (
	"context"
	"errors"
	"strings"

	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = apperror.Conflict("email already exists").WithReason(apperror.ReasonDuplicateEmail)
	ErrRoleNotFound = apperror.NotFound("role not found")
)

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest, actor Actor) (*model.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor Actor) (*model.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID, actor Actor) error
	UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string, actor Actor) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	ListPrivileges(ctx context.Context) ([]model.Privilege, error)
}

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	RoleID      uint   `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"max=20"`
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest, actor Actor) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, req.Email, uuid.Nil); err != nil {
		return nil, err
	}
	role, err := s.findRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:       req.Email,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: req.PhoneNumber,
		RoleID:      &role.ID,
		IsActive:    true,
		Privileges:  role.Privileges,
	}
	user.CreatedBy = actor.AuditID()
	user.UpdatedBy = actor.AuditID()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, userConflict(apperror.FromStore(err, "failed to create user"))
	}
	return s.reload(ctx, user.ID)
}

// UpdateUser replaces the user's profile. A role change resets privileges to
// the new role's defaults.
func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor Actor) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, ErrUserNotFound, "failed to load user")
	}
	if req.Email != user.Email {
		if err := s.ensureEmailFree(ctx, req.Email, userID); err != nil {
			return nil, err
		}
	}
	role, err := s.findRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	roleChanged := user.RoleID == nil || *user.RoleID != role.ID
	user.Email = req.Email
	user.FullName = strings.TrimSpace(req.FullName)
	user.PhoneNumber = req.PhoneNumber
	user.RoleID = &role.ID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.AuditID()
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, userConflict(apperror.FromStore(err, "failed to update user"))
	}
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, userID, role.Privileges); err != nil {
			return nil, apperror.FromStore(err, "failed to update privileges")
		}
	}
	return s.reload(ctx, userID)
}

func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID, actor Actor) error {
	if userID == actor.ID {
		return apperror.Validation("you cannot delete your own account")
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return notFoundOr(err, ErrUserNotFound, "failed to delete user")
	}
	return nil
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string, actor Actor) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, ErrUserNotFound, "failed to load user")
	}
	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to find privileges")
	}
	if len(privileges) != len(uniqueStrings(privilegeCodes)) {
		return nil, apperror.Validation("unknown privilege code")
	}
	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		return nil, apperror.FromStore(err, "failed to update privileges")
	}
	user.UpdatedBy = actor.AuditID()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperror.FromStore(err, "failed to update user")
	}
	return s.reload(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list users")
	}
	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrUserNotFound, "failed to load user")
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roleRepo.FindAll(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list roles")
	}
	return roles, nil
}

func (s *userService) ListPrivileges(ctx context.Context) ([]model.Privilege, error) {
	privileges, err := s.privilegeRepo.FindAll(ctx)
	if err != nil {
		return nil, apperror.FromStore(err, "failed to list privileges")
	}
	return privileges, nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	found, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return apperror.FromStore(err, "failed to check email")
	case found.ID != self:
		return ErrEmailExists
	}
	return nil
}

func (s *userService) findRole(ctx context.Context, id uint) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrRoleNotFound, "failed to load role")
	}
	return role, nil
}

func (s *userService) reload(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, ErrUserNotFound, "failed to load user")
	}
	return user, nil
}

func notFoundOr(err error, notFound error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperror.FromStore(err, message)
}

func userConflict(err error) error {
	if apperror.CodeOf(err) == apperror.CodeConflict && apperror.As(err).Reason() == apperror.ReasonNone {
		return ErrEmailExists
	}
	return err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
