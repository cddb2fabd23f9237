package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/ws"
	"go-pos-admin/pkg/apperror"
	"go-pos-admin/pkg/jwt"
	"go-pos-admin/pkg/logger"
	"go-pos-admin/pkg/validator"
)

var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	ErrUserNotFound       = apperror.NotFound("user not found")
	ErrUserInactive       = apperror.New(apperror.CodeForbidden, "user account is inactive")
	ErrWrongPassword      = apperror.Unauthorized("current password is incorrect")
	ErrSessionTimeout     = apperror.Unauthorized("session expired due to inactivity").WithReason(apperror.ReasonSessionExpired)
	ErrSessionReplaced    = apperror.Unauthorized("session expired (logged in on another device)").WithReason(apperror.ReasonSessionExpired)
	ErrInvalidSession     = apperror.Unauthorized("invalid or expired token")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)
	ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	Authenticate(ctx context.Context, tokenString string) (*model.User, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*model.UserResponse, error)
}

type LoginResponse struct {
	Token      string             `json:"token"`
	ExpiresAt  time.Time          `json:"expires_at"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
}

type UpdateProfileRequest struct {
	FullName        *string `json:"full_name" validate:"omitempty,min=1"`
	Email           *string `json:"email" validate:"omitempty,email"`
	PhoneNumber     *string `json:"phone_number" validate:"omitempty,max=20"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     *string `json:"new_password" validate:"omitempty,min=6"`
}

type authService struct {
	userRepo   repository.UserRepository
	roleRepo   repository.RoleRepository
	tokens     *jwt.Manager
	notifier   Notifier
	log        *logger.Logger
	inactivity time.Duration
	now        func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	tokens *jwt.Manager,
	notifier Notifier,
	log *logger.Logger,
	inactivity time.Duration,
) AuthService {
	if log == nil {
		log = logger.Nop()
	}
	return &authService{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		tokens:     tokens,
		notifier:   notifierOrNop(notifier),
		log:        log,
		inactivity: inactivity,
		now:        time.Now,
	}
}

// Login rotates the user's token version, so any older session stops validating.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperror.FromStore(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	user.TokenVersion = uuid.NewString()
	user.LastSeenAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperror.FromStore(err, "failed to update session")
	}

	token, err := s.tokens.GenerateToken(jwt.Subject{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.FullName,
		RoleCode:     user.RoleCode(),
		Privileges:   user.GetPrivilegeCodes(),
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to generate token")
	}

	s.log.Info(ctx, "user logged in", logger.Field("user_id", user.ID.String()))
	return &LoginResponse{
		Token:      token,
		ExpiresAt:  now.Add(s.tokens.TTL()),
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

// Register creates a CASHIER account with the role's default privileges.
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.FromStore(err, "failed to check email")
	}

	role, err := s.roleRepo.FindByCode(ctx, model.RoleCashier)
	if err != nil {
		return nil, apperror.FromStore(err, "cashier role is not configured")
	}

	user := &model.User{
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		RoleID:      &role.ID,
		IsActive:    true,
		Privileges:  role.Privileges,
	}
	user.CreatedBy = "self-registration"
	user.UpdatedBy = "self-registration"
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, userConflict(apperror.FromStore(err, "failed to create user"))
	}
	user.Role = role
	return user, nil
}

func (s *authService) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperror.Validation("new password must be at least 6 characters")
	}
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return apperror.FromStore(err, "failed to load user")
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return apperror.Wrap(apperror.CodeInternal, err, "failed to hash new password")
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return apperror.FromStore(err, "failed to update password")
	}
	// Force re-login everywhere.
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.NewString()); err != nil {
		return apperror.FromStore(err, "failed to reset session")
	}
	return nil
}

// Authenticate checks signature, single-session version and inactivity.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidSession
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.FromStore(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > s.inactivity {
		return nil, ErrSessionTimeout
	}
	return user, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	user, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

// Heartbeat marks the user as seen and tells other clients they are online.
func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	now := s.now()
	if err := s.userRepo.UpdateLastSeen(ctx, userID, now); err != nil {
		return apperror.FromStore(err, "failed to update presence")
	}
	s.notifier.Publish(ws.EventUserStatusUpdate, map[string]any{
		"user_id":      userID.String(),
		"status":       "online",
		"last_seen_at": now,
	})
	return nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.FromStore(err, "failed to load user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// UpdateProfile lets a user edit their own details. Changing email or
// password requires the current password.
func (s *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*model.UserResponse, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.FromStore(err, "failed to load user")
	}

	sensitive := req.NewPassword != nil || (req.Email != nil && !strings.EqualFold(*req.Email, user.Email))
	if sensitive && !user.CheckPassword(req.CurrentPassword) {
		return nil, ErrWrongPassword
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, user.Email) {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
			return nil, ErrEmailExists
		}
		user.Email = email
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if req.NewPassword != nil {
		if err := user.SetPassword(*req.NewPassword); err != nil {
			return nil, apperror.Wrap(apperror.CodeInternal, err, "failed to hash password")
		}
	}
	user.UpdatedBy = user.ID.String()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, userConflict(apperror.FromStore(err, "failed to update profile"))
	}
	resp := user.ToResponse()
	return &resp, nil
}
