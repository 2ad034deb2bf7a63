package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusdesk/campusdesk-backend/internal/users"
	pkgauth "github.com/campusdesk/campusdesk-backend/pkg/auth"
	"github.com/campusdesk/campusdesk-backend/pkg/config"
	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// RegisterRequest is the signup payload. Admin accounts are provisioned out
// of band, so the role here is limited to the member-facing ones.
type RegisterRequest struct {
	MemberID  string         `json:"member_id" validate:"required"`
	Name      string         `json:"name" validate:"required"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required,min=8"`
	Role      enums.UserRole `json:"role"`
	Programme string         `json:"programme"`
	Batch     string         `json:"batch"`
}

// LoginRequest carries the credential pair.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the issued token plus the authenticated user.
type LoginResponse struct {
	AccessToken string
	User        *models.User
}

type userStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByMemberID(ctx context.Context, memberID string) (*models.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) (bool, error)
}

type userStoreFactory func(tx *gorm.DB) userStore

func defaultUserStore(tx *gorm.DB) userStore {
	return users.NewRepository(tx)
}

type cartAllocator interface {
	CreateEmptyCart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, actor string) (*models.Cart, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns account signup, login, and the admin verification step that
// activates an account.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)

	// Verify activates a member's account and allocates their first cart;
	// until then the account cannot log in.
	Verify(ctx context.Context, memberID string, actor string) (*models.User, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             txRunner
	Users          userStore
	UserStores     userStoreFactory
	Carts          cartAllocator
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	db          txRunner
	users       userStore
	userStores  userStoreFactory
	carts       cartAllocator
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	factory := params.UserStores
	if factory == nil {
		factory = defaultUserStore
	}
	return &service{
		db:          params.DB,
		users:       params.Users,
		userStores:  factory,
		carts:       params.Carts,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	memberID := strings.TrimSpace(req.MemberID)
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if memberID == "" || name == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id, name and email are required")
	}
	if len(req.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	role := req.Role
	if role == "" {
		role = enums.UserRoleStudent
	}
	if role != enums.UserRoleStudent && role != enums.UserRoleFaculty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be student or faculty")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}
	if _, err := s.users.FindByMemberID(ctx, memberID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "member id already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check member id")
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, &models.User{
		MemberID:     memberID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Programme:    strings.TrimSpace(req.Programme),
		Batch:        strings.TrimSpace(req.Batch),
		Verified:     false,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !user.Verified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is pending verification")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		MemberID: user.MemberID,
		Role:     user.Role,
		Verified: user.Verified,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{AccessToken: token, User: user}, nil
}

func (s *service) Verify(ctx context.Context, memberID string, actor string) (*models.User, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}

	var verified *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.userStores(tx)
		user, err := repo.FindByMemberID(ctx, memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
			}
			return err
		}

		changed, err := repo.MarkVerified(ctx, user.ID)
		if err != nil {
			return err
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "account already verified")
		}
		user.Verified = true

		// the verified member immediately holds their one open cart
		if _, err := s.carts.CreateEmptyCart(ctx, tx, user.ID, actor); err != nil {
			return err
		}
		verified = user
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify member")
	}
	return verified, nil
}
