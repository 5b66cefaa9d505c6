package usecase

import (
	"context"
	"errors"
	"strings"

	"clinic-booking/internal/converter"
	"clinic-booking/internal/delivery/dto"
	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUserNotFound       = errors.New("user not found")
)

type AuthUsecase interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, caller *entity.CallerIdentity, accessTokenID, refreshToken string) error
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	GetCurrentUser(ctx context.Context, userID int64) (*dto.UserResponse, error)
	CreateAdmin(ctx context.Context, email, password string) (*dto.UserResponse, error)
}

type authUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	userRepo     repository.UserRepository
	patientRepo  repository.PatientRepository
	jwtService   *jwt.JWTService
	tokenStore   service.TokenStore
	auditService service.AuditService
	refreshes    singleflight.Group
}

func NewAuthUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	userRepo repository.UserRepository,
	patientRepo repository.PatientRepository,
	jwtService *jwt.JWTService,
	tokenStore service.TokenStore,
	auditService service.AuditService,
) AuthUsecase {
	return &authUsecase{
		db:           db,
		log:          log,
		userRepo:     userRepo,
		patientRepo:  patientRepo,
		jwtService:   jwtService,
		tokenStore:   tokenStore,
		auditService: auditService,
	}
}

// Signup creates a PATIENT account. A guest patient row booked earlier with
// the same email is claimed instead of creating a second row.
func (u *authUsecase) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.UserResponse, error) {
	email := normalizeEmail(req.Email)

	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	user, err := u.createUser(tx, email, req.Password, entity.RolePatient)
	if err != nil {
		return nil, err
	}

	contact := entity.PatientContact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
	}

	patient, err := u.patientRepo.FindUnlinkedByEmail(tx, email)
	if err != nil {
		u.log.Warnf("Failed to find guest patient by email: %+v", err)
		return nil, err
	}
	if patient != nil {
		if err := u.patientRepo.LinkUser(tx, patient.ID, user.ID); err != nil {
			u.log.Warnf("Failed to link guest patient %d: %+v", patient.ID, err)
			return nil, err
		}
		if _, err := u.patientRepo.Backfill(tx, patient.ID, contact); err != nil {
			u.log.Warnf("Failed to backfill patient %d: %+v", patient.ID, err)
			return nil, err
		}
	} else {
		patient = &entity.Patient{
			UserID:    &user.ID,
			FirstName: contact.FirstName,
			LastName:  contact.LastName,
			Email:     email,
			Phone:     contact.Phone,
		}
		if err := u.patientRepo.Create(tx, patient); err != nil {
			u.log.Warnf("Failed to create patient profile: %+v", err)
			return nil, err
		}
	}

	actor := &entity.CallerIdentity{UserID: user.ID, Email: user.Email, Role: user.Role}
	if err := u.auditService.LogCreate(ctx, tx, actor, entity.AuditActionUserRegister, "user", user.ID, converter.UserToResponse(user)); err != nil {
		u.log.Warnf("Failed to create audit log: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.UserToResponse(user), nil
}

// CreateAdmin bootstraps an ADMIN account from the command line.
func (u *authUsecase) CreateAdmin(ctx context.Context, email, password string) (*dto.UserResponse, error) {
	user, err := u.createUser(u.db.WithContext(ctx), normalizeEmail(email), password, entity.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return converter.UserToResponse(user), nil
}

func (u *authUsecase) createUser(tx *gorm.DB, email, password string, role entity.Role) (*entity.User, error) {
	existing, err := u.userRepo.FindByEmail(tx, email)
	if err != nil {
		u.log.Warnf("Failed to find user by email: %+v", err)
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return nil, err
	}

	user := &entity.User{
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := u.userRepo.Create(tx, user); err != nil {
		if isDuplicateKeyError(err, "email") {
			return nil, ErrEmailAlreadyExists
		}
		u.log.Warnf("Failed to create user: %+v", err)
		return nil, err
	}
	return user, nil
}

func (u *authUsecase) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// read-only, no transaction needed
	user, err := u.userRepo.FindByEmail(u.db.WithContext(ctx), normalizeEmail(req.Email))
	if err != nil {
		u.log.Warnf("Failed to find user by email: %+v", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u.issueTokens(ctx, user)
}

// RefreshToken rotates a refresh token. Concurrent refreshes presenting the
// same token share one rotation so a double-submitting client does not end
// up holding a revoked pair.
func (u *authUsecase) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	v, err, _ := u.refreshes.Do(req.RefreshToken, func() (interface{}, error) {
		return u.rotate(ctx, req.RefreshToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.TokenResponse), nil
}

func (u *authUsecase) rotate(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := u.jwtService.ValidateToken(refreshToken)
	if err != nil || claims.TokenType != jwt.RefreshToken {
		return nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	exists, err := u.tokenStore.Exists(ctx, service.RefreshTokenKind, userID, claims.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTokenRevoked
	}

	if err := u.tokenStore.Revoke(ctx, service.RefreshTokenKind, userID, claims.ID); err != nil {
		return nil, err
	}

	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	return u.issueTokens(ctx, user)
}

func (u *authUsecase) issueTokens(ctx context.Context, user *entity.User) (*dto.TokenResponse, error) {
	accessToken, accessTokenID, err := u.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		u.log.Warnf("Failed to generate access token: %+v", err)
		return nil, err
	}

	refreshToken, refreshTokenID, err := u.jwtService.GenerateRefreshToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		u.log.Warnf("Failed to generate refresh token: %+v", err)
		return nil, err
	}

	if err := u.tokenStore.Store(ctx, service.AccessTokenKind, user.ID, accessTokenID, u.jwtService.GetAccessExpiry()); err != nil {
		return nil, err
	}
	if err := u.tokenStore.Store(ctx, service.RefreshTokenKind, user.ID, refreshTokenID, u.jwtService.GetRefreshExpiry()); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.jwtService.GetAccessExpiry().Seconds()),
		User:         converter.UserToResponse(user),
	}, nil
}

// Logout revokes the presented access token and, when it belongs to the
// same user, the refresh token.
func (u *authUsecase) Logout(ctx context.Context, caller *entity.CallerIdentity, accessTokenID, refreshToken string) error {
	if caller == nil {
		return ErrInvalidToken
	}

	if err := u.tokenStore.Revoke(ctx, service.AccessTokenKind, caller.UserID, accessTokenID); err != nil {
		return err
	}

	if refreshToken == "" {
		return nil
	}
	claims, err := u.jwtService.ValidateToken(refreshToken)
	if err != nil || claims.TokenType != jwt.RefreshToken {
		return nil
	}
	if userID, err := claims.UserID(); err != nil || userID != caller.UserID {
		return nil
	}
	return u.tokenStore.Revoke(ctx, service.RefreshTokenKind, caller.UserID, claims.ID)
}

func (u *authUsecase) GetCurrentUser(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return converter.UserToResponse(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
