package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/monitoring"
	"taskdesk/backend/internal/repositories"
	"taskdesk/backend/internal/revocation"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

type RegistrationRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginStatus string

const (
	LoginOK      LoginStatus = "ok"
	LoginInvalid LoginStatus = "invalid"
)

// LoginResult carries the verified account on LoginOK. User never holds the
// password hash.
type LoginResult struct {
	Status LoginStatus
	UserID int64
	User   *models.User
}

type Claims struct {
	UserID int64       `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   int64
}

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (LoginResult, error)
	GenerateToken(user *models.User) (*IssuedToken, error)
	ParseToken(ctx context.Context, token string) (*Claims, error)
	Logout(ctx context.Context, claims *Claims) error
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (*models.User, error)
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type AuthServiceImpl struct {
	users     repositories.UserRepository
	denylist  revocation.Denylist
	cfg       AuthConfig
	dummyHash string
	now       func() time.Time
	log       logger.Logger
	metrics   *monitoring.Metrics
}

func NewAuthService(
	users repositories.UserRepository,
	denylist revocation.Denylist,
	hasher *repositories.PasswordHasher,
	cfg AuthConfig,
	log logger.Logger,
	metrics *monitoring.Metrics,
) (*AuthServiceImpl, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if denylist == nil {
		denylist = revocation.NewMemoryDenylist()
	}
	if log == nil {
		log = logger.Nop()
	}

	// Compared against when the email is unknown, so both paths pay for bcrypt.
	dummyHash, err := hasher.Hash("taskdesk-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &AuthServiceImpl{
		users:     users,
		denylist:  denylist,
		cfg:       cfg,
		dummyHash: dummyHash,
		now:       time.Now,
		log:       log.WithFields(map[string]interface{}{"component": "auth"}),
		metrics:   metrics,
	}, nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	user, err := s.users.Create(ctx, models.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrUserNotFound) {
		s.users.ValidatePassword(password, s.dummyHash)
		s.metrics.RecordLogin(string(LoginInvalid))
		return LoginResult{Status: LoginInvalid}, nil
	}
	if err != nil {
		s.metrics.RecordLogin("error")
		return LoginResult{}, err
	}

	if !s.users.ValidatePassword(password, user.Password) {
		s.metrics.RecordLogin(string(LoginInvalid))
		s.log.Warn("login rejected", map[string]interface{}{"user_id": user.ID})
		return LoginResult{Status: LoginInvalid}, nil
	}

	s.metrics.RecordLogin(string(LoginOK))
	public := user.Public()
	return LoginResult{Status: LoginOK, UserID: user.ID, User: &public}, nil
}

func (s *AuthServiceImpl) GenerateToken(user *models.User) (*IssuedToken, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)

	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}

func (s *AuthServiceImpl) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, options...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	// The account must still exist, and its stored role wins over the signed one.
	user, err := s.users.FindByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return nil, ErrInvalidToken
	case err != nil:
		return nil, err
	}
	claims.Role = user.Role

	return claims, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}

	s.log.Info("token revoked", map[string]interface{}{"user_id": claims.UserID})
	return nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	withHash, err := s.users.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	if !s.users.ValidatePassword(currentPassword, withHash.Password) {
		return nil, ErrInvalidCredentials
	}

	updated, err := s.users.ChangePassword(ctx, userID, newPassword)
	if err != nil {
		return nil, err
	}

	s.log.Info("password changed", map[string]interface{}{"user_id": userID})
	return updated, nil
}
