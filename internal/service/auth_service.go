package service

import (
	"context"
	"errors"
	"time"

	"github.com/fajar-dev/be-sele-sele/internal/jwt"
	"github.com/fajar-dev/be-sele-sele/internal/model"
	"github.com/fajar-dev/be-sele-sele/internal/repository"
)

const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 14 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("refresh token is invalid")
	ErrTokenExpired = errors.New("refresh token has expired")
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user account is deactivated")
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity is the verified assertion the external identity provider produces
// after code exchange. The service never sees the OAuth code itself.
type Identity struct {
	Email     string
	Sub       *string
	Name      *string
	AvatarURL *string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthConfig struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthService interface {
	Login(ctx context.Context, identity Identity, clientIP string) (*model.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccessToken(ctx context.Context, tokenString string) (*model.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	cfg       AuthConfig
}

func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, cfg AuthConfig) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		cfg:       cfg,
	}
}

func (s *authService) Login(ctx context.Context, identity Identity, clientIP string) (*model.User, *TokenPair, error) {
	user, err := s.userRepo.Upsert(ctx, repository.UpsertUserParams{
		Email:       identity.Email,
		Sub:         identity.Sub,
		Name:        identity.Name,
		AvatarURL:   identity.AvatarURL,
		LastLoginIP: clientIP,
		LastLoginAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token. The presented token is consumed before
// anything else happens, so it can be redeemed at most once no matter how
// many callers race on it.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error) {
	consumed, err := s.tokenRepo.ConsumeByHash(ctx, jwt.HashToken(refreshToken))
	if err != nil {
		return nil, nil, err
	}
	if consumed == nil {
		return nil, nil, ErrInvalidToken
	}
	if time.Now().UTC().After(consumed.ExpiresAt) {
		// Already deleted by the consume, so a repeat attempt reads as
		// invalid rather than expired.
		return nil, nil, ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, consumed.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokenRepo.Delete(ctx, jwt.HashToken(refreshToken))
}

// VerifyAccessToken resolves a bearer token to its live principal. Every
// failure mode (bad signature, expiry, unknown or deactivated user) maps to
// ErrUnauthorized; callers are not supposed to distinguish them.
func (s *authService) VerifyAccessToken(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := jwt.ValidateToken(s.cfg.JWTSecret, tokenString)
	if err != nil {
		return nil, ErrUnauthorized
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *authService) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := jwt.GenerateAccessToken(s.cfg.JWTSecret, user, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	err = s.tokenRepo.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: jwt.HashToken(refresh),
		ExpiresAt: time.Now().UTC().Add(s.cfg.RefreshTTL),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
