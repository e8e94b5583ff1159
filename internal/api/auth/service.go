// Package auth issues and verifies bearer tokens and turns them into the
// custody.Caller every workflow operation receives.
package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// Sentinel errors for authentication failures.
var (
	ErrInvalidCredentials = errors.NewStd("invalid credentials")
	ErrInvalidToken       = errors.NewStd("invalid or expired token")
	ErrTokenRevoked       = errors.NewStd("token has been revoked")
)

// Service logs users in and manages their token lifecycle.
type Service struct {
	users   repository.DirectoryRepository
	tokens  *TokenIssuer
	revoked RevocationStore
	log     logger.Logger
}

// NewService creates an auth service.
func NewService(users repository.DirectoryRepository, tokens *TokenIssuer, revoked RevocationStore, log logger.Logger) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		log:     log.Module("auth"),
	}
}

// UserInfo is the public part of the logged-in user.
type UserInfo struct {
	ID          uint          `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name,omitempty"`
	Role        entities.Role `json:"role"`
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserInfo  `json:"user"`
}

// HashPassword returns the bcrypt hash stored for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func authError(err error) error {
	return errors.New(err).Component("auth").Category(errors.CategoryAuth).Build()
}

// Login checks username and password and issues a token pair. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	log := s.log.WithContext(ctx)

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Database("auth", "lookup user", err)
		}
		log.Info("login failed", logger.String("username", username), logger.String("reason", "unknown user"))
		return nil, authError(ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Info("login failed", logger.String("username", username), logger.String("reason", "bad password"))
		return nil, authError(ErrInvalidCredentials)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	log.Info("user logged in",
		logger.Uint64("user_id", uint64(user.ID)),
		logger.String("role", string(user.Role)))
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, authError(ErrInvalidToken)
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, authError(ErrInvalidToken)
		}
		return nil, errors.Database("auth", "lookup user", err)
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issuePair(user)
}

// Logout revokes refreshToken. Revoking an already revoked token succeeds.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		return authError(err)
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("user logged out", logger.String("subject", claims.Subject))
	return nil
}

// Authenticate verifies an access token and returns the caller it names.
func (s *Service) Authenticate(accessToken string) (custody.Caller, error) {
	claims, err := s.tokens.Parse(accessToken, TokenAccess)
	if err != nil {
		return custody.Caller{}, authError(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return custody.Caller{}, authError(ErrInvalidToken)
	}
	return custody.Caller{UserID: id, Role: claims.Role}, nil
}

func (s *Service) verifyRefresh(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token, TokenRefresh)
	if err != nil {
		return nil, authError(err)
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.New(err).Component("auth").Category(errors.CategoryNetwork).Context("operation", "revocation lookup").Build()
	}
	if revoked {
		return nil, authError(ErrTokenRevoked)
	}
	return claims, nil
}

func (s *Service) revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return errors.New(err).Component("auth").Category(errors.CategoryNetwork).Context("operation", "revoke token").Build()
	}
	return nil
}

func (s *Service) issuePair(user *entities.User) (*TokenPair, error) {
	access, claims, err := s.tokens.Issue(user, TokenAccess)
	if err != nil {
		return nil, errors.New(err).Component("auth").Category(errors.CategoryGeneric).Context("operation", "sign access token").Build()
	}
	refresh, _, err := s.tokens.Issue(user, TokenRefresh)
	if err != nil {
		return nil, errors.New(err).Component("auth").Category(errors.CategoryGeneric).Context("operation", "sign refresh token").Build()
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    claims.ExpiresAt.Time,
		User: UserInfo{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		},
	}, nil
}
