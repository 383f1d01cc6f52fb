package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/pkg/auth"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/idtoken"
)

// TokenVerifier checks a Google ID token and returns its claims
type TokenVerifier func(ctx context.Context, token, audience string) (*model.GoogleUserInfo, error)

// AuthService handles sign-in and sign-out
type AuthService struct {
	users          *UserService
	jwtManager     *auth.JWTManager
	rdb            *redis.Client
	googleClientID string
	verify         TokenVerifier
}

func NewAuthService(
	users *UserService,
	jwtManager *auth.JWTManager,
	rdb *redis.Client,
	googleClientID string,
) *AuthService {
	return &AuthService{
		users:          users,
		jwtManager:     jwtManager,
		rdb:            rdb,
		googleClientID: googleClientID,
		verify:         verifyGoogleToken,
	}
}

// ==================== Login (Google) ====================

// verifyGoogleToken validates a Google ID token and extracts user info
func verifyGoogleToken(ctx context.Context, token, audience string) (*model.GoogleUserInfo, error) {
	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", err)
	}

	email, ok := payload.Claims["email"].(string)
	if !ok {
		return nil, errors.New("email not found in token")
	}
	name, _ := payload.Claims["name"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)

	return &model.GoogleUserInfo{Email: email, Name: name, Verified: verified}, nil
}

// LoginWithGoogle exchanges a Google ID token for a session token
func (s *AuthService) LoginWithGoogle(ctx context.Context, req model.GoogleLoginRequest) (*model.LoginResponse, error) {
	info, err := s.verify(ctx, req.IDToken, s.googleClientID)
	if err != nil {
		return nil, apperr.ErrPermissionDenied.Wrap(err)
	}
	if !info.Verified {
		return nil, apperr.ErrPermissionDenied.Withf("email %s is not verified", info.Email)
	}

	user, err := s.users.GetUser(ctx, info.Email)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*model.LoginResponse, error) {
	perms := make([]string, 0, len(user.Permissions()))
	for _, p := range user.Permissions() {
		perms = append(perms, string(p))
	}
	token, err := s.jwtManager.GenerateToken(user.Email, user.RoleNames(), perms, user.Superadmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// Me returns the signed-in user
func (s *AuthService) Me(ctx context.Context, email string) (*model.UserResponse, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Logout blacklists the token until it would have expired
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil {
		return err
	}

	expiresIn := time.Until(claims.ExpiresAt.Time)
	if expiresIn <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, "blacklist:"+tokenString, "revoked", expiresIn).Err()
}
