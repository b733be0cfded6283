package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chatwire/config"
	"chatwire/models"
)

// TokenVerifier resolves a bearer credential to a known identity
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

// AuthService issues and verifies HMAC-signed JWTs bound to registered users
type AuthService struct {
	store  Store
	secret []byte
	expiry time.Duration
}

func NewAuthService(store Store, cfg *config.Config) *AuthService {
	return &AuthService{
		store:  store,
		secret: []byte(cfg.JWTSecret),
		expiry: cfg.TokenExpiry,
	}
}

// IssueToken creates a signed token for an authenticated user
func (as *AuthService) IssueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(as.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token and resolves it to a known user.
// A malformed, expired, or mis-signed token, or one naming an unknown user,
// yields ErrInvalidCredential.
func (as *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return as.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredential
	}
	rawID, ok := claims["user_id"].(string)
	if !ok {
		return nil, ErrInvalidCredential
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user_id claim", ErrInvalidCredential)
	}

	user, err := as.store.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredential)
	}
	return user, nil
}
