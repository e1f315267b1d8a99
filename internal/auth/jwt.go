package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"airwatch/internal/config"
)

// Token scopes
const (
	ScopeIngest = "device-ingest"
	ScopeAdmin  = "device-admin"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongScope   = errors.New("token scope not permitted for this operation")
)

// Claims carried by airwatch bearer tokens. Subject is the device serial
// number.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService issues and validates device bearer tokens (HS256).
type TokenService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenService creates a token service from config.
func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if cfg.Key == "" {
		return nil, errors.New("jwt key is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 180 * 24 * time.Hour
	}
	return &TokenService{
		key:      []byte(cfg.Key),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
	}, nil
}

// Issue creates a signed token scoping the device to the given capability.
// The returned token ID is recorded with the device registration.
func (s *TokenService) Issue(serialNumber, scope string) (tokenID, token string, err error) {
	tokenID = uuid.New().String()
	now := time.Now().UTC()

	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serialNumber,
			ID:        tokenID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("signing token: %w", err)
	}
	return tokenID, signed, nil
}

// Validate parses and verifies a token, returning its claims.
func (s *TokenService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
