package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in Claims.Type, distinguishing an access token from
// a refresh token signed with the same scheme.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// signingMethod resolves the configured algorithm name to a jwt.SigningMethod.
func signingMethod(algorithm string) jwt.SigningMethod {
	switch algorithm {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

// TokenService issues and validates access and refresh tokens.
type TokenService struct {
	secret            []byte
	algorithm         string
	expiration        time.Duration
	refreshExpiration time.Duration
	issuer            string
}

// NewTokenService creates a new token service. algorithm is one of
// HS256, HS384, HS512; an unrecognized value defaults to HS256.
func NewTokenService(secret, algorithm string, expiration, refreshExpiration time.Duration) *TokenService {
	return &TokenService{
		secret:            []byte(secret),
		algorithm:         algorithm,
		expiration:        expiration,
		refreshExpiration: refreshExpiration,
		issuer:            "scholaris-core",
	}
}

func (s *TokenService) sign(user *User, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   user.ID,
			ID:        newJTI(),
		},
	}

	token := jwt.NewWithClaims(signingMethod(s.algorithm), claims)
	signed, err := token.SignedString(s.secret)
	return signed, expiresAt, err
}

// GenerateAccessToken issues a signed access token for a user.
func (s *TokenService) GenerateAccessToken(user *User) (string, time.Time, error) {
	return s.sign(user, TokenTypeAccess, s.expiration)
}

// GenerateRefreshToken issues a signed refresh token for a user. The
// caller is responsible for persisting HashToken(token) in the
// RefreshCredential row before returning it to the client.
func (s *TokenService) GenerateRefreshToken(user *User) (string, time.Time, error) {
	return s.sign(user, TokenTypeRefresh, s.refreshExpiration)
}

// GenerateTokenPair issues both an access and a refresh token.
func (s *TokenService) GenerateTokenPair(user *User) (*TokenPair, error) {
	access, _, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	refresh, expiresAt, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.expiration.Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

// ValidateToken parses and validates a token of the given expected type.
func (s *TokenService) ValidateToken(tokenString, expectType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	if claims.Type != expectType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func newJTI() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// HashToken computes a deterministic digest of a bearer token (refresh
// token or API credential secret) suitable for equality lookup in storage.
// Unlike password hashing, revocable tokens must be found by a database
// query, which rules out a per-call-salted scheme like bcrypt; the token
// itself already carries 256 bits of entropy (or JWT signature integrity),
// so a fast deterministic hash does not weaken it the way it would a
// low-entropy password.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateAPICredentialSecret creates a new random API credential bearer
// string with the configured prefix.
func GenerateAPICredentialSecret(prefix string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}
