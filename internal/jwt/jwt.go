package jwt

import (
	"crypto/hmac"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	EntityParticipant = "participant"
	EntityAdmin       = "admin"
)

var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotAdmin      = errors.New("admin token required")
	ErrWrongAdminKey = errors.New("admin key mismatch")
)

// CustomClaims binds a token to a username and the kind of entity holding it.
type CustomClaims struct {
	Username   string `json:"username"`
	EntityType string `json:"entityType"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT operations
type JWTManager struct {
	secretKey []byte
	adminKey  []byte
	ttl       time.Duration
}

// NewJWTManager creates a manager signing with secretKey. adminKey is the
// shared secret exchanged for admin tokens; an empty key disables admin
// tokens.
func NewJWTManager(secretKey, adminKey string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTManager{
		secretKey: []byte(secretKey),
		adminKey:  []byte(adminKey),
		ttl:       ttl,
	}
}

// GenerateToken issues a participant token for username.
func (j *JWTManager) GenerateToken(username string) (string, error) {
	if username == "" {
		return "", errors.New("username cannot be empty")
	}
	return j.sign(username, EntityParticipant)
}

// GenerateAdminToken exchanges the admin key for an admin token.
func (j *JWTManager) GenerateAdminToken(key string) (string, error) {
	if len(j.adminKey) == 0 || !hmac.Equal(j.adminKey, []byte(key)) {
		return "", ErrWrongAdminKey
	}
	return j.sign("admin", EntityAdmin)
}

func (j *JWTManager) sign(subject, entityType string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Username:   subject,
		EntityType: entityType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken validates a JWT token and returns the claims. A "Bearer "
// prefix is accepted.
func (j *JWTManager) ValidateToken(tokenString string) (*CustomClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid && claims.Username != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ValidateAdminToken accepts only tokens issued by GenerateAdminToken.
func (j *JWTManager) ValidateAdminToken(tokenString string) (*CustomClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.EntityType != EntityAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}
