package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Issuer is the iss claim of every token minted here
const Issuer = "ambientd"

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	UID      string `json:"uid"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token operations
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewJWTManager creates new JWT manager
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	// If no secret provided, generate random one
	if secretKey == "" {
		secretKey = generateRandomSecret()
	}
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// generateRandomSecret generates random 32-byte secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GenerateToken creates new JWT token for an operator
func (m *JWTManager) GenerateToken(user *User) (string, error) {
	if user == nil || user.Username == "" {
		return "", errors.New("operator name is required")
	}
	claims := &Claims{
		Username: user.Username,
		UID:      user.UID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken validates JWT token and returns claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Issuer != Issuer {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenDuration returns how long minted tokens stay valid
func (m *JWTManager) TokenDuration() time.Duration {
	return m.tokenDuration
}

// RefreshToken creates new token with extended expiration
func (m *JWTManager) RefreshToken(tokenString string) (string, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	// Create user from claims
	user := &User{
		Username: claims.Username,
		UID:      claims.UID,
		Role:     claims.Role,
	}

	return m.GenerateToken(user)
}
