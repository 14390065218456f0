package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"outreach/config"
	"outreach/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrTokenExpired = errors.New("token expired")

type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role,omitempty"`
	Type   string      `json:"type"`
	jwt.RegisteredClaims
}

// GenerateJWTToken issues an access and a refresh token for user
func GenerateJWTToken(user *models.User) (string, string, error) {
	accessToken, err := GenerateAccessToken(user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := signToken(&Claims{
		UserID:           user.ID,
		Type:             TokenTypeRefresh,
		RegisteredClaims: registeredClaims(user.ID, config.AppConfig.JWTRefreshExpiresIn),
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GenerateAccessToken issues a short-lived token carrying the user's role
func GenerateAccessToken(user *models.User) (string, error) {
	return signToken(&Claims{
		UserID:           user.ID,
		Role:             user.Role,
		Type:             TokenTypeAccess,
		RegisteredClaims: registeredClaims(user.ID, config.AppConfig.JWTExpiresIn),
	})
}

func registeredClaims(userID uint, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func signToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ParseJWTToken verifies signature and expiry. Expired tokens yield ErrTokenExpired.
func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
