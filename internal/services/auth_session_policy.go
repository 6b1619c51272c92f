package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/terraincognita07/stepdash/internal/models"
)

const (
	DefaultSessionTTL  = 7 * 24 * time.Hour
	RememberSessionTTL = 30 * 24 * time.Hour

	sessionTokenPurpose = "session"
)

var ErrSessionTokenInvalid = errors.New("invalid session token")

type SessionClaims struct {
	UID     string `json:"uid"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

func SessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return RememberSessionTTL
	}
	return DefaultSessionTTL
}

func BuildSessionToken(secretKey []byte, user *models.User, ttl time.Duration, now time.Time) (string, error) {
	if user == nil || strings.TrimSpace(user.UID) == "" {
		return "", ErrSessionTokenInvalid
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now.IsZero() {
		now = time.Now()
	}

	claims := SessionClaims{
		UID:     user.UID,
		Purpose: sessionTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

func ParseSessionToken(secretKey []byte, rawToken string, now time.Time) (*SessionClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrSessionTokenInvalid
	}
	if now.IsZero() {
		now = time.Now()
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secretKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrSessionTokenInvalid
	}
	if claims.Purpose != sessionTokenPurpose || strings.TrimSpace(claims.UID) == "" {
		return nil, ErrSessionTokenInvalid
	}
	return claims, nil
}
