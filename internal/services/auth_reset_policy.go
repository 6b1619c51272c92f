package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	passwordResetTokenPurpose = "password_reset"
	DefaultPasswordResetTTL   = 30 * time.Minute
)

var (
	ErrPasswordResetTokenMissing              = errors.New("missing reset token")
	ErrPasswordResetTokenInvalid              = errors.New("invalid reset token")
	ErrPasswordResetTokenInvalidPurpose       = errors.New("invalid reset token purpose")
	ErrPasswordResetTokenExpired              = errors.New("expired reset token")
	ErrPasswordResetTokenInvalidUserID        = errors.New("invalid reset token user id")
	ErrPasswordResetTokenInvalidPasswordState = errors.New("invalid reset token password state")
)

// PasswordResetClaims binds a reset link to the password hash it was issued
// against, so the link stops working once the password changes.
type PasswordResetClaims struct {
	UID           string `json:"uid"`
	Purpose       string `json:"purpose"`
	PasswordState string `json:"password_state"`
	jwt.RegisteredClaims
}

func BuildPasswordResetToken(secretKey []byte, uid string, passwordHash string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPasswordResetTTL
	}
	if now.IsZero() {
		now = time.Now()
	}
	if strings.TrimSpace(uid) == "" {
		return "", ErrPasswordResetTokenInvalidUserID
	}

	passwordState := PasswordStateFingerprint(passwordHash)
	if passwordState == "" {
		return "", ErrPasswordResetTokenInvalidPasswordState
	}

	claims := PasswordResetClaims{
		UID:           uid,
		Purpose:       passwordResetTokenPurpose,
		PasswordState: passwordState,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

func ParsePasswordResetToken(secretKey []byte, rawToken string, now time.Time) (*PasswordResetClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrPasswordResetTokenMissing
	}
	if now.IsZero() {
		now = time.Now()
	}

	claims := &PasswordResetClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secretKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrPasswordResetTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, ErrPasswordResetTokenInvalid
	}

	switch {
	case claims.Purpose != passwordResetTokenPurpose:
		return nil, ErrPasswordResetTokenInvalidPurpose
	case claims.ExpiresAt == nil:
		return nil, ErrPasswordResetTokenExpired
	case strings.TrimSpace(claims.UID) == "":
		return nil, ErrPasswordResetTokenInvalidUserID
	case strings.TrimSpace(claims.PasswordState) == "":
		return nil, ErrPasswordResetTokenInvalidPasswordState
	}
	return claims, nil
}

func PasswordStateFingerprint(passwordHash string) string {
	normalizedHash := strings.TrimSpace(passwordHash)
	if normalizedHash == "" {
		return ""
	}

	sum := sha256.Sum256([]byte("stepdash.reset.password-state.v1:" + normalizedHash))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func IsPasswordStateFingerprintMatch(expected string, passwordHash string) bool {
	actual := PasswordStateFingerprint(passwordHash)
	if strings.TrimSpace(expected) == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
