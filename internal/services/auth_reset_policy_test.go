package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testPasswordHash = "$2a$10$testhashvaluefortokenclaims"

func TestBuildAndParsePasswordResetToken(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	token, err := BuildPasswordResetToken(secret, "uid-42", testPasswordHash, 30*time.Minute, now)
	if err != nil {
		t.Fatalf("BuildPasswordResetToken() unexpected error: %v", err)
	}

	claims, err := ParsePasswordResetToken(secret, token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ParsePasswordResetToken() unexpected error: %v", err)
	}
	if claims.UID != "uid-42" {
		t.Fatalf("expected uid-42, got %q", claims.UID)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
	if !IsPasswordStateFingerprintMatch(claims.PasswordState, testPasswordHash) {
		t.Fatal("expected password state to match the issuing hash")
	}
	if IsPasswordStateFingerprintMatch(claims.PasswordState, "$2a$10$anotherhash") {
		t.Fatal("expected password state to reject a different hash")
	}
}

func TestPasswordResetTokensAreUnique(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	first, err := BuildPasswordResetToken(secret, "uid-1", testPasswordHash, 0, now)
	if err != nil {
		t.Fatalf("build first token: %v", err)
	}
	second, err := BuildPasswordResetToken(secret, "uid-1", testPasswordHash, 0, now)
	if err != nil {
		t.Fatalf("build second token: %v", err)
	}
	if first == second {
		t.Fatal("expected tokens issued at the same instant to differ")
	}
}

func TestParsePasswordResetTokenRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	token, err := BuildPasswordResetToken(secret, "uid-42", testPasswordHash, time.Minute, now)
	if err != nil {
		t.Fatalf("BuildPasswordResetToken() unexpected error: %v", err)
	}
	if _, err := ParsePasswordResetToken(secret, token, now.Add(2*time.Minute)); !errors.Is(err, ErrPasswordResetTokenExpired) {
		t.Fatalf("expected ErrPasswordResetTokenExpired, got %v", err)
	}
}

func TestParsePasswordResetTokenRejectsTampering(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	token, err := BuildPasswordResetToken([]byte("secret-a"), "uid-42", testPasswordHash, time.Minute, now)
	if err != nil {
		t.Fatalf("BuildPasswordResetToken() unexpected error: %v", err)
	}

	if _, err := ParsePasswordResetToken([]byte("secret-b"), token, now); !errors.Is(err, ErrPasswordResetTokenInvalid) {
		t.Fatalf("expected ErrPasswordResetTokenInvalid, got %v", err)
	}
	if _, err := ParsePasswordResetToken([]byte("secret-a"), "  ", now); !errors.Is(err, ErrPasswordResetTokenMissing) {
		t.Fatalf("expected ErrPasswordResetTokenMissing, got %v", err)
	}
}

func TestParsePasswordResetTokenRejectsWrongPurpose(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	claims := PasswordResetClaims{
		UID:           "uid-42",
		Purpose:       "session",
		PasswordState: PasswordStateFingerprint(testPasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParsePasswordResetToken(secret, token, now); !errors.Is(err, ErrPasswordResetTokenInvalidPurpose) {
		t.Fatalf("expected ErrPasswordResetTokenInvalidPurpose, got %v", err)
	}
}

func TestBuildPasswordResetTokenRequiresState(t *testing.T) {
	if _, err := BuildPasswordResetToken([]byte("s"), "uid", "", time.Minute, time.Now()); !errors.Is(err, ErrPasswordResetTokenInvalidPasswordState) {
		t.Fatalf("expected ErrPasswordResetTokenInvalidPasswordState, got %v", err)
	}
	if _, err := BuildPasswordResetToken([]byte("s"), " ", testPasswordHash, time.Minute, time.Now()); !errors.Is(err, ErrPasswordResetTokenInvalidUserID) {
		t.Fatalf("expected ErrPasswordResetTokenInvalidUserID, got %v", err)
	}
}
