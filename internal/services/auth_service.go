package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/terraincognita07/stepdash/internal/models"
	"github.com/terraincognita07/stepdash/internal/security"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type AuthUserRepository interface {
	ExistsByNormalizedEmail(email string) (bool, error)
	FindByNormalizedEmail(email string) (models.User, error)
	FindByUID(uid string) (models.User, error)
	Create(user *models.User) error
	UpdatePassword(userID uint, passwordHash string, mustChangePassword bool) error
}

type AuthService struct {
	users     AuthUserRepository
	secretKey []byte
	mailer    Mailer
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
	hashCost  int
}

func NewAuthService(users AuthUserRepository, secretKey []byte, mailer Mailer, baseURL string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &AuthService{
		users:     users,
		secretKey: secretKey,
		mailer:    mailer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
		hashCost:  bcrypt.DefaultCost,
	}
}

func (service *AuthService) SignUp(emailRaw string, password string, confirmation string) (models.User, error) {
	email := NormalizeAuthEmail(emailRaw)
	if email == "" {
		return models.User{}, ErrAuthCredentialsInvalid
	}
	if err := ValidateNewPassword(password, confirmation); err != nil {
		return models.User{}, err
	}

	exists, err := service.users.ExistsByNormalizedEmail(email)
	if err != nil {
		return models.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return models.User{}, ErrEmailExists
	}

	passwordHash, err := service.hashPassword(strings.TrimSpace(password))
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    service.now().UTC(),
	}
	if err := service.users.Create(&user); err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (service *AuthService) SignIn(emailRaw string, passwordRaw string) (models.User, error) {
	email, password, err := NormalizeCredentialsInput(emailRaw, passwordRaw)
	if err != nil {
		return models.User{}, err
	}

	user, err := service.users.FindByNormalizedEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrAuthCredentialsInvalid
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrAuthCredentialsInvalid
	}
	return user, nil
}

func (service *AuthService) FindByUID(uid string) (models.User, error) {
	user, err := service.users.FindByUID(uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// IssueSessionToken signs a session for user.
func (service *AuthService) IssueSessionToken(user *models.User, rememberMe bool) (string, time.Duration, error) {
	ttl := SessionTTL(rememberMe)
	token, err := BuildSessionToken(service.secretKey, user, ttl, service.now())
	return token, ttl, err
}

// Authenticate resolves the user behind a session token.
func (service *AuthService) Authenticate(rawToken string) (models.User, error) {
	claims, err := ParseSessionToken(service.secretKey, rawToken, service.now())
	if err != nil {
		return models.User{}, err
	}
	return service.FindByUID(claims.UID)
}

func (service *AuthService) IssuePasswordResetToken(user *models.User) (string, error) {
	return BuildPasswordResetToken(service.secretKey, user.UID, user.PasswordHash, DefaultPasswordResetTTL, service.now())
}

// RequestPasswordReset mails a reset link when the address belongs to an
// account. Unknown addresses succeed silently.
func (service *AuthService) RequestPasswordReset(ctx context.Context, emailRaw string) error {
	email := NormalizeAuthEmail(emailRaw)
	if email == "" {
		return ErrAuthCredentialsInvalid
	}

	user, err := service.users.FindByNormalizedEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		service.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	token, err := service.IssuePasswordResetToken(&user)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	return service.mailer.SendPasswordReset(ctx, user.Email, service.ResetLink(token))
}

func (service *AuthService) ResetLink(token string) string {
	return service.baseURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (service *AuthService) ResolveUserByResetToken(rawToken string) (models.User, error) {
	claims, err := ParsePasswordResetToken(service.secretKey, rawToken, service.now())
	if err != nil {
		return models.User{}, err
	}

	user, err := service.users.FindByUID(claims.UID)
	if err != nil {
		return models.User{}, ErrPasswordResetTokenInvalidUserID
	}
	if !IsPasswordStateFingerprintMatch(claims.PasswordState, user.PasswordHash) {
		return models.User{}, ErrPasswordResetTokenInvalidPasswordState
	}
	return user, nil
}

func (service *AuthService) ResetPassword(rawToken string, password string, confirmation string) (models.User, error) {
	if err := ValidateNewPassword(password, confirmation); err != nil {
		return models.User{}, err
	}
	user, err := service.ResolveUserByResetToken(rawToken)
	if err != nil {
		return models.User{}, err
	}

	passwordHash, err := service.hashPassword(strings.TrimSpace(password))
	if err != nil {
		return models.User{}, err
	}
	if err := service.users.UpdatePassword(user.ID, passwordHash, false); err != nil {
		return models.User{}, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = passwordHash
	user.MustChangePassword = false
	return user, nil
}

// SetTemporaryPassword replaces the password of the account with a random
// one that must be changed at next sign-in.
func (service *AuthService) SetTemporaryPassword(emailRaw string) (string, error) {
	email := NormalizeAuthEmail(emailRaw)
	if email == "" {
		return "", ErrAuthCredentialsInvalid
	}
	user, err := service.users.FindByNormalizedEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	temporary, err := GenerateTemporaryPassword(12)
	if err != nil {
		return "", fmt.Errorf("generate temporary password: %w", err)
	}
	passwordHash, err := service.hashPassword(temporary)
	if err != nil {
		return "", err
	}
	if err := service.users.UpdatePassword(user.ID, passwordHash, true); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	return temporary, nil
}

// GenerateTemporaryPassword returns a random password that satisfies
// ValidatePasswordStrength.
func GenerateTemporaryPassword(length int) (string, error) {
	const (
		upper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
		lower  = "abcdefghijkmnopqrstuvwxyz"
		digits = "23456789"
	)
	if length < minPasswordLength {
		length = minPasswordLength
	}

	for {
		candidate, err := security.RandomString(length, upper+lower+digits)
		if err != nil {
			return "", err
		}
		if ValidatePasswordStrength(candidate) == nil {
			return candidate, nil
		}
	}
}

func (service *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), service.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
