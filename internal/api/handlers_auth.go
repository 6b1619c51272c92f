package api

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/metrics"
	"github.com/terraincognita07/stepdash/internal/services"
	"go.uber.org/zap"
)

func (handler *Handler) Register(c *fiber.Ctx) error {
	credentials, err := parseCredentials(c)
	if err != nil {
		return handler.respondAuthError(c, fiber.StatusBadRequest, "invalid input")
	}

	user, err := handler.auth.SignUp(credentials.Email, credentials.Password, credentials.ConfirmPassword)
	if err != nil {
		status, message, known := authFailure(err)
		if !known {
			handler.logger.Error("sign up failed", zap.Error(err))
			return apiError(c, fiber.StatusInternalServerError, "failed to create account")
		}
		metrics.AuthAttempt("register", "rejected")
		return handler.respondAuthError(c, status, message)
	}
	metrics.AuthAttempt("register", "success")

	if err := handler.setAuthCookie(c, &user, credentials.RememberMe); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to create session")
	}
	if acceptsJSON(c) && !isHTMX(c) {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "uid": user.UID})
	}
	return redirectToPath(c, "/dashboard")
}

func (handler *Handler) Login(c *fiber.Ctx) error {
	now := time.Now()
	limiterKey := requestLimiterKey(c)
	if handler.loginLimiter.blocked(limiterKey, now) {
		metrics.AuthAttempt("login", "throttled")
		return handler.respondAuthError(c, fiber.StatusTooManyRequests, "too many login attempts")
	}

	credentials, err := parseCredentials(c)
	if err != nil {
		handler.loginLimiter.record(limiterKey, now)
		return handler.respondAuthError(c, fiber.StatusBadRequest, "invalid input")
	}

	user, err := handler.auth.SignIn(credentials.Email, credentials.Password)
	if errors.Is(err, services.ErrAuthCredentialsInvalid) {
		handler.loginLimiter.record(limiterKey, now)
		metrics.AuthAttempt("login", "failure")
		return handler.respondAuthError(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		handler.logger.Error("sign in failed", zap.Error(err))
		return apiError(c, fiber.StatusInternalServerError, "failed to sign in")
	}
	handler.loginLimiter.reset(limiterKey)

	if user.MustChangePassword {
		token, err := handler.auth.IssuePasswordResetToken(&user)
		if err != nil {
			return apiError(c, fiber.StatusInternalServerError, "failed to create reset token")
		}
		metrics.AuthAttempt("login", "password_change_required")
		handler.setResetPasswordCookie(c, token)
		if acceptsJSON(c) && !isHTMX(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": errPasswordChangeRequired.Error()})
		}
		return redirectToPath(c, "/reset-password")
	}

	if err := handler.setAuthCookie(c, &user, credentials.RememberMe); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to create session")
	}
	metrics.AuthAttempt("login", "success")
	return redirectOrJSON(c, "/dashboard")
}

func (handler *Handler) Logout(c *fiber.Ctx) error {
	handler.clearAuthCookie(c)
	handler.clearResetPasswordCookie(c)
	return redirectOrJSON(c, "/login")
}

// ForgotPassword answers the same way whether or not the address has an
// account.
func (handler *Handler) ForgotPassword(c *fiber.Ctx) error {
	now := time.Now()
	limiterKey := requestLimiterKey(c)
	if handler.forgotLimiter.blocked(limiterKey, now) {
		metrics.AuthAttempt("forgot_password", "throttled")
		return handler.respondAuthError(c, fiber.StatusTooManyRequests, "too many forgot password attempts")
	}
	handler.forgotLimiter.record(limiterKey, now)

	input, err := parseForgotPasswordInput(c)
	if err != nil {
		return handler.respondAuthError(c, fiber.StatusBadRequest, "invalid input")
	}

	if err := handler.auth.RequestPasswordReset(c.UserContext(), input.Email); err != nil {
		if errors.Is(err, services.ErrAuthCredentialsInvalid) {
			return handler.respondAuthError(c, fiber.StatusBadRequest, "invalid input")
		}
		handler.logger.Error("password reset delivery failed", zap.Error(err))
	}
	metrics.AuthAttempt("forgot_password", "accepted")

	if acceptsJSON(c) && !isHTMX(c) {
		return c.JSON(fiber.Map{"ok": true})
	}
	handler.setFlashCookie(c, FlashPayload{ResetSent: true})
	return redirectToPath(c, "/forgot-password")
}

func (handler *Handler) ResetPassword(c *fiber.Ctx) error {
	input, err := parseResetPasswordInput(c, handler.readResetPasswordCookie(c))
	if err != nil {
		return handler.respondAuthError(c, fiber.StatusBadRequest, "invalid input")
	}

	user, err := handler.auth.ResetPassword(input.Token, input.Password, input.ConfirmPassword)
	if err != nil {
		status, message, known := authFailure(err)
		if !known {
			handler.logger.Error("password reset failed", zap.Error(err))
			return apiError(c, fiber.StatusInternalServerError, "failed to reset password")
		}
		metrics.AuthAttempt("reset_password", "rejected")
		return handler.respondAuthError(c, status, message)
	}
	metrics.AuthAttempt("reset_password", "success")

	handler.clearResetPasswordCookie(c)
	if err := handler.setAuthCookie(c, &user, false); err != nil {
		return apiError(c, fiber.StatusInternalServerError, "failed to create session")
	}
	return redirectOrJSON(c, "/dashboard")
}

// Session reports the signed-in account, or null.
func (handler *Handler) Session(c *fiber.Ctx) error {
	user := handler.optionalAuthenticatedUser(c)
	if user == nil {
		return c.JSON(nil)
	}
	return c.JSON(fiber.Map{"uid": user.UID, "email": user.Email})
}

func authFailure(err error) (int, string, bool) {
	switch {
	case errors.Is(err, services.ErrAuthCredentialsInvalid):
		return fiber.StatusBadRequest, "invalid input", true
	case errors.Is(err, services.ErrEmailExists):
		return fiber.StatusConflict, "email already exists", true
	case errors.Is(err, services.ErrPasswordMismatch):
		return fiber.StatusBadRequest, "password mismatch", true
	case errors.Is(err, services.ErrWeakPassword):
		return fiber.StatusBadRequest, "weak password", true
	case isResetTokenError(err):
		return fiber.StatusBadRequest, "invalid reset token", true
	default:
		return fiber.StatusInternalServerError, "", false
	}
}

func isResetTokenError(err error) bool {
	for _, target := range []error{
		services.ErrPasswordResetTokenMissing,
		services.ErrPasswordResetTokenInvalid,
		services.ErrPasswordResetTokenInvalidPurpose,
		services.ErrPasswordResetTokenExpired,
		services.ErrPasswordResetTokenInvalidUserID,
		services.ErrPasswordResetTokenInvalidPasswordState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondAuthError sends form posts back to their page with a flash and
// answers API and HTMX callers directly.
func (handler *Handler) respondAuthError(c *fiber.Ctx, status int, message string) error {
	if acceptsJSON(c) || isHTMX(c) {
		return apiError(c, status, message)
	}

	flash := FlashPayload{AuthError: message}
	switch c.Path() {
	case "/api/auth/register":
		flash.Email = c.FormValue("email")
		handler.setFlashCookie(c, flash)
		return c.Redirect("/register", fiber.StatusSeeOther)
	case "/api/auth/forgot-password":
		handler.setFlashCookie(c, flash)
		return c.Redirect("/forgot-password", fiber.StatusSeeOther)
	case "/api/auth/reset-password":
		handler.setFlashCookie(c, flash)
		token := strings.TrimSpace(c.FormValue("token"))
		if token == "" || handler.readResetPasswordCookie(c) == token {
			return c.Redirect("/reset-password", fiber.StatusSeeOther)
		}
		return c.Redirect("/reset-password?token="+url.QueryEscape(token), fiber.StatusSeeOther)
	default:
		flash.Email = c.FormValue("email")
		handler.setFlashCookie(c, flash)
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
}
