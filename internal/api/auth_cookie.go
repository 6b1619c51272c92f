package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/models"
	"github.com/terraincognita07/stepdash/internal/services"
)

var errPasswordChangeRequired = errors.New("password change required")

func (handler *Handler) setAuthCookie(c *fiber.Ctx, user *models.User, rememberMe bool) error {
	token, ttl, err := handler.auth.IssueSessionToken(user, rememberMe)
	if err != nil {
		return err
	}

	cookie := &fiber.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
	}
	if rememberMe {
		cookie.Expires = time.Now().Add(ttl)
	}
	c.Cookie(cookie)
	return nil
}

func (handler *Handler) clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

func (handler *Handler) authenticateRequest(c *fiber.Ctx) (*models.User, error) {
	rawToken := strings.TrimSpace(c.Cookies(authCookieName))
	if rawToken == "" {
		return nil, services.ErrSessionTokenInvalid
	}

	user, err := handler.auth.Authenticate(rawToken)
	if err != nil {
		return nil, err
	}
	if user.MustChangePassword {
		return nil, errPasswordChangeRequired
	}
	return &user, nil
}

func (handler *Handler) optionalAuthenticatedUser(c *fiber.Ctx) *models.User {
	user, err := handler.authenticateRequest(c)
	if err != nil {
		return nil
	}
	return user
}

// The forced-change token travels in a cookie so it never shows up in a URL.
func (handler *Handler) setResetPasswordCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     resetPasswordCookieName,
		Value:    strings.TrimSpace(token),
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Strict",
		Expires:  time.Now().Add(services.DefaultPasswordResetTTL),
	})
}

func (handler *Handler) readResetPasswordCookie(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Cookies(resetPasswordCookieName))
}

func (handler *Handler) clearResetPasswordCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     resetPasswordCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Strict",
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}
