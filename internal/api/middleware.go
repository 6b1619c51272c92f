package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/terraincognita07/stepdash/internal/models"
	"go.uber.org/zap"
)

const (
	authCookieName          = "stepdash_auth"
	languageCookieName      = "stepdash_lang"
	flashCookieName         = "stepdash_flash"
	resetPasswordCookieName = "stepdash_reset"
	contextUserKey          = "current_user"
	contextLanguageKey      = "current_language"
	contextMessagesKey      = "current_messages"
)

func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(contextUserKey).(*models.User)
	return user, ok && user != nil
}

func (handler *Handler) AuthRequired(c *fiber.Ctx) error {
	user, err := handler.authenticateRequest(c)
	if err != nil {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	c.Locals(contextUserKey, user)
	return c.Next()
}

func (handler *Handler) LanguageMiddleware(c *fiber.Ctx) error {
	cookieLanguage := c.Cookies(languageCookieName)
	language := handler.i18n.DetectFromAcceptLanguage(c.Get("Accept-Language"))
	if cookieLanguage != "" {
		language = handler.i18n.NormalizeLanguage(cookieLanguage)
	}

	if cookieLanguage != language {
		handler.setLanguageCookie(c, language)
	}

	c.Locals(contextLanguageKey, language)
	c.Locals(contextMessagesKey, handler.i18n.Messages(language))
	return c.Next()
}

func (handler *Handler) setLanguageCookie(c *fiber.Ctx, language string) {
	c.Cookie(&fiber.Cookie{
		Name:     languageCookieName,
		Value:    handler.i18n.NormalizeLanguage(language),
		Path:     "/",
		HTTPOnly: false,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().AddDate(1, 0, 0),
	})
}

// RequestLogger writes one line per request once the chain has finished.
// Request strings are copied because fiber reuses their memory.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		started := time.Now()
		chainErr := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if chainErr != nil {
			status = fiber.StatusInternalServerError
			if errors.As(chainErr, &fiberErr) {
				status = fiberErr.Code
			}
		}

		fields := []zap.Field{
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("ip", utils.CopyString(c.IP())),
		}
		switch {
		case chainErr != nil || status >= fiber.StatusInternalServerError:
			logger.Error("request", append(fields, zap.Error(chainErr))...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return chainErr
	}
}
