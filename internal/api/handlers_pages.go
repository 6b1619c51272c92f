package api

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func (handler *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (handler *Handler) SetLanguage(c *fiber.Ctx) error {
	language := handler.i18n.NormalizeLanguage(c.Params("lang"))
	handler.setLanguageCookie(c, language)
	return redirectToPath(c, sanitizeRedirectPath(c.Query("next"), "/"))
}

func (handler *Handler) ShowLoginPage(c *fiber.Ctx) error {
	if handler.optionalAuthenticatedUser(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}

	flash := handler.popFlashCookie(c)
	messages := currentMessages(c)
	return handler.render(c, "login", fiber.Map{
		"Title":    localizedPageTitle(messages, "meta.title.login", "Stepdash | Sign in"),
		"ErrorKey": authErrorTranslationKey(flash.AuthError),
		"Email":    flash.Email,
	})
}

func (handler *Handler) ShowRegisterPage(c *fiber.Ctx) error {
	if handler.optionalAuthenticatedUser(c) != nil {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}

	flash := handler.popFlashCookie(c)
	messages := currentMessages(c)
	return handler.render(c, "register", fiber.Map{
		"Title":    localizedPageTitle(messages, "meta.title.register", "Stepdash | Create account"),
		"ErrorKey": authErrorTranslationKey(flash.AuthError),
		"Email":    flash.Email,
	})
}

func (handler *Handler) ShowForgotPasswordPage(c *fiber.Ctx) error {
	flash := handler.popFlashCookie(c)
	messages := currentMessages(c)
	return handler.render(c, "forgot_password", fiber.Map{
		"Title":    localizedPageTitle(messages, "meta.title.forgot_password", "Stepdash | Forgot password"),
		"ErrorKey": authErrorTranslationKey(flash.AuthError),
		"Sent":     flash.ResetSent,
	})
}

// ShowResetPasswordPage takes the token from the mailed link, or from the
// cookie set when sign-in demanded a password change.
func (handler *Handler) ShowResetPasswordPage(c *fiber.Ctx) error {
	flash := handler.popFlashCookie(c)
	messages := currentMessages(c)

	token := strings.TrimSpace(c.Query("token"))
	forced := false
	if token == "" {
		token = handler.readResetPasswordCookie(c)
		forced = token != ""
	}

	return handler.render(c, "reset_password", fiber.Map{
		"Title":    localizedPageTitle(messages, "meta.title.reset_password", "Stepdash | Reset password"),
		"ErrorKey": authErrorTranslationKey(flash.AuthError),
		"Token":    token,
		"Forced":   forced,
	})
}

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/api/") || acceptsJSON(c) {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if isHTMX(c) {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("<div class=\"status-error\">%s</div>", template.HTMLEscapeString("Page not found")))
	}
	return c.Status(fiber.StatusNotFound).SendString("Page not found")
}
