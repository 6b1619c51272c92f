package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var authErrorKeys = map[string]string{
	"invalid input":                     "auth.error.invalid_input",
	"invalid credentials":               "auth.error.invalid_credentials",
	"email already exists":              "auth.error.email_exists",
	"weak password":                     "auth.error.weak_password",
	"password mismatch":                 "auth.error.password_mismatch",
	"too many login attempts":           "auth.error.too_many_login_attempts",
	"too many forgot password attempts": "auth.error.too_many_forgot_password_attempts",
	"invalid reset token":               "auth.error.invalid_reset_token",
}

func translateMessage(messages map[string]string, key string) string {
	if key == "" {
		return ""
	}
	if value, ok := messages[key]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return key
}

func authErrorTranslationKey(message string) string {
	return authErrorKeys[strings.ToLower(strings.TrimSpace(message))]
}

func localizedPageTitle(messages map[string]string, key string, fallback string) string {
	title := translateMessage(messages, key)
	if title == key || strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}

func currentLanguage(c *fiber.Ctx) string {
	language, _ := c.Locals(contextLanguageKey).(string)
	return strings.TrimSpace(language)
}

func currentMessages(c *fiber.Ctx) map[string]string {
	messages, ok := c.Locals(contextMessagesKey).(map[string]string)
	if !ok || messages == nil {
		return map[string]string{}
	}
	return messages
}

func (handler *Handler) withTemplateDefaults(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}

	if _, ok := data["Messages"]; !ok {
		data["Messages"] = currentMessages(c)
	}
	if _, ok := data["Lang"]; !ok {
		language := currentLanguage(c)
		if language == "" {
			language = handler.i18n.DefaultLanguage()
		}
		data["Lang"] = language
	}
	if _, ok := data["CurrentPath"]; !ok {
		data["CurrentPath"] = currentPathWithQuery(c)
	}
	if _, ok := data["CSRFToken"]; !ok {
		data["CSRFToken"] = csrfToken(c)
	}
	if _, ok := data["CurrentUser"]; !ok {
		if user, found := currentUser(c); found {
			data["CurrentUser"] = user
		}
	}
	return data
}

func currentPathWithQuery(c *fiber.Ctx) string {
	path := string(c.Request().URI().RequestURI())
	if path == "" {
		return c.Path()
	}
	return path
}
