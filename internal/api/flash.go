package api

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/services"
)

// FlashPayload carries one-shot page state across a form redirect.
type FlashPayload struct {
	AuthError string `json:"auth_error,omitempty"`
	Email     string `json:"email,omitempty"`
	ResetSent bool   `json:"reset_sent,omitempty"`
}

func (payload FlashPayload) normalized() FlashPayload {
	payload.AuthError = strings.TrimSpace(payload.AuthError)
	payload.Email = services.NormalizeAuthEmail(payload.Email)
	return payload
}

func (payload FlashPayload) empty() bool {
	return payload.AuthError == "" && payload.Email == "" && !payload.ResetSent
}

func (handler *Handler) setFlashCookie(c *fiber.Ctx, payload FlashPayload) {
	payload = payload.normalized()
	if payload.empty() {
		handler.clearFlashCookie(c)
		return
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return
	}

	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(serialized),
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(5 * time.Minute),
	})
}

func (handler *Handler) popFlashCookie(c *fiber.Ctx) FlashPayload {
	raw := strings.TrimSpace(c.Cookies(flashCookieName))
	if raw == "" {
		return FlashPayload{}
	}
	handler.clearFlashCookie(c)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return FlashPayload{}
	}
	payload := FlashPayload{}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return FlashPayload{}
	}
	return payload.normalized()
}

func (handler *Handler) clearFlashCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: "Lax",
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}
