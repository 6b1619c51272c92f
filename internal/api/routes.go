package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/metrics"
)

func RegisterRoutes(app *fiber.App, handler *Handler) {
	registerPageRoutes(app, handler)
	registerAPIRoutes(app, handler)
}

func registerPageRoutes(app *fiber.App, handler *Handler) {
	app.Get("/healthz", handler.Health)
	app.Get("/metrics", metrics.Handler())
	app.Get("/favicon.ico", sendNoContent)
	app.Get("/lang/:lang", handler.SetLanguage)

	app.Get("/login", handler.ShowLoginPage)
	app.Get("/register", handler.ShowRegisterPage)
	app.Get("/forgot-password", handler.ShowForgotPasswordPage)
	app.Get("/reset-password", handler.ShowResetPasswordPage)
	app.Get("/", handler.AuthRequired, handler.ShowDashboard)
	app.Get("/dashboard", handler.AuthRequired, handler.ShowDashboard)
}

func registerAPIRoutes(app *fiber.App, handler *Handler) {
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", handler.Register)
	auth.Post("/login", handler.Login)
	auth.Post("/forgot-password", handler.ForgotPassword)
	auth.Post("/reset-password", handler.ResetPassword)
	auth.Post("/logout", handler.Logout)
	auth.Get("/session", handler.Session)

	stepsGroup := api.Group("/steps", handler.AuthRequired)
	stepsGroup.Get("/dashboard", handler.GetDashboard)
}

func sendNoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
