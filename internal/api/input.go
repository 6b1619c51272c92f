package api

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var inputValidator = validator.New(validator.WithRequiredStructEnabled())

type credentialsInput struct {
	Email           string `json:"email" form:"email" validate:"required,email,max=254"`
	Password        string `json:"password" form:"password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"max=128"`
	RememberMe      bool   `json:"remember_me" form:"remember_me"`
}

type forgotPasswordInput struct {
	Email string `json:"email" form:"email" validate:"required,email,max=254"`
}

type resetPasswordInput struct {
	Token           string `json:"token" form:"token" validate:"required"`
	Password        string `json:"password" form:"password" validate:"required,max=128"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,max=128"`
}

func parseCredentials(c *fiber.Ctx) (credentialsInput, error) {
	input := credentialsInput{}
	if err := c.BodyParser(&input); err != nil {
		return credentialsInput{}, err
	}
	input.Email = strings.TrimSpace(input.Email)
	if err := inputValidator.Struct(&input); err != nil {
		return credentialsInput{}, err
	}
	return input, nil
}

func parseForgotPasswordInput(c *fiber.Ctx) (forgotPasswordInput, error) {
	input := forgotPasswordInput{}
	if err := c.BodyParser(&input); err != nil {
		return forgotPasswordInput{}, err
	}
	input.Email = strings.TrimSpace(input.Email)
	if err := inputValidator.Struct(&input); err != nil {
		return forgotPasswordInput{}, err
	}
	return input, nil
}

// parseResetPasswordInput falls back to cookieToken when the form carries
// no token.
func parseResetPasswordInput(c *fiber.Ctx, cookieToken string) (resetPasswordInput, error) {
	input := resetPasswordInput{}
	if err := c.BodyParser(&input); err != nil {
		return resetPasswordInput{}, err
	}
	input.Token = strings.TrimSpace(input.Token)
	if input.Token == "" {
		input.Token = cookieToken
	}
	if err := inputValidator.Struct(&input); err != nil {
		return resetPasswordInput{}, err
	}
	return input, nil
}
