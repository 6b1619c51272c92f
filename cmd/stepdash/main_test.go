package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/terraincognita07/stepdash/internal/config"
)

func TestCSRFMiddlewareConfigUsesCookieSecureFlag(t *testing.T) {
	secureConfig := csrfMiddlewareConfig(true)
	if !secureConfig.CookieSecure {
		t.Fatal("expected csrf cookie secure flag to be enabled")
	}
	if !secureConfig.CookieHTTPOnly {
		t.Fatal("expected csrf cookie to be httpOnly")
	}
	if secureConfig.CookieName != "stepdash_csrf" {
		t.Fatalf("expected csrf cookie name stepdash_csrf, got %q", secureConfig.CookieName)
	}
	if secureConfig.KeyLookup != "form:csrf_token" {
		t.Fatalf("expected csrf key lookup form:csrf_token, got %q", secureConfig.KeyLookup)
	}
	if secureConfig.ContextKey != "csrf" {
		t.Fatalf("expected csrf context key csrf, got %q", secureConfig.ContextKey)
	}

	insecureConfig := csrfMiddlewareConfig(false)
	if insecureConfig.CookieSecure {
		t.Fatal("expected csrf cookie secure flag to be disabled")
	}
}

func TestCSRFMiddlewareGuardsFormsButNotJSON(t *testing.T) {
	app := fiber.New()
	app.Use(csrf.New(csrfMiddlewareConfig(false)))
	app.Post("/submit", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	formRequest := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("email=a%40example.com"))
	formRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	formResponse, err := app.Test(formRequest, -1)
	if err != nil {
		t.Fatalf("form request failed: %v", err)
	}
	if formResponse.StatusCode != http.StatusForbidden {
		t.Fatalf("expected form post without token to be rejected, got %d", formResponse.StatusCode)
	}

	jsonRequest := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"email":"a@example.com"}`))
	jsonRequest.Header.Set("Content-Type", "application/json")
	jsonResponse, err := app.Test(jsonRequest, -1)
	if err != nil {
		t.Fatalf("json request failed: %v", err)
	}
	if jsonResponse.StatusCode != http.StatusOK {
		t.Fatalf("expected json post to pass, got %d", jsonResponse.StatusCode)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand(config.NewViper())

	for _, name := range []string{"serve", "import", "reset-password"} {
		command, _, err := root.Find([]string{name})
		if err != nil || command == root {
			t.Fatalf("expected %s subcommand, got err=%v", name, err)
		}
	}
}

func TestRootCommandBindsFlagsToConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")

	v := config.NewViper()
	root := newRootCommand(v)
	if got := v.GetString("PORT"); got != "8080" {
		t.Fatalf("expected default port 8080, got %q", got)
	}

	if err := root.PersistentFlags().Parse([]string{"--port", "9191", "--db-path", "/tmp/steps.db"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if got := v.GetString("PORT"); got != "9191" {
		t.Fatalf("expected --port to win, got %q", got)
	}
	if got := v.GetString("DB_PATH"); got != "/tmp/steps.db" {
		t.Fatalf("expected --db-path to win, got %q", got)
	}
}

func TestSubcommandsValidateArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "reset password without email", args: []string{"reset-password"}, want: "accepts 1 arg"},
		{name: "import without flags", args: []string{"import"}, want: "required flag"},
		{name: "serve with extra args", args: []string{"serve", "now"}, want: "unknown command"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			root := newRootCommand(config.NewViper())
			var output bytes.Buffer
			root.SetOut(&output)
			root.SetErr(&output)
			root.SetArgs(test.args)

			err := root.Execute()
			if err == nil {
				t.Fatalf("expected %v to fail", test.args)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Fatalf("expected error containing %q, got %v", test.want, err)
			}
		})
	}
}
