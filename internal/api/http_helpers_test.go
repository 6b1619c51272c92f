package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedirectPath(t *testing.T) {
	t.Parallel()

	fallback := "/"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty uses fallback", raw: "", want: fallback},
		{name: "absolute url blocked", raw: "https://evil.example", want: fallback},
		{name: "protocol relative blocked", raw: "//evil.example", want: fallback},
		{name: "path without leading slash blocked", raw: "dashboard", want: fallback},
		{name: "local path kept", raw: "/dashboard", want: "/dashboard"},
		{name: "local path with query kept", raw: "/reset-password?token=abc", want: "/reset-password?token=abc"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			if got := sanitizeRedirectPath(test.raw, fallback); got != test.want {
				t.Fatalf("sanitizeRedirectPath(%q) = %q, want %q", test.raw, got, test.want)
			}
		})
	}
}

func TestAttemptLimiterWindowAndReset(t *testing.T) {
	t.Parallel()

	limiter := newAttemptLimiter(2, time.Hour)
	key := "127.0.0.1"
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	limiter.record(key, now.Add(-2*time.Hour))
	limiter.record(key, now.Add(-30*time.Minute))
	if limiter.blocked(key, now) {
		t.Fatal("expected attempt outside the window to be pruned")
	}

	limiter.record(key, now.Add(-time.Minute))
	if !limiter.blocked(key, now) {
		t.Fatal("expected two recent attempts to hit the limit")
	}
	if limiter.blocked("10.0.0.1", now) {
		t.Fatal("expected other clients to be unaffected")
	}

	limiter.reset(key)
	if limiter.blocked(key, now) {
		t.Fatal("expected no attempts after reset")
	}
}

func TestFlashCookieRoundTrip(t *testing.T) {
	handler := &Handler{cookieSecure: true}
	app := fiber.New()
	app.Get("/set", func(c *fiber.Ctx) error {
		handler.setFlashCookie(c, FlashPayload{AuthError: " invalid credentials ", Email: " USER@example.com "})
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/pop", func(c *fiber.Ctx) error {
		return c.JSON(handler.popFlashCookie(c))
	})

	setResponse, err := app.Test(httptest.NewRequest(http.MethodGet, "/set", nil), -1)
	if err != nil {
		t.Fatalf("set request failed: %v", err)
	}
	cookie := responseCookie(setResponse.Cookies(), flashCookieName)
	if cookie == nil || !cookie.Secure || !cookie.HttpOnly {
		t.Fatalf("expected secure HttpOnly flash cookie, got %+v", cookie)
	}

	popRequest := httptest.NewRequest(http.MethodGet, "/pop", nil)
	popRequest.Header.Set("Cookie", flashCookieName+"="+cookie.Value)
	popResponse, err := app.Test(popRequest, -1)
	if err != nil {
		t.Fatalf("pop request failed: %v", err)
	}
	defer popResponse.Body.Close()

	cleared := responseCookie(popResponse.Cookies(), flashCookieName)
	if cleared == nil || cleared.Value != "" {
		t.Fatal("expected flash cookie to be cleared once read")
	}

	payload := map[string]any{}
	if err := json.NewDecoder(popResponse.Body).Decode(&payload); err != nil {
		t.Fatalf("decode flash payload: %v", err)
	}
	if payload["auth_error"] != "invalid credentials" || payload["email"] != "user@example.com" {
		t.Fatalf("unexpected flash payload %v", payload)
	}
}

func TestRequestLoggerRecordsStatusAndPath(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	for _, path := range []string{"/ok", "/missing"} {
		response, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		response.Body.Close()
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two log entries, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["path"] != "/ok" || first["status"] != int64(200) || first["method"] != "GET" {
		t.Fatalf("unexpected first entry %v", first)
	}
	if entries[1].Level != zap.WarnLevel {
		t.Fatalf("expected 404 to log at warn, got %s", entries[1].Level)
	}
	if second := entries[1].ContextMap(); second["path"] != "/missing" || second["status"] != int64(404) {
		t.Fatalf("unexpected second entry %v", second)
	}
}

func TestRequestLoggerFieldsSurviveLaterRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core)))
	app.Get("/steps/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	paths := []string{"/steps/first-document", "/steps/x", "/steps/another-long-identifier", "/steps/y"}
	for _, path := range paths {
		response, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		response.Body.Close()
	}

	entries := logs.All()
	if len(entries) != len(paths) {
		t.Fatalf("expected %d log entries, got %d", len(paths), len(entries))
	}
	for index, entry := range entries {
		fields := entry.ContextMap()
		if fields["path"] != paths[index] || fields["method"] != http.MethodGet {
			t.Fatalf("entry %d changed after later requests: %v", index, fields)
		}
	}
}

func TestHealthAndNotFound(t *testing.T) {
	env := newTestApp(t)

	response, body := getPage(t, env.app, "/healthz", "")
	if response.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %q", response.StatusCode, body)
	}

	missing := sendJSON(t, env.app, http.MethodGet, "/api/nothing-here", "", nil)
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", missing.StatusCode)
	}
	if got := readAPIError(t, missing.Body); got != "not found" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestMetricsEndpointIsExposed(t *testing.T) {
	env := newTestApp(t)

	response, body := getPage(t, env.app, "/metrics", "")
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.StatusCode)
	}
	if !strings.Contains(body, "stepdash_dashboard_fetches_total") && !strings.Contains(body, "go_goroutines") {
		t.Fatal("expected prometheus exposition format")
	}
}

func TestTemplateJSONFailsOnUnencodableValues(t *testing.T) {
	encoded, err := templateJSON([]string{"08:05", "12:00"})
	if err != nil {
		t.Fatalf("templateJSON() unexpected error: %v", err)
	}
	if string(encoded) != `["08:05","12:00"]` {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	if _, err := templateJSON([]float64{math.NaN()}); err == nil {
		t.Fatal("expected NaN to fail encoding")
	}
}
