package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/db"
	"github.com/terraincognita07/stepdash/internal/docstore"
	"github.com/terraincognita07/stepdash/internal/i18n"
	"github.com/terraincognita07/stepdash/internal/models"
	"github.com/terraincognita07/stepdash/internal/services"
	"github.com/terraincognita07/stepdash/internal/steps"
	"gorm.io/gorm"
)

const testSecretKey = "stepdash-test-secret-key-0123456789abcdef"

type testEnv struct {
	app      *fiber.App
	database *gorm.DB
	auth     *services.AuthService
	store    docstore.Store
	mailer   *recordingMailer
}

type recordingMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (mailer *recordingMailer) SendPasswordReset(_ context.Context, to string, link string) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	mailer.links[to] = link
	return nil
}

func (mailer *recordingMailer) linkFor(to string) (string, bool) {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	link, ok := mailer.links[to]
	return link, ok
}

func (mailer *recordingMailer) count() int {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	return len(mailer.links)
}

// failingStore simulates an unreachable or broken step store.
type failingStore struct {
	pingErr  error
	queryErr error
}

func (store failingStore) Ping(context.Context) error {
	return store.pingErr
}

func (store failingStore) Query(context.Context, string, docstore.Filter) ([]docstore.Document, error) {
	return nil, store.queryErr
}

func (store failingStore) Put(context.Context, string, docstore.Document) error {
	return errors.New("read-only store")
}

func (store failingStore) Close() error {
	return nil
}

func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	return newTestAppWithStore(t, nil, false)
}

func newTestAppWithStore(t *testing.T, store docstore.Store, cookieSecure bool) *testEnv {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "stepdash-api-test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if store == nil {
		store = docstore.NewSQLiteStore(database)
	}

	i18nManager, err := i18n.NewManager("en")
	if err != nil {
		t.Fatalf("init i18n: %v", err)
	}

	mailer := &recordingMailer{links: map[string]string{}}
	repositories := db.NewRepositories(database)
	authService := services.NewAuthService(repositories.Users, []byte(testSecretKey), mailer, "http://stepdash.test", nil)
	dashboardService := services.NewDashboardService(store, services.DashboardOptions{
		Location:     time.UTC,
		QueryTimeout: 5 * time.Second,
	})

	handler, err := NewHandler(Dependencies{
		Auth:         authService,
		Dashboards:   dashboardService,
		I18n:         i18nManager,
		Location:     time.UTC,
		CookieSecure: cookieSecure,
	})
	if err != nil {
		t.Fatalf("init handler: %v", err)
	}

	app := fiber.New()
	app.Use(handler.LanguageMiddleware)
	RegisterRoutes(app, handler)
	app.Use(handler.NotFound)

	return &testEnv{
		app:      app,
		database: database,
		auth:     authService,
		store:    store,
		mailer:   mailer,
	}
}

func createTestUser(t *testing.T, env *testEnv, email string, password string) models.User {
	t.Helper()

	user, err := env.auth.SignUp(email, password, password)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func loginAndGetAuthCookie(t *testing.T, env *testEnv, email string, password string) string {
	t.Helper()

	response := sendJSON(t, env.app, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected status 200, got %d", email, response.StatusCode)
	}
	value := responseCookieValue(response.Cookies(), authCookieName)
	if value == "" {
		t.Fatalf("login %s: expected auth cookie", email)
	}
	return authCookieName + "=" + value
}

func putStepDocument(t *testing.T, env *testEnv, id string, fields map[string]any) {
	t.Helper()

	if err := env.store.Put(context.Background(), steps.CollectionName, docstore.Document{ID: id, Fields: fields}); err != nil {
		t.Fatalf("put step document %s: %v", id, err)
	}
}

func sendJSON(t *testing.T, app *fiber.App, method string, path string, cookie string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode payload: %v", err)
		}
		body = strings.NewReader(string(encoded))
	}

	request := httptest.NewRequest(method, path, body)
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}

	response, err := app.Test(request, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return response
}

func sendForm(t *testing.T, app *fiber.App, path string, cookie string, form url.Values) *http.Response {
	t.Helper()

	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}

	response, err := app.Test(request, -1)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return response
}

func getPage(t *testing.T, app *fiber.App, path string, cookie string) (*http.Response, string) {
	t.Helper()

	request := httptest.NewRequest(http.MethodGet, path, nil)
	request.Header.Set("Accept-Language", "en")
	if cookie != "" {
		request.Header.Set("Cookie", cookie)
	}

	response, err := app.Test(request, -1)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("GET %s read body failed: %v", path, err)
	}
	return response, string(body)
}

func responseCookieValue(cookies []*http.Cookie, name string) string {
	if cookie := responseCookie(cookies, name); cookie != nil {
		return cookie.Value
	}
	return ""
}

func responseCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func readAPIError(t *testing.T, body io.Reader) string {
	t.Helper()

	payload := map[string]string{}
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode response body %q: %v", raw, err)
	}
	return payload["error"]
}
