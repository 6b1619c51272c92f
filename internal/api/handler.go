package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/terraincognita07/stepdash/internal/i18n"
	"github.com/terraincognita07/stepdash/internal/services"
	"github.com/terraincognita07/stepdash/internal/templates"
	"go.uber.org/zap"
)

const (
	loginAttemptsLimit   = 8
	loginAttemptsWindow  = 15 * time.Minute
	forgotAttemptsLimit  = 5
	forgotAttemptsWindow = 15 * time.Minute
)

var pageTemplates = []string{
	"login",
	"register",
	"forgot_password",
	"reset_password",
	"dashboard",
}

type Handler struct {
	auth          *services.AuthService
	dashboards    *services.DashboardService
	i18n          *i18n.Manager
	templates     map[string]*template.Template
	location      *time.Location
	cookieSecure  bool
	logger        *zap.Logger
	loginLimiter  *attemptLimiter
	forgotLimiter *attemptLimiter
}

type Dependencies struct {
	Auth         *services.AuthService
	Dashboards   *services.DashboardService
	I18n         *i18n.Manager
	Location     *time.Location
	CookieSecure bool
	Logger       *zap.Logger
}

func NewHandler(deps Dependencies) (*Handler, error) {
	if deps.Auth == nil || deps.Dashboards == nil {
		return nil, errors.New("auth and dashboard services are required")
	}
	if deps.I18n == nil {
		return nil, errors.New("i18n manager is required")
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	funcMap := template.FuncMap{
		"t": translateMessage,
		"toJSON": templateJSON,
		"formatTime": func(value time.Time) string {
			if value.IsZero() {
				return ""
			}
			return value.In(location).Format("Jan 2, 15:04")
		},
	}

	parsed := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		tmpl, err := template.New("base").Funcs(funcMap).ParseFS(templates.Files, "base.html", page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		parsed[page] = tmpl
	}

	return &Handler{
		auth:          deps.Auth,
		dashboards:    deps.Dashboards,
		i18n:          deps.I18n,
		templates:     parsed,
		location:      location,
		cookieSecure:  deps.CookieSecure,
		logger:        logger,
		loginLimiter:  newAttemptLimiter(loginAttemptsLimit, loginAttemptsWindow),
		forgotLimiter: newAttemptLimiter(forgotAttemptsLimit, forgotAttemptsWindow),
	}, nil
}

// templateJSON embeds value in a script block. An encoding error aborts
// rendering instead of emitting broken script.
func templateJSON(value any) (template.JS, error) {
	serialized, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode template value: %w", err)
	}
	return template.JS(serialized), nil
}
