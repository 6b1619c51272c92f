package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/terraincognita07/stepdash/internal/services"
	"github.com/terraincognita07/stepdash/internal/steps"
	"go.uber.org/zap"
)

type dashboardResponse struct {
	Records []steps.Record    `json:"records"`
	Stats   steps.Statistics  `json:"stats"`
	Chart   steps.ChartSeries `json:"chart"`
	Recent  []steps.Record    `json:"recent"`
	Empty   bool              `json:"empty"`
}

// ShowDashboard renders the page for every outcome of a fetch: data, the
// empty state, or an error banner.
func (handler *Handler) ShowDashboard(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	messages := currentMessages(c)
	data := fiber.Map{
		"Title": localizedPageTitle(messages, "meta.title.dashboard", "Stepdash | Dashboard"),
	}

	dashboard, err := handler.dashboards.Load(c.UserContext(), user.UID)
	if err != nil {
		fetchErr, isFetchErr := services.AsFetchError(err)
		if !isFetchErr {
			handler.logger.Error("load dashboard", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).SendString("failed to load dashboard")
		}
		data["FetchError"] = fetchErr.Message
		data["Dashboard"] = steps.Dashboard{}
		c.Status(fetchErr.HTTPStatus())
		return handler.render(c, "dashboard", data)
	}

	data["Dashboard"] = dashboard
	return handler.render(c, "dashboard", data)
}

func (handler *Handler) GetDashboard(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return apiError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	dashboard, err := handler.dashboards.Load(c.UserContext(), user.UID)
	if err != nil {
		if fetchErr, isFetchErr := services.AsFetchError(err); isFetchErr {
			return apiError(c, fetchErr.HTTPStatus(), fetchErr.Message)
		}
		handler.logger.Error("load dashboard", zap.Error(err))
		return apiError(c, fiber.StatusInternalServerError, "failed to load dashboard")
	}

	if err := c.JSON(dashboardResponse{
		Records: dashboard.Records,
		Stats:   dashboard.Stats,
		Chart:   dashboard.Chart,
		Recent:  dashboard.Recent,
		Empty:   dashboard.Empty(),
	}); err != nil {
		handler.logger.Error("encode dashboard", zap.Error(err))
		return apiError(c, fiber.StatusInternalServerError, "failed to load dashboard")
	}
	return nil
}
