package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/terraincognita07/stepdash/internal/docstore"
	"github.com/terraincognita07/stepdash/internal/metrics"
	"github.com/terraincognita07/stepdash/internal/steps"
	"go.uber.org/zap"
)

const unavailableMessage = "Unable to reach the step store. Check your connection and try again."

type FetchErrorKind string

const (
	FetchUnavailable FetchErrorKind = "unavailable"
	FetchQueryFailed FetchErrorKind = "query_failed"
)

// FetchError is returned by DashboardService.Load. Message is safe to show
// to the signed-in user.
type FetchError struct {
	Kind    FetchErrorKind
	Message string
	Err     error
}

func (fetchErr *FetchError) Error() string {
	if fetchErr.Err == nil {
		return fetchErr.Message
	}
	return fmt.Sprintf("%s: %v", fetchErr.Kind, fetchErr.Err)
}

func (fetchErr *FetchError) Unwrap() error {
	return fetchErr.Err
}

func (fetchErr *FetchError) HTTPStatus() int {
	if fetchErr.Kind == FetchUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func AsFetchError(err error) (*FetchError, bool) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}

type DashboardOptions struct {
	Location     *time.Location
	RecentLimit  int
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

type DashboardService struct {
	store        docstore.Store
	location     *time.Location
	recentLimit  int
	queryTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewDashboardService(store docstore.Store, options DashboardOptions) *DashboardService {
	service := &DashboardService{
		store:        store,
		location:     options.Location,
		recentLimit:  options.RecentLimit,
		queryTimeout: options.QueryTimeout,
		logger:       options.Logger,
		now:          time.Now,
	}
	if service.location == nil {
		service.location = time.UTC
	}
	if service.recentLimit <= 0 {
		service.recentLimit = steps.DefaultRecentLimit
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	return service
}

// Load fetches every step document of userID and builds a fresh dashboard.
// Nothing is cached between calls.
func (service *DashboardService) Load(ctx context.Context, userID string) (steps.Dashboard, error) {
	started := time.Now()
	if service.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, service.queryTimeout)
		defer cancel()
	}
	logger := service.logger.With(zap.String("user", userID))

	if err := service.store.Ping(ctx); err != nil {
		metrics.ObserveFetch(metrics.FetchResultUnavailable, time.Since(started), 0)
		logger.Warn("step store unreachable", zap.Error(err))
		return steps.Dashboard{}, &FetchError{Kind: FetchUnavailable, Message: unavailableMessage, Err: err}
	}

	documents, err := service.store.Query(ctx, steps.CollectionName, docstore.Filter{
		Field: steps.UserIDField,
		Value: userID,
	})
	if err != nil {
		metrics.ObserveFetch(metrics.FetchResultQueryFailed, time.Since(started), 0)
		logger.Error("step query failed", zap.Error(err))
		return steps.Dashboard{}, &FetchError{
			Kind:    FetchQueryFailed,
			Message: "Failed to load step data: " + strings.TrimSpace(err.Error()),
			Err:     err,
		}
	}

	raw := make([]steps.RawDocument, 0, len(documents))
	for _, document := range documents {
		raw = append(raw, steps.RawDocument{ID: document.ID, Fields: document.Fields})
	}

	normalizer := steps.NewNormalizer(service.location,
		steps.WithClock(service.now),
		steps.WithLogger(logger),
		steps.WithFallbackHook(func(steps.Record) { metrics.TimestampFallback() }),
	)
	dashboard := normalizer.Build(raw, service.recentLimit)

	result := metrics.FetchResultOK
	if dashboard.Empty() {
		result = metrics.FetchResultEmpty
	}
	metrics.ObserveFetch(result, time.Since(started), len(documents))
	logger.Debug("dashboard built",
		zap.Int("records", dashboard.Stats.Count),
		zap.Int("invalid_timestamps", dashboard.Stats.InvalidTimestamps),
	)
	return dashboard, nil
}
