package api

import (
	"errors"
	"net/http"

	models "LedgerCast/internal/domain/models"
	"LedgerCast/internal/service/ratelimit"
	"LedgerCast/internal/usecase"
	xhttp "LedgerCast/pkg/http"
	xlogger "LedgerCast/pkg/logger"
	xutil "LedgerCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// Scenario endpoints run Monte Carlo work per request, so they get a
// tighter per-client budget than the read endpoints.
const (
	scenarioBurst     = 5.0
	scenarioPerSecond = 1.0
)

// AnalyticsHandler exposes forecasting, anomaly, and scenario endpoints.
type AnalyticsHandler struct {
	logger     *xlogger.Logger
	forecaster *usecase.Forecaster
	analyzer   *usecase.AnomalyAnalyzer
	scenarios  *usecase.ScenarioRunner
	rl         *ratelimit.Limiter
}

func NewAnalyticsHandler(logger *xlogger.Logger, forecaster *usecase.Forecaster, analyzer *usecase.AnomalyAnalyzer, scenarios *usecase.ScenarioRunner) *AnalyticsHandler {
	return &AnalyticsHandler{
		logger:     logger,
		forecaster: forecaster,
		analyzer:   analyzer,
		scenarios:  scenarios,
		rl:         ratelimit.New(),
	}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/forecast/train", h.Train)
	g.GET("/forecast", h.Forecast)
	g.GET("/forecast/metrics", h.Metrics)
	g.POST("/forecast/deviation", h.Deviation)
	g.GET("/anomalies/scan", h.AnomalyScan)
	g.POST("/scenario", h.Scenario)
	g.POST("/scenario/sensitivity", h.Sensitivity)
}

func (h *AnalyticsHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecaster.Train(c.Request().Context(), req.OrgID, req.MonthsBack)
	if errors.Is(err, usecase.ErrTrainingInProgress) {
		return xhttp.DataResponse(c, http.StatusConflict,
			xhttp.NewAppError("ERR_TRAINING_IN_PROGRESS", "", "training already in progress", http.StatusConflict))
	}
	if err != nil {
		h.logger.Error("train usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.forecaster.Forecast(c.Request().Context(), req.OrgID, req.Months)
	if err != nil {
		h.logger.Error("forecast usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, snap)
}

func (h *AnalyticsHandler) Metrics(c echo.Context) error {
	req := &models.ForecastMetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	m, err := h.forecaster.Metrics(c.Request().Context(), req.OrgID, req.Months)
	if err != nil {
		h.logger.Error("forecast metrics usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *AnalyticsHandler) Deviation(c echo.Context) error {
	req := &models.DeviationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if _, ok := xutil.ParseMonth(req.Month); !ok {
		return xhttp.BadRequestResponse(c,
			xhttp.NewAppError("ERR_BAD_MONTH", "month", "month must be in YYYY-MM form", http.StatusBadRequest))
	}

	rep, err := h.forecaster.Deviation(c.Request().Context(), req.OrgID, req.Month, req.ActualInflows, req.ActualOutflows)
	if err != nil {
		h.logger.Error("deviation usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *AnalyticsHandler) AnomalyScan(c echo.Context) error {
	req := &models.AnomalyScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	results, err := h.analyzer.AnalyzeTransactions(c.Request().Context(), req.OrgID, req.DaysBack, req.Sensitivity)
	if err != nil {
		h.logger.Error("anomaly scan usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, results, int64(len(results)))
}

func (h *AnalyticsHandler) Scenario(c echo.Context) error {
	req := &models.ScenarioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allowScenario(c, "scenario") {
		return rateLimitedResponse(c)
	}

	res, err := h.scenarios.Run(c.Request().Context(), req.OrgID, req.Assumptions, req.ForecastMonths, req.Simulations)
	if err != nil {
		h.logger.Error("scenario usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Sensitivity(c echo.Context) error {
	req := &models.SensitivityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allowScenario(c, "sensitivity") {
		return rateLimitedResponse(c)
	}

	res, err := h.scenarios.Sensitivity(c.Request().Context(), req.OrgID, req.Assumptions, req.ForecastMonths)
	if err != nil {
		h.logger.Error("sensitivity usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *AnalyticsHandler) allowScenario(c echo.Context, endpoint string) bool {
	if h.rl.Allow(c.RealIP()+":"+endpoint, scenarioBurst, scenarioPerSecond) {
		return true
	}
	h.logger.Warn("scenario rate limited",
		xlogger.String("remote", c.RealIP()),
		xlogger.String("endpoint", endpoint))
	return false
}

func rateLimitedResponse(c echo.Context) error {
	return xhttp.DataResponse(c, http.StatusTooManyRequests,
		xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many scenario requests", http.StatusTooManyRequests))
}
