package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
	"BarFlow/internal/usecase"
	"BarFlow/pkg/cache"
	xhttp "BarFlow/pkg/http"
	xlogger "BarFlow/pkg/logger"
	xutil "BarFlow/pkg/util"
)

// BarsHandler exposes the data service over HTTP. Complete bar responses
// are cached; anything that ran a backfill with missing gaps is served
// fresh every time so repairs become visible immediately.
type BarsHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.DataService
	cache    cache.Service
	cacheTTL time.Duration
}

func NewBarsHandler(logger *xlogger.Logger, svc *usecase.DataService, c cache.Service, ttl time.Duration) *BarsHandler {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &BarsHandler{logger: logger, svc: svc, cache: c, cacheTTL: ttl}
}

func (h *BarsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1")
	g.GET("/bars", h.Bars)
	g.GET("/gaps", h.Gaps)
	g.GET("/series", h.Series)
	g.GET("/series/info", h.Info)
	g.GET("/validate", h.Validate)
}

type barsRequest struct {
	Provider  string `query:"provider" validate:"required"`
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" default:"1m"`
	From      string `query:"from" validate:"required"`
	To        string `query:"to" validate:"required"`
}

type barsResponse struct {
	Bars   []models.Bar           `json:"bars"`
	Report *models.BackfillReport `json:"report,omitempty"`
}

func (h *BarsHandler) Bars(c echo.Context) error {
	req := &barsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, err := parseWindow(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	cacheKey := cache.GenerateKeyWithParams("bars",
		req.Provider, req.Symbol, req.Timeframe, w.Start.Unix(), w.End.Unix())
	if h.cache != nil {
		var hit barsResponse
		if err := h.cache.Get(c.Request().Context(), cacheKey, &hit); err == nil {
			return xhttp.SuccessResponse(c, &hit)
		}
	}

	bars, report, err := h.svc.Load(c.Request().Context(), req.Provider, req.Symbol, req.Timeframe, w)
	if err != nil {
		return h.mapError(c, err)
	}
	res := &barsResponse{Bars: bars, Report: report}

	if h.cache != nil && (report == nil || report.Complete()) {
		if err := h.cache.Set(c.Request().Context(), cacheKey, res, h.cacheTTL); err != nil {
			h.logger.Warn("bars cache set failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}

type gapsRequest struct {
	Provider        string `query:"provider" validate:"required"`
	Symbol          string `query:"symbol" validate:"required"`
	Timeframe       string `query:"timeframe" default:"1m"`
	ExpectedMinutes int    `query:"expected_minutes"`
	From            string `query:"from" validate:"required"`
	To              string `query:"to" validate:"required"`
}

func (h *BarsHandler) Gaps(c echo.Context) error {
	req := &gapsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w, err := parseWindow(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	gaps, err := h.svc.Gaps(c.Request().Context(), req.Provider, req.Symbol, req.Timeframe, req.ExpectedMinutes, w)
	if err != nil {
		return h.mapError(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"gaps": gaps, "count": len(gaps)})
}

func (h *BarsHandler) Series(c echo.Context) error {
	refs, err := h.svc.ListSeries(c.Request().Context(), c.QueryParam("provider"))
	if err != nil {
		return h.mapError(c, err)
	}
	return xhttp.ListResponse(c, refs, int64(len(refs)))
}

type infoRequest struct {
	Provider  string `query:"provider" validate:"required"`
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" default:"1m"`
}

func (h *BarsHandler) Info(c echo.Context) error {
	req := &infoRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	info, err := h.svc.Info(c.Request().Context(), req.Provider, req.Symbol, req.Timeframe)
	if err != nil {
		return h.mapError(c, err)
	}
	return xhttp.SuccessResponse(c, info)
}

type validateRequest struct {
	Provider  string `query:"provider" validate:"required"`
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" default:"1m"`
	From      string `query:"from"`
	To        string `query:"to"`
}

func (h *BarsHandler) Validate(c echo.Context) error {
	req := &validateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var w models.Window
	if req.From != "" || req.To != "" {
		var err error
		if w, err = parseWindow(req.From, req.To); err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
	}
	res, err := h.svc.Validate(c.Request().Context(), req.Provider, req.Symbol, req.Timeframe, w)
	if err != nil {
		return h.mapError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BarsHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, timeframe.ErrInvalidTimeframe), errors.Is(err, models.ErrUnknownProvider):
		return xhttp.BadRequestResponse(c, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, models.ErrProviderUnavailable):
		h.logger.Error("dependency unavailable", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("bars handler error", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}

func parseWindow(from, to string) (models.Window, error) {
	start, ok := xutil.ParseTime(from)
	if !ok {
		return models.Window{}, fmt.Errorf("invalid from %q", from)
	}
	end, ok := xutil.ParseTime(to)
	if !ok {
		return models.Window{}, fmt.Errorf("invalid to %q", to)
	}
	return models.NewWindow(start, end)
}
