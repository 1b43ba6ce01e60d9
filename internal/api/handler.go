// Package api serves stored runs, trades and assessments over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"candle-bin-lab/internal/cache"
	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/reporting"
	"candle-bin-lab/internal/storage"
)

const timeLayout = time.RFC3339

// Handler implements the read API.
type Handler struct {
	runs          storage.RunStore
	trades        storage.TradeStore
	assessments   storage.AssessmentStore
	scoredBars    storage.ScoredBarStore // optional
	cache         *cache.SignalCache     // optional
	status        func() any             // optional
	defaultSymbol string
	logger        zerolog.Logger
}

// NewHandler creates a Handler. Requests without a symbol use defaultSymbol.
func NewHandler(
	logger zerolog.Logger,
	defaultSymbol string,
	runs storage.RunStore,
	trades storage.TradeStore,
	assessments storage.AssessmentStore,
) *Handler {
	return &Handler{
		runs:          runs,
		trades:        trades,
		assessments:   assessments,
		defaultSymbol: defaultSymbol,
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// WithScoredBars enables /runs/:id/scores.
func (h *Handler) WithScoredBars(s storage.ScoredBarStore) *Handler {
	h.scoredBars = s
	return h
}

// WithCache serves latest assessments and reports from the cache first.
func (h *Handler) WithCache(c *cache.SignalCache) *Handler {
	h.cache = c
	return h
}

// WithStatus sets the body of /status.
func (h *Handler) WithStatus(fn func() any) *Handler {
	h.status = fn
	return h
}

// RegisterRoutes mounts the API on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)

	g := e.Group("/api")
	g.GET("/assessments/latest", h.LatestAssessment)
	g.GET("/assessments", h.Assessments)
	g.GET("/reports/latest", h.LatestReport)
	g.GET("/runs", h.Runs)
	g.GET("/runs/:id", h.Run)
	g.GET("/runs/:id/trades", h.Trades)
	g.GET("/runs/:id/scores", h.Scores)
	g.GET("/runs/:id/report", h.RunReport)
}

// SymbolRequest selects a symbol.
type SymbolRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
}

// AssessmentsRequest selects assessments of a symbol within [from, to].
type AssessmentsRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
	From   string `query:"from" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	To     string `query:"to" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// RunsRequest lists the newest runs of a symbol.
type RunsRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,max=32"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

// RunRequest selects one run.
type RunRequest struct {
	ID string `param:"id" validate:"required"`
}

// RunReportRequest renders the report of one run.
type RunReportRequest struct {
	ID     string `param:"id" validate:"required"`
	Format string `query:"format" default:"json" validate:"oneof=json markdown"`
}

func (h *Handler) symbol(s string) string {
	if s == "" {
		return h.defaultSymbol
	}
	return s
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Status reports scheduler state.
func (h *Handler) Status(c echo.Context) error {
	if h.status == nil {
		return SuccessResponse(c, map[string]string{"status": "running"})
	}
	return SuccessResponse(c, h.status())
}

// LatestAssessment returns the newest assessment of a symbol.
func (h *Handler) LatestAssessment(c echo.Context) error {
	req := &SymbolRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	symbol := h.symbol(req.Symbol)

	if h.cache != nil {
		a, err := h.cache.LatestAssessment(ctx, symbol)
		if err == nil {
			c.Response().Header().Set("X-Cache", "HIT")
			return SuccessResponse(c, a)
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn().Err(err).Str("symbol", symbol).Msg("cache read failed")
		}
	}

	rec, err := h.assessments.Latest(ctx, symbol)
	if err != nil {
		return h.storeError(c, err, "no assessment for "+symbol)
	}
	return SuccessResponse(c, rec)
}

// Assessments returns the stored assessments of a symbol in a time range.
func (h *Handler) Assessments(c echo.Context) error {
	req := &AssessmentsRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	// Layouts were checked by the validator.
	from, _ := time.Parse(timeLayout, req.From)
	to, _ := time.Parse(timeLayout, req.To)
	if to.Before(from) {
		return BadRequestResponse(c, []ValidationError{{
			Code:    "ERR_RANGE",
			Field:   "To",
			Message: "To must not be before From",
		}})
	}

	recs, err := h.assessments.GetByTimeRange(c.Request().Context(), h.symbol(req.Symbol), from, to)
	if err != nil {
		return h.storeError(c, err, "")
	}
	if recs == nil {
		recs = []*domain.AssessmentRecord{}
	}
	return ListResponse(c, recs, len(recs))
}

// LatestReport returns the cached analysis report of a symbol.
func (h *Handler) LatestReport(c echo.Context) error {
	req := &SymbolRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	symbol := h.symbol(req.Symbol)
	if h.cache == nil {
		return NotFoundResponse(c, "report cache disabled")
	}

	rep, err := h.cache.Report(c.Request().Context(), symbol)
	if errors.Is(err, cache.ErrCacheMiss) {
		return NotFoundResponse(c, "no report for "+symbol)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", symbol).Msg("cache read failed")
		return InternalServerErrorResponse(c)
	}
	return SuccessResponse(c, rep)
}

// Runs lists the newest runs of a symbol.
func (h *Handler) Runs(c echo.Context) error {
	req := &RunsRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	runs, err := h.runs.ListBySymbol(c.Request().Context(), h.symbol(req.Symbol), req.Limit)
	if err != nil {
		return h.storeError(c, err, "")
	}
	if runs == nil {
		runs = []*domain.RunSummary{}
	}
	return ListResponse(c, runs, len(runs))
}

// Run returns one run.
func (h *Handler) Run(c echo.Context) error {
	req := &RunRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}

	run, err := h.runs.GetByID(c.Request().Context(), req.ID)
	if err != nil {
		return h.storeError(c, err, "run not found")
	}
	return SuccessResponse(c, run)
}

// Trades returns the ledger of one run.
func (h *Handler) Trades(c echo.Context) error {
	req := &RunRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if _, err := h.runs.GetByID(ctx, req.ID); err != nil {
		return h.storeError(c, err, "run not found")
	}
	trades, err := h.trades.GetByRunID(ctx, req.ID)
	if err != nil {
		return h.storeError(c, err, "")
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	return ListResponse(c, trades, len(trades))
}

// Scores returns the scored bars of one run.
func (h *Handler) Scores(c echo.Context) error {
	req := &RunRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	if h.scoredBars == nil {
		return NotFoundResponse(c, "scored bars are not stored")
	}

	bars, err := h.scoredBars.GetByRunID(c.Request().Context(), req.ID)
	if err != nil {
		return h.storeError(c, err, "")
	}
	if len(bars) == 0 {
		return NotFoundResponse(c, "no scored bars for run")
	}
	return ListResponse(c, bars, len(bars))
}

// RunReport renders the backtest report of one run as JSON or Markdown.
func (h *Handler) RunReport(c echo.Context) error {
	req := &RunReportRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	gen := reporting.NewGenerator(h.runs, h.trades).WithAssessments(h.assessments)
	if h.cache != nil {
		if run, err := h.runs.GetByID(ctx, req.ID); err == nil {
			if rep, err := h.cache.Report(ctx, run.Symbol); err == nil {
				gen = gen.WithAnalysis(rep)
			}
		}
	}

	report, err := gen.Generate(ctx, req.ID)
	if err != nil {
		return h.storeError(c, err, "run not found")
	}
	if req.Format == "markdown" {
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
	}
	return SuccessResponse(c, report)
}

func (h *Handler) storeError(c echo.Context, err error, notFound string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NotFoundResponse(c, notFound)
	}
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("store query failed")
	return InternalServerErrorResponse(c)
}
