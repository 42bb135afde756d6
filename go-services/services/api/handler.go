// Package api serves backtests over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/config"
	"anchor-backtest/go-services/services/engine"
)

// BacktestHandler runs strategies against one candle store
type BacktestHandler struct {
	store   candles.Store
	jobs    JobStore
	workers int
	logger  *zap.Logger
}

func NewBacktestHandler(store candles.Store, jobs JobStore, workers int, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{store: store, jobs: jobs, workers: workers, logger: logger}
}

// SetupRoutes registers the REST API on r.
func (h *BacktestHandler) SetupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/backtest", h.CreateBacktest)
		api.GET("/backtest/:job_id", h.GetBacktest)
		api.GET("/health", h.Health)
	}
}

func sendError(c *gin.Context, status int, apiErr engine.APIError) {
	c.JSON(status, gin.H{"error": apiErr})
}

// CreateBacktest runs a strategy synchronously and stores its report
// POST /api/v1/backtest
func (h *BacktestHandler) CreateBacktest(c *gin.Context) {
	var req config.StrategyConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, engine.ErrInvalidParams.WithDetails(err.Error()))
		return
	}
	if req.InitialCash == 0 {
		req.InitialCash = engine.DefaultInitialCash
	}
	if err := config.Validate(&req); err != nil {
		sendError(c, http.StatusBadRequest, engine.ErrInvalidParams.WithDetails(err.Error()))
		return
	}

	runner, err := engine.NewRunner(h.store, req.Strategy(), h.workers, h.logger)
	if err != nil {
		apiErr, _ := engine.ToAPIError(err)
		sendError(c, http.StatusBadRequest, apiErr)
		return
	}

	report, err := runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Backtest request failed", zap.Error(err))
		apiErr, status := engine.ToAPIError(err)
		sendError(c, status, apiErr)
		return
	}

	h.jobs.Put(report)
	h.logger.Info("Backtest completed",
		zap.String("job_id", report.Manifest.JobID),
		zap.Int("rows", len(report.Rows)),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("duration", report.Duration))
	c.JSON(http.StatusCreated, gin.H{"data": report})
}

// GetBacktest returns a stored report
// GET /api/v1/backtest/:job_id
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	jobID := c.Param("job_id")
	report, ok := h.jobs.Get(jobID)
	if !ok {
		sendError(c, http.StatusNotFound, engine.ErrNotFound.WithDetails("job "+jobID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// Health reports liveness
// GET /api/v1/health
func (h *BacktestHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   engine.EngineVersion,
	})
}
