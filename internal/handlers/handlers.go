// Package handlers exposes the run ledger, health probes and manual pipeline triggers over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/database"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// RunReader is the read side of the run ledger.
type RunReader interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, limit, offset int) ([]models.PipelineRun, int64, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
}

// Trigger runs a pipeline stage synchronously and returns its recorded run.
type Trigger interface {
	Trigger(ctx context.Context, stage string) (*models.PipelineRun, error)
}

// API serves the pipeline HTTP surface.
type API struct {
	runs    RunReader
	trigger Trigger
	log     *zap.Logger
}

// NewAPI creates a new API.
func NewAPI(runs RunReader, trigger Trigger, log *zap.Logger) *API {
	return &API{runs: runs, trigger: trigger, log: log}
}

// RegisterRoutes registers the API routes with the given router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.healthHandler)
	router.GET("/live", a.healthHandler)
	router.GET("/ready", a.readyHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		runs := v1.Group("/runs")
		{
			runs.GET("", a.listRunsHandler)
			runs.GET("/:run_id", a.getRunHandler)
		}
		v1.POST("/pipeline/trigger/:stage", a.triggerHandler)
	}
}

func (a *API) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
}

func (a *API) readyHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.runs.Ping(ctx); err != nil {
		a.log.Warn("Readiness check failed", zap.Error(err))
		RespondWithError(c, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Run ledger is unreachable.", gin.H{"reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *API) listRunsHandler(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", strconv.Itoa(DefaultLimit))
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Invalid limit parameter: not a number.", gin.H{"limit": limitStr})
		return
	}
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	offsetStr := c.DefaultQuery("offset", "0")
	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Invalid offset parameter: not a number.", gin.H{"offset": offsetStr})
		return
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := a.runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		a.log.Error("Failed to list runs", zap.Error(err))
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to list pipeline runs.", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, models.PaginatedRuns{Runs: runs, Total: total, Limit: limit, Offset: offset})
}

func (a *API) getRunHandler(c *gin.Context) {
	idStr := c.Param("run_id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidIDFormat, "Invalid run ID format.", gin.H{"run_id": idStr})
		return
	}

	run, err := a.runs.GetRun(c.Request.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		RespondWithError(c, http.StatusNotFound, models.ErrorCodeRunNotFound, "Pipeline run not found.", gin.H{"run_id": idStr})
		return
	}
	if err != nil {
		a.log.Error("Failed to get run", zap.String("run_id", idStr), zap.Error(err))
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to get pipeline run.", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, run)
}

func (a *API) triggerHandler(c *gin.Context) {
	stage := c.Param("stage")
	if !models.ValidStages[stage] {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidEnumValue, "Unknown pipeline stage.",
			gin.H{"stage": stage, "allowed": []string{models.StageExtract, models.StageRun, models.StageTest, models.StageBuild, models.StageAll}})
		return
	}

	a.log.Info("Pipeline stage triggered over HTTP", zap.String("stage", stage))
	run, err := a.trigger.Trigger(c.Request.Context(), stage)
	if errors.Is(err, models.ErrPipelineBusy) {
		RespondWithError(c, http.StatusConflict, models.ErrorCodePipelineBusy, "Another pipeline stage is still running.", gin.H{"stage": stage})
		return
	}
	if err != nil {
		var details interface{} = gin.H{"stage": stage, "reason": err.Error()}
		if run != nil {
			details = run
		}
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodePipelineFailed, "Pipeline stage failed.", details)
		return
	}
	RespondWithSuccess(c, http.StatusAccepted, run)
}
