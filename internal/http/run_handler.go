package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bigfive-llm/internal/config"
	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/service"
)

// RunStarter lanza corridas en background; *service.RunManager lo implementa.
type RunStarter interface {
	Start(ctx context.Context, models []domain.TargetModel) (service.RunStatus, error)
	Get(ctx context.Context, id string) (service.RunStatus, error)
}

type RunHandler struct {
	runs          RunStarter
	defaultModels func() ([]domain.TargetModel, error)
	logger        *zap.Logger
}

func NewRunHandler(runs RunStarter, defaultModels func() ([]domain.TargetModel, error), logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{runs: runs, defaultModels: defaultModels, logger: logger}
}

// Create maneja POST /runs.
func (h *RunHandler) Create(c *gin.Context) {
	var req struct {
		Models []string `json:"models"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid create run request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	var (
		models []domain.TargetModel
		err    error
	)
	if len(req.Models) > 0 {
		models, err = config.ModelsFromRefs(req.Models)
	} else if h.defaultModels != nil {
		models, err = h.defaultModels()
	}
	if err != nil || len(models) == 0 {
		msg := "no models to evaluate"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	run, err := h.runs.Start(c.Request.Context(), models)
	if err != nil {
		h.logger.Error("start run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start run"})
		return
	}

	fields := []zap.Field{zap.String("run_id", run.ID), zap.Strings("models", run.Models)}
	if claims, ok := GetAuthClaims(c); ok {
		fields = append(fields, zap.String("operator", claims.Subject))
	}
	h.logger.Info("run accepted", fields...)
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// Get maneja GET /runs/:id.
func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}
