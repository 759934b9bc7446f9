package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/report"
	"bigfive-llm/internal/repository"
)

// ReportReader es la parte de lectura del repositorio de reportes.
type ReportReader interface {
	Get(ctx context.Context, id string) (domain.EvaluationReport, error)
	List(ctx context.Context, limit int) ([]repository.ReportSummary, error)
	Latest(ctx context.Context) (domain.EvaluationReport, error)
}

type ReportHandler struct {
	reports ReportReader
	logger  *zap.Logger
}

func NewReportHandler(reports ReportReader, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, logger: logger}
}

// List maneja GET /reports?limit=N.
func (h *ReportHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	summaries, err := h.reports.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list reports failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

// Latest maneja GET /reports/latest.
func (h *ReportHandler) Latest(c *gin.Context) {
	rep, err := h.reports.Latest(c.Request.Context())
	h.respond(c, rep, err)
}

// Get maneja GET /reports/:id. Con ?format=table devuelve la tabla en texto.
func (h *ReportHandler) Get(c *gin.Context) {
	rep, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, rep, err)
}

func (h *ReportHandler) respond(c *gin.Context, rep domain.EvaluationReport, err error) {
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		h.logger.Error("load report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load report"})
		return
	}

	switch c.Query("format") {
	case "table":
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.String(http.StatusOK, report.RenderTable(rep)+"\n")
	case "summary":
		headers, rows := report.Rows(rep)
		c.JSON(http.StatusOK, gin.H{"id": rep.ID, "run_date": rep.RunDate, "headers": headers, "rows": rows})
	default:
		c.JSON(http.StatusOK, rep)
	}
}
