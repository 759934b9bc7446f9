package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
)

// Saver es la parte del repositorio que necesita el publisher.
type Saver interface {
	Save(ctx context.Context, report domain.EvaluationReport) error
}

// Publisher escribe los artefactos y, si hay repositorio, guarda la fila.
type Publisher struct {
	writer *Writer
	store  Saver
	logger *zap.Logger
}

func NewPublisher(writer *Writer, store Saver, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, store: store, logger: logger}
}

func (p *Publisher) Save(ctx context.Context, report domain.EvaluationReport) error {
	_, err := p.Publish(ctx, report)
	return err
}

func (p *Publisher) Publish(ctx context.Context, report domain.EvaluationReport) (Artifacts, error) {
	var artifacts Artifacts
	if p.writer != nil {
		a, err := p.writer.Write(report)
		if err != nil {
			return a, fmt.Errorf("write artifacts: %w", err)
		}
		artifacts = a
		p.logger.Info("report artifacts written",
			zap.String("report_id", report.ID),
			zap.String("json", a.JSON),
			zap.String("scores_csv", a.ScoresCSV),
			zap.String("errors_csv", a.ErrorsCSV),
		)
	}
	if p.store != nil {
		if err := p.store.Save(ctx, report); err != nil {
			return artifacts, fmt.Errorf("store report: %w", err)
		}
		p.logger.Info("report stored", zap.String("report_id", report.ID))
	}
	return artifacts, nil
}
