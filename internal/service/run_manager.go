package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
)

// Evaluator corre una evaluacion completa; *EvaluationService lo implementa.
type Evaluator interface {
	Run(ctx context.Context, models []domain.TargetModel) (domain.EvaluationReport, error)
}

// ReportSink recibe el reporte terminado (archivos, base de datos).
type ReportSink interface {
	Save(ctx context.Context, report domain.EvaluationReport) error
}

// RunManager lanza corridas en background para la API.
type RunManager struct {
	evaluator Evaluator
	store     RunStore
	sink      ReportSink
	logger    *zap.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewRunManager(ctx context.Context, evaluator Evaluator, store RunStore, sink ReportSink, logger *zap.Logger) *RunManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryRunStore(0)
	}
	return &RunManager{
		evaluator: evaluator,
		store:     store,
		sink:      sink,
		logger:    logger,
		baseCtx:   context.WithoutCancel(ctx),
		now:       time.Now,
	}
}

// Start registra la corrida como queued y la ejecuta en background.
func (m *RunManager) Start(ctx context.Context, models []domain.TargetModel) (RunStatus, error) {
	if len(models) == 0 {
		return RunStatus{}, ErrNoModels
	}
	ids := make([]string, 0, len(models))
	for _, mdl := range models {
		ids = append(ids, mdl.ID())
	}
	now := m.now().UTC()
	run := RunStatus{
		ID:        uuid.NewString(),
		State:     RunQueued,
		Models:    ids,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, run); err != nil {
		return RunStatus{}, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(run, models)
	}()
	return run, nil
}

func (m *RunManager) Get(ctx context.Context, id string) (RunStatus, error) {
	return m.store.Get(ctx, id)
}

// Wait bloquea hasta que terminen las corridas en curso.
func (m *RunManager) Wait() {
	m.wg.Wait()
}

func (m *RunManager) execute(run RunStatus, models []domain.TargetModel) {
	ctx := m.baseCtx
	log := m.logger.With(zap.String("run_id", run.ID))

	run.State = RunRunning
	m.update(ctx, run, log)

	report, err := m.evaluator.Run(ctx, models)
	if err == nil && m.sink != nil {
		err = m.sink.Save(ctx, report)
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
		run.State = RunFailed
		run.Error = err.Error()
		m.update(ctx, run, log)
		return
	}

	run.State = RunCompleted
	run.ReportID = report.ID
	m.update(ctx, run, log)
	log.Info("run completed", zap.String("report_id", report.ID))
}

func (m *RunManager) update(ctx context.Context, run RunStatus, log *zap.Logger) {
	run.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, run); err != nil {
		log.Warn("failed to persist run state", zap.String("state", string(run.State)), zap.Error(err))
	}
}
