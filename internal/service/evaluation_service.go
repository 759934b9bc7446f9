package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/llm"
)

var ErrNoModels = errors.New("no models to evaluate")

const errorKindConfig = "config"

// RaterSource resuelve el Rater de un proveedor; *llm.Registry lo implementa.
type RaterSource interface {
	Rater(ctx context.Context, provider string) (llm.Rater, error)
}

type EvaluationConfig struct {
	Trials              int
	MinValidFraction    float64
	RunTimeout          time.Duration
	ProviderConcurrency int
	Retry               llm.RetryPolicy
	RefusalPatterns     []string
}

// EvaluationService corre el cuestionario contra cada modelo y arma el reporte.
type EvaluationService struct {
	raters  RaterSource
	items   []domain.Item
	cfg     EvaluationConfig
	prompts PromptBuilder
	parser  *ResponseParser
	scorer  *Scorer
	reports ReportBuilder
	retrier *llm.Retrier
	logger  *zap.Logger

	now   func() time.Time
	newID func() string

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
}

func NewEvaluationService(raters RaterSource, items []domain.Item, cfg EvaluationConfig, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Trials < 1 {
		cfg.Trials = 1
	}
	if cfg.ProviderConcurrency < 1 {
		cfg.ProviderConcurrency = 1
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = llm.DefaultRetryPolicy()
	}
	scorer := NewScorer(cfg.MinValidFraction, cfg.Trials)
	cfg.MinValidFraction = scorer.MinValidFraction()

	return &EvaluationService{
		raters:  raters,
		items:   append([]domain.Item(nil), items...),
		cfg:     cfg,
		prompts: NewPromptBuilder(),
		parser:  NewResponseParser(cfg.RefusalPatterns),
		scorer:  scorer,
		retrier: llm.NewRetrier(cfg.Retry, logger),
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		sems:    make(map[string]*semaphore.Weighted),
	}
}

// WithRetrier reemplaza el retrier (por ejemplo, sin esperas en tests).
func (s *EvaluationService) WithRetrier(r *llm.Retrier) *EvaluationService {
	if r != nil {
		s.retrier = r
	}
	return s
}

// WithClock fija reloj y generador de ids.
func (s *EvaluationService) WithClock(now func() time.Time, newID func() string) *EvaluationService {
	if now != nil {
		s.now = now
	}
	if newID != nil {
		s.newID = newID
	}
	return s
}

func (s *EvaluationService) Items() []domain.Item {
	return append([]domain.Item(nil), s.items...)
}

// Run evalua todos los modelos en paralelo. Las fallas por modelo quedan en el
// reporte; solo se devuelve error si no hay nada que evaluar.
func (s *EvaluationService) Run(ctx context.Context, models []domain.TargetModel) (domain.EvaluationReport, error) {
	if len(models) == 0 {
		return domain.EvaluationReport{}, ErrNoModels
	}
	meta := RunMeta{
		ID:               s.newID(),
		RunDate:          s.now().UTC(),
		PromptTemplate:   s.prompts.Template(),
		Trials:           s.cfg.Trials,
		MinValidFraction: s.cfg.MinValidFraction,
		Items:            s.items,
		Models:           models,
	}
	s.logger.Info("evaluation started",
		zap.String("run_id", meta.ID),
		zap.Int("models", len(models)),
		zap.Int("items", len(s.items)),
		zap.Int("trials", s.cfg.Trials),
	)

	results := make([]domain.ModelResult, len(models))
	var g errgroup.Group
	for i, m := range models {
		g.Go(func() error {
			results[i] = s.RunModel(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	report := s.reports.Build(meta, results)
	s.logger.Info("evaluation finished", zap.String("run_id", meta.ID))
	return report, nil
}

// RunModel ejecuta pending -> querying -> parsed -> scored, o failed(kind).
func (s *EvaluationService) RunModel(ctx context.Context, model domain.TargetModel) domain.ModelResult {
	res := domain.ModelResult{Model: model, Status: domain.StatusPending}
	log := s.logger.With(zap.String("model", model.ID()))

	rater, err := s.raters.Rater(ctx, model.Provider)
	if err == nil {
		err = llm.CheckModel(rater, model)
	}
	if err != nil {
		log.Warn("model client not available", zap.Error(err))
		res.Status = domain.StatusFailed
		res.FailureKind = domain.FailureConfig
		res.FailureError = err.Error()
		res.Observations = s.missingObservations(model, errorKindConfig, err)
		res.Scores = s.scorer.Score(model.ID(), s.items, res.Observations)
		return res
	}

	res.Status = domain.StatusQuerying
	structured := model.WantsStructured() && llm.SupportsStructured(rater)

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancelTimeout()
	}
	runCtx, cancel := context.WithCancelCause(runCtx)
	defer cancel(nil)

	sem := s.semaphoreFor(model)
	slots := make([]domain.Observation, len(s.items)*s.cfg.Trials)

	var g errgroup.Group
	for trial := 1; trial <= s.cfg.Trials; trial++ {
		for i, item := range s.items {
			idx := (trial-1)*len(s.items) + i
			if err := sem.Acquire(runCtx, 1); err != nil {
				slots[idx] = s.failedObservation(runCtx, model, item.Index, trial, 0, err)
				continue
			}
			g.Go(func() error {
				defer sem.Release(1)
				slots[idx] = s.observe(runCtx, cancel, rater, model, item, trial, structured, log)
				return nil
			})
		}
	}
	_ = g.Wait()

	res.Observations = slots
	res.Status = domain.StatusParsed

	valid := 0
	for _, obs := range slots {
		if obs.Valid() {
			valid++
		}
	}

	cause := context.Cause(runCtx)
	if cause != nil && llm.IsKind(cause, llm.KindAuth) {
		res.Status = domain.StatusFailed
		res.FailureKind = domain.FailureAuth
		res.FailureError = cause.Error()
	} else if cause != nil && llm.IsConfigError(cause) {
		res.Status = domain.StatusFailed
		res.FailureKind = domain.FailureConfig
		res.FailureError = cause.Error()
	} else if valid == 0 && runCtx.Err() != nil {
		res.Status = domain.StatusFailed
		res.FailureKind = domain.FailureTimeout
		res.FailureError = runCtx.Err().Error()
	}

	res.Scores = s.scorer.Score(model.ID(), s.items, slots)
	if res.Status == domain.StatusParsed {
		if allSparse(res.Scores) {
			res.Status = domain.StatusFailed
			res.FailureKind = domain.FailureSparse
			res.FailureError = "every trait is below the minimum valid fraction"
		} else {
			res.Status = domain.StatusScored
		}
	}

	log.Info("model evaluated",
		zap.String("status", string(res.Status)),
		zap.String("failure_kind", res.FailureKind),
		zap.Int("valid", valid),
		zap.Int("expected", len(slots)),
	)
	return res
}

func (s *EvaluationService) observe(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	rater llm.Rater,
	model domain.TargetModel,
	item domain.Item,
	trial int,
	structured bool,
	log *zap.Logger,
) domain.Observation {
	prompt := s.prompts.Build(item, structured)
	start := time.Now()

	var raw domain.RawResponse
	attempts, err := s.retrier.Do(ctx, model.ID(), func(ctx context.Context) error {
		var rateErr error
		raw, rateErr = rater.Rate(ctx, prompt, model)
		return rateErr
	})
	if err != nil {
		if llm.IsKind(err, llm.KindAuth) || llm.IsConfigError(err) {
			// credenciales rechazadas o modelo invalido: no tiene sentido seguir con este modelo
			cancel(err)
		}
		obs := s.failedObservation(ctx, model, item.Index, trial, attempts, err)
		obs.Latency = time.Since(start)
		log.Debug("item failed", zap.Int("item", item.Index), zap.String("kind", obs.ErrorKind), zap.Error(err))
		return obs
	}

	parsed := s.parser.Parse(raw)
	obs := domain.Observation{
		Model:     model.ID(),
		ItemIndex: item.Index,
		Trial:     trial,
		Raw:       raw.Text,
		Outcome:   parsed.Outcome,
		Attempts:  attempts,
		Latency:   time.Since(start),
	}
	if parsed.Outcome == domain.OutcomeRated {
		rating := parsed.Rating
		obs.Rating = &rating
	}
	log.Debug("model reply",
		zap.Int("item", item.Index),
		zap.Int("trial", trial),
		zap.String("raw", raw.Text),
		zap.String("outcome", string(parsed.Outcome)),
	)
	return obs
}

func (s *EvaluationService) failedObservation(ctx context.Context, model domain.TargetModel, itemIndex, trial, attempts int, err error) domain.Observation {
	return domain.Observation{
		Model:     model.ID(),
		ItemIndex: itemIndex,
		Trial:     trial,
		Outcome:   domain.OutcomeError,
		ErrorKind: errorKind(ctx, err),
		Error:     err.Error(),
		Attempts:  attempts,
	}
}

func (s *EvaluationService) missingObservations(model domain.TargetModel, kind string, err error) []domain.Observation {
	out := make([]domain.Observation, 0, len(s.items)*s.cfg.Trials)
	for trial := 1; trial <= s.cfg.Trials; trial++ {
		for _, item := range s.items {
			out = append(out, domain.Observation{
				Model:     model.ID(),
				ItemIndex: item.Index,
				Trial:     trial,
				Outcome:   domain.OutcomeError,
				ErrorKind: kind,
				Error:     err.Error(),
			})
		}
	}
	return out
}

// errorKind prioriza la clasificacion del adapter; luego la causa de cancelacion.
func errorKind(ctx context.Context, err error) string {
	if kind, ok := llm.KindOf(err); ok {
		return string(kind)
	}
	if cause := context.Cause(ctx); cause != nil {
		if kind, ok := llm.KindOf(cause); ok {
			return string(kind)
		}
	}
	if llm.IsConfigError(err) {
		return errorKindConfig
	}
	if cause := context.Cause(ctx); cause != nil && llm.IsConfigError(cause) {
		return errorKindConfig
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return string(llm.KindTimeout)
	}
	return string(llm.KindProvider)
}

// semaphoreFor comparte el cupo por proveedor; un override de concurrencia
// en el modelo le da un cupo propio.
func (s *EvaluationService) semaphoreFor(model domain.TargetModel) *semaphore.Weighted {
	key := model.Provider
	capacity := s.cfg.ProviderConcurrency
	if model.Concurrency > 0 {
		key = fmt.Sprintf("%s#%d", model.ID(), model.Concurrency)
		capacity = model.Concurrency
	}

	s.semMu.Lock()
	defer s.semMu.Unlock()
	sem, ok := s.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(int64(capacity))
		s.sems[key] = sem
	}
	return sem
}

func allSparse(scores map[domain.Trait]domain.TraitScore) bool {
	for _, t := range domain.TraitOrder {
		if sc, ok := scores[t]; ok && !sc.Missing() {
			return false
		}
	}
	return true
}
