package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bigfive-llm/internal/domain"
)

var (
	ErrReportExists   = errors.New("report already exists")
	ErrReportNotFound = errors.New("report not found")
)

// ReportSummary es la vista liviana para listados.
type ReportSummary struct {
	ID      string    `json:"id"`
	RunDate time.Time `json:"run_date"`
	Models  []string  `json:"models"`
}

type ReportRepository interface {
	Save(ctx context.Context, report domain.EvaluationReport) error
	Get(ctx context.Context, id string) (domain.EvaluationReport, error)
	List(ctx context.Context, limit int) ([]ReportSummary, error)
	Latest(ctx context.Context) (domain.EvaluationReport, error)
}

type PgReportRepository struct {
	pool *pgxpool.Pool
}

func NewPgReportRepository(pool *pgxpool.Pool) *PgReportRepository {
	return &PgReportRepository{pool: pool}
}

// Save es write-once: un id repetido devuelve ErrReportExists.
func (r *PgReportRepository) Save(ctx context.Context, report domain.EvaluationReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertReport = `
		INSERT INTO evaluation_reports (id, run_date, models, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertReport, report.ID, report.RunDate, modelIDs(report), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportExists
	}

	const insertScore = `
		INSERT INTO trait_scores (report_id, model, trait, mean, item_count, expected, missing_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	batch := &pgx.Batch{}
	for _, res := range report.Results {
		for _, s := range res.Scores {
			var mean interface{}
			if s.Mean != nil {
				mean = *s.Mean
			}
			batch.Queue(insertScore, report.ID, res.ID, string(s.Trait), mean, s.ItemCount, s.Expected, s.MissingCount)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert trait scores: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PgReportRepository) Get(ctx context.Context, id string) (domain.EvaluationReport, error) {
	const query = `SELECT payload FROM evaluation_reports WHERE id = $1`
	return r.scanReport(r.pool.QueryRow(ctx, query, id))
}

func (r *PgReportRepository) Latest(ctx context.Context) (domain.EvaluationReport, error) {
	const query = `SELECT payload FROM evaluation_reports ORDER BY run_date DESC, id DESC LIMIT 1`
	return r.scanReport(r.pool.QueryRow(ctx, query))
}

func (r *PgReportRepository) List(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, run_date, models
		FROM evaluation_reports
		ORDER BY run_date DESC, id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []ReportSummary{}
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(&s.ID, &s.RunDate, &s.Models); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *PgReportRepository) scanReport(row pgx.Row) (domain.EvaluationReport, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EvaluationReport{}, ErrReportNotFound
		}
		return domain.EvaluationReport{}, err
	}
	var report domain.EvaluationReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("decode report payload: %w", err)
	}
	return report, nil
}

func modelIDs(report domain.EvaluationReport) []string {
	ids := make([]string, 0, len(report.Models))
	for _, m := range report.Models {
		ids = append(ids, m.ID)
	}
	return ids
}
