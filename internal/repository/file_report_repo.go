package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/report"
)

// FileReportRepository lee y escribe los JSON del directorio de resultados.
// Es el backend por defecto cuando no hay DATABASE_URL.
type FileReportRepository struct {
	writer *report.Writer
}

func NewFileReportRepository(dir string) *FileReportRepository {
	return &FileReportRepository{writer: report.NewWriter(dir)}
}

func (r *FileReportRepository) Save(_ context.Context, rep domain.EvaluationReport) error {
	if _, err := r.find(rep.ID); err == nil {
		return ErrReportExists
	}
	if _, err := r.writer.Write(rep); err != nil {
		if errors.Is(err, report.ErrArtifactExists) {
			return ErrReportExists
		}
		return err
	}
	return nil
}

func (r *FileReportRepository) Get(_ context.Context, id string) (domain.EvaluationReport, error) {
	return r.find(id)
}

func (r *FileReportRepository) Latest(ctx context.Context) (domain.EvaluationReport, error) {
	all, err := r.loadAll()
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	if len(all) == 0 {
		return domain.EvaluationReport{}, ErrReportNotFound
	}
	return all[0], nil
}

func (r *FileReportRepository) List(_ context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	all, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	out := []ReportSummary{}
	for _, rep := range all {
		if len(out) == limit {
			break
		}
		out = append(out, ReportSummary{ID: rep.ID, RunDate: rep.RunDate, Models: modelIDs(rep)})
	}
	return out, nil
}

func (r *FileReportRepository) find(id string) (domain.EvaluationReport, error) {
	if strings.TrimSpace(id) == "" {
		return domain.EvaluationReport{}, ErrReportNotFound
	}
	all, err := r.loadAll()
	if err != nil {
		return domain.EvaluationReport{}, err
	}
	for _, rep := range all {
		if rep.ID == id {
			return rep, nil
		}
	}
	return domain.EvaluationReport{}, ErrReportNotFound
}

// loadAll devuelve los reportes del mas nuevo al mas viejo.
func (r *FileReportRepository) loadAll() ([]domain.EvaluationReport, error) {
	paths, err := filepath.Glob(filepath.Join(r.writer.Dir(), "evaluation_*.json"))
	if err != nil {
		return nil, err
	}
	reports := make([]domain.EvaluationReport, 0, len(paths))
	for _, p := range paths {
		rep, err := report.Load(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", filepath.Base(p), err)
		}
		reports = append(reports, rep)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].RunDate.Equal(reports[j].RunDate) {
			return reports[i].RunDate.After(reports[j].RunDate)
		}
		return reports[i].ID > reports[j].ID
	})
	return reports, nil
}
