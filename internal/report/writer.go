package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/inventory"
)

var ErrArtifactExists = errors.New("artifact already exists")

// Artifacts son las rutas escritas para un reporte. ErrorsCSV queda vacio si no hubo fallas.
type Artifacts struct {
	JSON      string `json:"json"`
	ScoresCSV string `json:"scores_csv"`
	ErrorsCSV string `json:"errors_csv,omitempty"`
}

// Writer publica los artefactos de una corrida. Nunca sobrescribe.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = "results"
	}
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Write(report domain.EvaluationReport) (Artifacts, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create results dir: %w", err)
	}
	suffix := artifactSuffix(report)

	var out Artifacts
	out.JSON = filepath.Join(w.dir, "evaluation_"+suffix+".json")
	if err := writeOnce(out.JSON, func(f io.Writer) error { return EncodeJSON(f, report) }); err != nil {
		return Artifacts{}, err
	}

	out.ScoresCSV = filepath.Join(w.dir, "scores_"+suffix+".csv")
	if err := writeOnce(out.ScoresCSV, func(f io.Writer) error { return WriteScoresCSV(f, report) }); err != nil {
		return out, err
	}

	if HasFailures(report) {
		out.ErrorsCSV = filepath.Join(w.dir, "errors_"+suffix+".csv")
		if err := writeOnce(out.ErrorsCSV, func(f io.Writer) error { return WriteErrorsCSV(f, report) }); err != nil {
			return out, err
		}
	}
	return out, nil
}

func artifactSuffix(report domain.EvaluationReport) string {
	id := report.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return report.RunDate.UTC().Format("20060102_150405") + "_" + id
}

func writeOnce(path string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrArtifactExists)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// EncodeJSON usa indentacion fija: mismo reporte, mismos bytes.
func EncodeJSON(w io.Writer, report domain.EvaluationReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteScoresCSV escribe una fila por item y una columna por modelo.
func WriteScoresCSV(w io.Writer, report domain.EvaluationReport) error {
	cw := csv.NewWriter(w)
	header := []string{"Question"}
	for _, m := range report.Models {
		header = append(header, m.Label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	ratings := make([]map[int][]string, len(report.Results))
	for i, res := range report.Results {
		ratings[i] = make(map[int][]string)
		for _, obs := range res.Observations {
			if obs.Valid() {
				ratings[i][obs.ItemIndex] = append(ratings[i][obs.ItemIndex], strconv.Itoa(*obs.Rating))
			}
		}
	}

	for _, item := range report.Items {
		row := []string{inventory.Statement(item)}
		for i := range report.Results {
			row = append(row, strings.Join(ratings[i][item.Index], ";"))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteErrorsCSV lista cada observacion que no aporto rating.
func WriteErrorsCSV(w io.Writer, report domain.EvaluationReport) error {
	statements := make(map[int]string, len(report.Items))
	for _, item := range report.Items {
		statements[item.Index] = inventory.Statement(item)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Model", "Question", "Trial", "Outcome", "Error Kind", "Error", "Response"}); err != nil {
		return err
	}
	for _, res := range report.Results {
		for _, obs := range res.Observations {
			if obs.Valid() {
				continue
			}
			row := []string{
				res.Label,
				statements[obs.ItemIndex],
				strconv.Itoa(obs.Trial),
				string(obs.Outcome),
				obs.ErrorKind,
				obs.Error,
				obs.Raw,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		if len(res.Observations) == 0 && res.Status == domain.StatusFailed {
			if err := cw.Write([]string{res.Label, "", "", string(domain.OutcomeError), res.FailureKind, res.FailureError, ""}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// HasFailures indica si hay algo para el CSV de errores.
func HasFailures(report domain.EvaluationReport) bool {
	for _, res := range report.Results {
		if res.Status == domain.StatusFailed {
			return true
		}
		for _, obs := range res.Observations {
			if !obs.Valid() {
				return true
			}
		}
	}
	return false
}

// Load lee un reporte publicado.
func Load(path string) (domain.EvaluationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("read report: %w", err)
	}
	var r domain.EvaluationReport
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.EvaluationReport{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	return r, nil
}
