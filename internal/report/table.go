package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bigfive-llm/internal/domain"
)

const missingCell = "N/A"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	missingStyle = cellStyle.Align(lipgloss.Right).Foreground(lipgloss.Color("241"))
)

// FormatMean usa dos decimales; missing se muestra como N/A.
func FormatMean(s domain.TraitScore) string {
	if s.Missing() {
		return missingCell
	}
	return fmt.Sprintf("%.2f", *s.Mean)
}

// Rows devuelve encabezados y filas de la tabla de promedios por rasgo.
func Rows(report domain.EvaluationReport) ([]string, [][]string) {
	headers := []string{"Model"}
	for _, t := range domain.TraitOrder {
		headers = append(headers, t.Name())
	}
	headers = append(headers, "Missing", "Refusals", "Status")

	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		row := []string{res.Label}
		for _, t := range domain.TraitOrder {
			score, _ := res.Score(t)
			row = append(row, FormatMean(score))
		}
		status := string(res.Status)
		if res.FailureKind != "" {
			status += "(" + res.FailureKind + ")"
		}
		row = append(row, strconv.Itoa(res.Missing), strconv.Itoa(res.Refusals), status)
		rows = append(rows, row)
	}
	return headers, rows
}

// RenderTable arma la tabla comparativa para la terminal.
func RenderTable(report domain.EvaluationReport) string {
	headers, rows := Rows(report)
	// rasgos + Missing + Refusals
	lastNumeric := len(domain.TraitOrder) + 2

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 1 && col <= lastNumeric:
				if row >= 0 && row < len(rows) && rows[row][col] == missingCell {
					return missingStyle
				}
				return numberStyle
			default:
				return cellStyle
			}
		})

	title := headerStyle.Render(fmt.Sprintf("Big Five trait averages (run %s, %s)", report.ID, report.RunDate.UTC().Format("2006-01-02 15:04")))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}
