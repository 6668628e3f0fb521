package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/units"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// Source supplies job state and results. The matching engine satisfies it.
type Source interface {
	GetJobStatus(ctx context.Context, id uuid.UUID) (entity.JobSnapshot, error)
	Results(ctx context.Context, id uuid.UUID) ([]entity.MatchResult, error)
}

// Service produces XLSX bytes for priced BOQ exports.
type Service struct {
	source Source
	logger *slog.Logger
}

func NewService(source Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// ExportJobXLSX returns the priced BOQ of a job as an XLSX workbook.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	snap, err := s.source.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results, err := s.source.Results(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return s.Render(snap, results)
}

// Render writes a results sheet and a summary sheet.
func (s *Service) Render(snap entity.JobSnapshot, results []entity.MatchResult) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Row", "Section", "Description", "Qty", "Unit",
		"Item Code", "Matched Item", "Item Unit", "Rate", "Total",
		"Method", "Confidence", "Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resultsSheet, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(resultsSheet, 1, 1, bold)
	}

	var grand float64
	for i, r := range results {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(resultsSheet, cell, v)
		}
		write(1, r.RowNumber)
		write(2, strings.Join(r.ContextHeaders, " > "))
		write(3, r.Description)
		if r.Kind != entity.KindContextHeader {
			write(4, r.Quantity)
			write(5, r.Unit)
		}
		if r.Match != nil {
			write(6, r.Match.Code)
			write(7, r.Match.Description)
			write(8, r.Match.Unit)
			write(9, r.Match.Rate)
			write(10, r.TotalPrice())
			write(12, round(r.Confidence, 3))
			grand += r.TotalPrice()
		}
		write(11, string(r.Method))
		write(13, truncate(notes(r), 200))
		if r.Kind == entity.KindContextHeader && bold != 0 {
			_ = f.SetRowStyle(resultsSheet, row, row, bold)
		}
	}

	_ = f.SetColWidth(resultsSheet, "A", "A", 6)
	_ = f.SetColWidth(resultsSheet, "B", "B", 28)
	_ = f.SetColWidth(resultsSheet, "C", "C", 48)
	_ = f.SetColWidth(resultsSheet, "D", "E", 10)
	_ = f.SetColWidth(resultsSheet, "F", "F", 12)
	_ = f.SetColWidth(resultsSheet, "G", "G", 48)
	_ = f.SetColWidth(resultsSheet, "H", "L", 12)
	_ = f.SetColWidth(resultsSheet, "M", "M", 60)

	summary := [][2]any{
		{"Job", snap.JobID.String()},
		{"Name", snap.Name},
		{"Owner", snap.OwnerID},
		{"Strategy", string(snap.Strategy)},
		{"Status", string(snap.Status)},
		{"Items", snap.ItemCount},
		{"Matched", snap.MatchedCount},
		{"Section headers", snap.ContextCount},
		{"Unmatched", snap.Unmatched},
		{"Total value", round(grand, 2)},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", snap.JobID.String(),
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func notes(r entity.MatchResult) string {
	var parts []string
	if r.FallbackFrom != "" && !strings.Contains(r.Notes, string(r.FallbackFrom)) {
		parts = append(parts, "fallback from "+string(r.FallbackFrom))
	}
	if r.Notes != "" {
		parts = append(parts, r.Notes)
	}
	if u := unitNote(r); u != "" {
		parts = append(parts, u)
	}
	return strings.Join(parts, "; ")
}

// unitNote flags a BOQ unit that differs from the matched item's unit and
// restates the quantity in the item unit when the two convert.
func unitNote(r entity.MatchResult) string {
	if r.Match == nil || r.Unit == "" || r.Match.Unit == "" || units.Equal(r.Unit, r.Match.Unit) {
		return ""
	}
	if !units.Known(r.Unit) {
		return fmt.Sprintf("unrecognised unit %q", r.Unit)
	}
	if q, ok := units.Convert(r.Quantity, r.Unit, r.Match.Unit); ok {
		return fmt.Sprintf("%g %s = %g %s", r.Quantity, units.Normalize(r.Unit), round(q, 4), units.Normalize(r.Match.Unit))
	}
	return fmt.Sprintf("unit %s does not convert to %s", units.Normalize(r.Unit), units.Normalize(r.Match.Unit))
}

func round(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
