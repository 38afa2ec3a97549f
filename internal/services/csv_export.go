package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"alfredoptarigan/job-matcher/internal/models"
)

// ExportListDelimiter joins pros, cons and keywords inside one CSV cell.
const ExportListDelimiter = " / "

var exportHeader = []string{
	"key", "company", "position",
	"overallScore", "experienceAndSkills", "cultureFit", "conditions", "keywords",
	"summary", "pros", "cons", "matchingKeywords",
}

// ExportRow is one parsed line of an export file.
type ExportRow struct {
	Key              string
	Company          string
	Position         string
	OverallScore     float64
	ScoreBreakdown   models.ScoreBreakdown
	Summary          string
	Pros             []string
	Cons             []string
	MatchingKeywords []string
}

// WriteExportCSV writes results as a UTF-8 CSV with a byte-order mark so
// spreadsheet apps pick the right encoding.
func WriteExportCSV(w io.Writer, results []models.EnrichedJobRecord) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for i, rec := range results {
		mr := rec.MatchResult
		row := []string{
			rec.Job.Key(rec.Index),
			rec.Job.Company(),
			rec.Job.Position(),
			formatScore(mr.OverallScore),
			formatScore(mr.ScoreBreakdown.ExperienceAndSkills),
			formatScore(mr.ScoreBreakdown.CultureFit),
			formatScore(mr.ScoreBreakdown.Conditions),
			formatScore(mr.ScoreBreakdown.Keywords),
			mr.Summary,
			strings.Join(mr.Pros, ExportListDelimiter),
			strings.Join(mr.Cons, ExportListDelimiter),
			strings.Join(mr.MatchingKeywords, ExportListDelimiter),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write export row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

// ExportCSV renders results into memory.
func ExportCSV(results []models.EnrichedJobRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteExportCSV(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseExport reads a file produced by WriteExportCSV.
func ParseExport(r io.Reader) ([]ExportRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export is missing its header")
	}
	if len(records[0]) != len(exportHeader) {
		return nil, fmt.Errorf("export header has %d columns, want %d", len(records[0]), len(exportHeader))
	}

	rows := make([]ExportRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		scores := make([]float64, 5)
		for i := range scores {
			v, err := strconv.ParseFloat(rec[3+i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s: %w", n+1, exportHeader[3+i], err)
			}
			scores[i] = v
		}

		rows = append(rows, ExportRow{
			Key:          rec[0],
			Company:      rec[1],
			Position:     rec[2],
			OverallScore: scores[0],
			ScoreBreakdown: models.ScoreBreakdown{
				ExperienceAndSkills: scores[1],
				CultureFit:          scores[2],
				Conditions:          scores[3],
				Keywords:            scores[4],
			},
			Summary:          rec[8],
			Pros:             splitList(rec[9]),
			Cons:             splitList(rec[10]),
			MatchingKeywords: splitList(rec[11]),
		})
	}
	return rows, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func splitList(cell string) []string {
	if cell == "" {
		return []string{}
	}
	return strings.Split(cell, ExportListDelimiter)
}
