package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"alfredoptarigan/job-matcher/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type CSVParserService interface {
	Parse(r io.Reader) ([]models.JobRecord, []string, error)
}

type csvParserService struct {
	cleaner HTMLCleaner
}

// NewCSVParserService returns a parser that keys every row by the header
// line. A nil cleaner leaves cell values untouched.
func NewCSVParserService(cleaner HTMLCleaner) CSVParserService {
	return &csvParserService{cleaner: cleaner}
}

// Parse implements CSVParserService. It returns the job rows and the
// header columns in file order, after normalizeColumns.
func (p *csvParserService) Parse(r io.Reader) ([]models.JobRecord, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &IngestError{Source: "csv", Message: "read failed", Cause: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &IngestError{Source: "csv", Message: "file is empty"}
	}
	if err != nil {
		return nil, nil, &IngestError{Source: "csv", Message: "invalid header row", Cause: err}
	}

	columns := normalizeColumns(header)

	var jobs []models.JobRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, &IngestError{Source: "csv", Message: "invalid row", Cause: err}
		}
		if isBlankRow(row) {
			continue
		}

		job := make(models.JobRecord, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if p.cleaner != nil {
				value = p.cleaner.Clean(value)
			}
			job[col] = value
		}
		jobs = append(jobs, job)
	}

	if len(jobs) == 0 {
		return nil, columns, ErrNoJobRows
	}

	return jobs, columns, nil
}

// normalizeColumns trims header names and renames any that collide,
// ignoring case, with an earlier column or with models.MatchResultField.
// The renamed column gets the first free "_2", "_3", ... suffix, so the
// first occurrence keeps its name.
func normalizeColumns(header []string) []string {
	seen := map[string]bool{strings.ToLower(models.MatchResultField): true}
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		candidate := name
		for n := 2; seen[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[strings.ToLower(candidate)] = true
		columns[i] = candidate
	}
	return columns
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
