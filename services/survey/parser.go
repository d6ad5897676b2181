package survey

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ScoreRecord is one validated survey row: the course/instructor average
// pair measured for a single offering.
type ScoreRecord struct {
	Year             int
	SemesterCode     int
	Unique           int
	Respondents      int
	CourseAverage    float64
	ProfessorAverage float64
}

// header column names, matched case-insensitively
const (
	colSemester    = "semester"
	colUnique      = "unique"
	colRespondents = "respondents"
	colCourseAvg   = "course avg"
	colProfAvg     = "instructor avg"
)

// ParseSheet reads one worksheet of a survey score report. Invalid rows are
// skipped and counted; the per-sheet skipped count is logged and returned.
func ParseSheet(ctx context.Context, data []byte, sheet string) ([]ScoreRecord, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("open score report: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	index := headerIndex(rows[0])
	for _, col := range []string{colSemester, colUnique, colRespondents, colCourseAvg, colProfAvg} {
		if index[col] < 0 {
			return nil, 0, fmt.Errorf("sheet %q is missing column %q", sheet, col)
		}
	}

	var records []ScoreRecord
	skipped := 0
	for _, row := range rows[1:] {
		record, ok := buildRecord(row, index)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}

	if skipped > 0 {
		slog.WarnContext(ctx, "skipped invalid survey rows", "sheet", sheet, "skipped", skipped)
	}
	return records, skipped, nil
}

func headerIndex(header []string) map[string]int {
	index := map[string]int{
		colSemester:    -1,
		colUnique:      -1,
		colRespondents: -1,
		colCourseAvg:   -1,
		colProfAvg:     -1,
	}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := index[name]; ok {
			index[name] = i
		}
	}
	return index
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// buildRecord validates one sheet row. The semester cell is the 5-character
// combined code (4-digit year + 1-digit semester).
func buildRecord(row []string, index map[string]int) (ScoreRecord, bool) {
	code := cell(row, index[colSemester])
	if len(code) != 5 {
		return ScoreRecord{}, false
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil {
		return ScoreRecord{}, false
	}
	semester, err := strconv.Atoi(code[4:])
	if err != nil {
		return ScoreRecord{}, false
	}
	unique, err := strconv.Atoi(cell(row, index[colUnique]))
	if err != nil {
		return ScoreRecord{}, false
	}
	respondents, err := strconv.Atoi(cell(row, index[colRespondents]))
	if err != nil {
		return ScoreRecord{}, false
	}
	courseAvg, err := strconv.ParseFloat(cell(row, index[colCourseAvg]), 64)
	if err != nil {
		return ScoreRecord{}, false
	}
	profAvg, err := strconv.ParseFloat(cell(row, index[colProfAvg]), 64)
	if err != nil {
		return ScoreRecord{}, false
	}

	return ScoreRecord{
		Year:             year,
		SemesterCode:     semester,
		Unique:           unique,
		Respondents:      respondents,
		CourseAverage:    courseAvg,
		ProfessorAverage: profAvg,
	}, true
}
