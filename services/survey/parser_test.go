package survey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func scoreSheet(t *testing.T, sheet string, rows [][]any) []byte {
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	header := []any{"Semester", "Unique", "Respondents", "Course Avg", "Instructor Avg"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseSheet(t *testing.T) {
	data := scoreSheet(t, "Fall 2020", [][]any{
		{"20209", 50001, 42, 4.2, 4.5},
		{"20209", 50002, 17, 3.1, 3.3},
	})

	records, skipped, err := ParseSheet(context.Background(), data, "Fall 2020")
	require.NoError(t, err)
	require.Equal(t, 0, skipped)
	require.Equal(t, []ScoreRecord{
		{Year: 2020, SemesterCode: 9, Unique: 50001, Respondents: 42, CourseAverage: 4.2, ProfessorAverage: 4.5},
		{Year: 2020, SemesterCode: 9, Unique: 50002, Respondents: 17, CourseAverage: 3.1, ProfessorAverage: 3.3},
	}, records)
}

func TestParseSheetSkipsInvalidRows(t *testing.T) {
	data := scoreSheet(t, "Fall 2020", [][]any{
		{"209", 50001, 42, 4.2, 4.5},          // semester code not 5 chars
		{"20209", "abc", 42, 4.2, 4.5},        // unique not numeric
		{"20209", 50003, "n/a", 4.2, 4.5},     // respondents not numeric
		{"20209", 50004, 42, "poor", 4.5},     // course average not a float
		{"20209", 50005, 42, 4.2, 4.5},        // valid
	})

	records, skipped, err := ParseSheet(context.Background(), data, "Fall 2020")
	require.NoError(t, err)
	require.Equal(t, 4, skipped)
	require.Len(t, records, 1)
	require.Equal(t, 50005, records[0].Unique)
}

func TestParseSheetMissingColumn(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	header := []any{"Semester", "Unique"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	row := []any{"20209", 50001}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, _, err = ParseSheet(context.Background(), buf.Bytes(), "Sheet1")
	require.Error(t, err)
}

func TestParseSheetUnknownSheet(t *testing.T) {
	data := scoreSheet(t, "Fall 2020", nil)
	_, _, err := ParseSheet(context.Background(), data, "nonexistent")
	require.Error(t, err)
}
