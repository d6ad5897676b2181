package schedule

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const extractHeader = "Year\tSemester\tDept\tCourse Number\tTopic\tUnique\tDays\tFrom\tTo\tBuilding\tRoom\tMax Enrollment\tSeats Taken\tInstructor EID\tInstructor Name\tCross Listings\tTitle\tSession"

func extract(rows ...string) []byte {
	lines := append([]string{
		"Report of all scheduled classes",
		"",
		extractHeader,
	}, rows...)
	return []byte(strings.Join(lines, "\n"))
}

func TestParseExtractHeaderDetection(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tC S\t311\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
	))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "c s", rows[0]["dept"])
	require.Equal(t, "discrete math", rows[0]["title"])
}

func TestParseExtractNoHeader(t *testing.T) {
	_, err := ParseExtract([]byte("just some\ttext\nwithout a proper header"))
	require.Error(t, err)
}

func TestBuildDraftWebLocation(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tE\tE 316L\t\t50002\tTTH\t930\t1100\t\t\t35\t35\tab987\tSmith, Alex\t\tBRITISH LITERATURE -W\t",
	))
	require.NoError(t, err)

	draft, err := BuildDraft(rows[0])
	require.NoError(t, err)
	require.Equal(t, "E 316L", draft.CourseNumber)
	require.Equal(t, "WEB", draft.Location)
}

func TestBuildDraftLocationRules(t *testing.T) {
	cases := []struct {
		building, room, title string
		expect                string
	}{
		{"", "", "plain course title", "N/A"},
		{"gdc", "2.216", "anything", "GDC 2.216"},
		{"", "", "seminar -w", "WEB"},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, location(test.building, test.room, test.title))
	}
}

func TestBuildDraftRejectsBadUnique(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tC S\t311\t\tabc\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
	))
	require.NoError(t, err)

	_, err = BuildDraft(rows[0])
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "unique", verr.Field)
}

func TestBuildDraftRejectsBlankCourse(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tC S\t\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\t\t\t\tUNTITLED\t",
	))
	require.NoError(t, err)

	_, err = BuildDraft(rows[0])
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "course number", verr.Field)
}

func TestBuildDraftTimesAndCrossListings(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tC S\t311\t\t50001\tMWF\tARR\t\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t50002, 50003\tDISCRETE MATH\tF",
	))
	require.NoError(t, err)

	draft, err := BuildDraft(rows[0])
	require.NoError(t, err)
	require.Nil(t, draft.TimeBegin)
	require.Nil(t, draft.TimeEnd)
	require.Equal(t, []int{50002, 50003}, draft.CrossListings)
	require.Equal(t, "F", draft.Session)
	require.Equal(t, "jane", draft.ProfessorFirst)
	require.Equal(t, "doe", draft.ProfessorLast)
}

func TestDraftAllSkipsInvalidRows(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2020\t9\tC S\t311\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
		"2020\t9\tC S\t311\t\tabc\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
		"2020\t9\tC S\t\t\t50003\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
	))
	require.NoError(t, err)

	drafts, skipped := DraftAll(context.Background(), rows)
	require.Len(t, drafts, 1)
	require.Equal(t, 2, skipped)
}

func TestExtractSemester(t *testing.T) {
	rows, err := ParseExtract(extract(
		"2021\t2\tC S\t311\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\t\t\t\tDISCRETE MATH\t",
	))
	require.NoError(t, err)

	year, code, ok := ExtractSemester(rows)
	require.True(t, ok)
	require.Equal(t, 2021, year)
	require.Equal(t, 2, code)

	_, _, ok = ExtractSemester(nil)
	require.False(t, ok)
}
