package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"
	"github.com/KiboNaku/utreview-backend-sub000/lib/fetch"
	"github.com/KiboNaku/utreview-backend-sub000/lib/testutil"
	"github.com/KiboNaku/utreview-backend-sub000/lib/timezone"
	"github.com/KiboNaku/utreview-backend-sub000/services/schedule"

	"github.com/stretchr/testify/require"
)

const extractHeader = "Year\tSemester\tDept\tCourse Number\tTopic\tUnique\tDays\tFrom\tTo\tBuilding\tRoom\tMax Enrollment\tSeats Taken\tInstructor EID\tInstructor Name\tCross Listings\tTitle\tSession"

func fallExtract() string {
	return strings.Join([]string{
		extractHeader,
		"2020\t9\tC S\t311\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
		"2020\t9\tC S\t311\t\t50002\tTTH\t930\t1100\t\t\t35\t35\tjd123\tDoe, Jane\t\tDISCRETE MATH -W\t",
	}, "\n")
}

func springExtract() string {
	return strings.Join([]string{
		extractHeader,
		"2021\t2\tC S\t429\t\t60001\tMW\t1300\t1430\tGDC\t1.304\t90\t12\tab987\tSmith, Alex\t\tCOMPUTER ORGANIZATION\t",
	}, "\n")
}

func testOrchestrator(t *testing.T, files map[string]string) (*Orchestrator, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "services/orchestrator"})

	dir := t.TempDir()
	fetcher := fetch.NewClientWithDialer(func(addr string) (fetch.FTPConn, error) {
		return ftpDir(files), nil
	})

	config := Config{
		FtpHost: "reports.example.edu:21",
		Reports: ReportNames{
			Current: "current.txt",
			Next:    "next.txt",
			Future:  "future.txt",
		},
		CommandFile: filepath.Join(dir, "commands.txt"),
		MarkerFile:  filepath.Join(dir, "markers.json"),
	}

	// departments come from catalog ingestion; seed the one the extracts use
	require.NoError(t, setup.Store.DB().Create(&models.Department{Abbreviation: "C S"}).Error)

	return New(config, fetcher, setup.Store), cleanup
}

type ftpDir map[string]string

func (d ftpDir) Login(user, password string) error { return nil }
func (d ftpDir) Quit() error                       { return nil }

func (d ftpDir) Retr(path string) (io.ReadCloser, error) {
	data, ok := d[path]
	if !ok {
		return nil, errors.New("550 file not found")
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestRunOnceIngestsExtracts(t *testing.T) {
	o, cleanup := testOrchestrator(t, map[string]string{
		"current.txt": fallExtract(),
		"next.txt":    springExtract(),
	})
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, o.RunOnce(ctx))

	// markers derived from the extract headers; the future report was
	// unavailable and stays null
	markers, err := ReadMarkers(o.config.MarkerFile)
	require.NoError(t, err)
	require.NotNil(t, markers.Current)
	require.Equal(t, 20209, *markers.Current)
	require.NotNil(t, markers.Next)
	require.Equal(t, 20212, *markers.Next)
	require.Nil(t, markers.Future)

	fall, found, err := o.st.SemesterByYearCode(ctx, 2020, 9)
	require.NoError(t, err)
	require.True(t, found)

	web, found, err := o.st.SectionByUnique(ctx, 50002, fall.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "WEB", web.Location)

	dept, _, err := o.st.DepartmentByAbbr(ctx, "C S")
	require.NoError(t, err)
	course, found, err := o.st.CourseByKey(ctx, dept.ID, "311", -1)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, course.Current)
	require.False(t, course.Next)

	// second pass over identical data is a no-op
	require.NoError(t, o.RunOnce(ctx))
	var sections int64
	require.NoError(t, o.st.DB().Model(&models.ScheduledCourse{}).Count(&sections).Error)
	require.EqualValues(t, 3, sections)
}

func TestRunOnceSoftDeletesVanishedSections(t *testing.T) {
	files := map[string]string{"current.txt": fallExtract()}
	o, cleanup := testOrchestrator(t, files)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, o.RunOnce(ctx))

	// the next day's extract no longer lists section 50002
	files["current.txt"] = strings.Join([]string{
		extractHeader,
		"2020\t9\tC S\t311\t\t50001\tMWF\t1000\t1100\tGDC\t2.216\t120\t118\tjd123\tDoe, Jane\t\tDISCRETE MATH\t",
	}, "\n")
	require.NoError(t, o.RunOnce(ctx))

	fall, _, err := o.st.SemesterByYearCode(ctx, 2020, 9)
	require.NoError(t, err)
	gone, found, err := o.st.SectionByUnique(ctx, 50002, fall.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, gone.Removed)
}

func TestProcessCommandsTruncatesQueue(t *testing.T) {
	o, cleanup := testOrchestrator(t, map[string]string{})
	defer cleanup()
	ctx := context.Background()

	queue := strings.Join([]string{
		"not a real verb /tmp/x",
		"ecis",
		"",
		"prof_course /nonexistent/extract.txt",
	}, "\n")
	require.NoError(t, os.WriteFile(o.config.CommandFile, []byte(queue), 0644))

	// malformed lines are ignored, the failing prof_course is logged, and
	// the queue is drained either way
	require.NoError(t, o.ProcessCommands(ctx))

	data, err := os.ReadFile(o.config.CommandFile)
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestProcessCommandsReingestsExtractFile(t *testing.T) {
	o, cleanup := testOrchestrator(t, map[string]string{})
	defer cleanup()
	ctx := context.Background()

	dir := filepath.Dir(o.config.CommandFile)
	extractPath := filepath.Join(dir, "fall.txt")
	require.NoError(t, os.WriteFile(extractPath, []byte(fallExtract()), 0644))
	require.NoError(t, os.WriteFile(o.config.CommandFile, []byte("prof_course "+extractPath+"\n"), 0644))

	require.NoError(t, o.ProcessCommands(ctx))

	fall, found, err := o.st.SemesterByYearCode(ctx, 2020, 9)
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = o.st.SectionByUnique(ctx, 50001, fall.ID)
	require.NoError(t, err)
	require.True(t, found)
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line   string
		expect Command
		ok     bool
	}{
		{
			line:   "course C_S 1,2,3",
			expect: Command{Verb: "course", Path: "C_S", Args: []string{"1", "2", "3"}},
			ok:     true,
		},
		{
			line:   "ecis /data/ecis.xlsx Fall2020,Spring2021",
			expect: Command{Verb: "ecis", Path: "/data/ecis.xlsx", Args: []string{"Fall2020", "Spring2021"}},
			ok:     true,
		},
		{
			line:   "prof_course /data/fall.txt",
			expect: Command{Verb: "prof_course", Path: "/data/fall.txt"},
			ok:     true,
		},
		{line: "course C_S", ok: false},  // course requires pages
		{line: "ecis /data/e.xlsx", ok: false}, // ecis requires sheets
		{line: "drop everything", ok: false},
		{line: "", ok: false},
		{line: "course", ok: false},
	}

	for _, test := range cases {
		cmd, ok := ParseCommand(test.line)
		require.Equal(t, test.ok, ok, "line %q", test.line)
		if test.ok {
			require.Equal(t, test.expect, cmd)
		}
	}
}

func TestMarkersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.json")

	// missing file: all markers null
	markers, err := ReadMarkers(path)
	require.NoError(t, err)
	require.Nil(t, markers.Current)

	current, next := 20209, 20212
	require.NoError(t, WriteMarkers(path, schedule.Markers{Current: &current, Next: &next}))

	markers, err = ReadMarkers(path)
	require.NoError(t, err)
	require.Equal(t, 20209, *markers.Current)
	require.Equal(t, 20212, *markers.Next)
	require.Nil(t, markers.Future)
}

func TestArchiveLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2020, 9, 15, 12, 0, 0, 0, timezone.Location)

	old := filepath.Join(dir, "ingest.log")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
	oldTime := time.Date(2020, 9, 9, 3, 0, 0, 0, timezone.Location)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	fresh := filepath.Join(dir, "today.log")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0644))
	require.NoError(t, os.Chtimes(fresh, now, now))

	require.NoError(t, ArchiveLogs(dir, now))

	_, err := os.Stat(filepath.Join(dir, "2020", "09", "week2", "ingest.log"))
	require.NoError(t, err)
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}
