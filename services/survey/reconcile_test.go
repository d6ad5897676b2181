package survey

import (
	"context"
	"testing"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"
	"github.com/KiboNaku/utreview-backend-sub000/internal/store"
	"github.com/KiboNaku/utreview-backend-sub000/lib/testutil"

	"github.com/stretchr/testify/require"
)

// seedOffering creates the full chain a survey score joins against:
// department, course, professor, semester, ProfCourse, ProfCourseSemester.
func seedOffering(t *testing.T, st store.Store, unique int) models.Professor {
	db := st.DB()

	dept := models.Department{Abbreviation: "C S"}
	require.NoError(t, db.Create(&dept).Error)
	course := models.Course{DepartmentID: dept.ID, Number: "311", TopicNumber: -1}
	require.NoError(t, db.Create(&course).Error)
	professor := models.Professor{DirectoryID: "jd123", FirstName: "jane", LastName: "doe"}
	require.NoError(t, db.Create(&professor).Error)
	semester := models.Semester{Year: 2020, Code: 9}
	require.NoError(t, db.Create(&semester).Error)

	pc := models.ProfCourse{ProfessorID: professor.ID, CourseID: course.ID}
	require.NoError(t, db.Create(&pc).Error)
	pcs := models.ProfCourseSemester{ProfCourseID: pc.ID, SemesterID: semester.ID, UniqueNumber: unique}
	require.NoError(t, db.Create(&pcs).Error)

	return professor
}

func TestUpsertScores(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "services/survey"})
	defer cleanup()
	r := NewReconciler(setup.Store)
	ctx := context.Background()
	professor := seedOffering(t, setup.Store, 50001)

	batch := []ScoreRecord{
		{Year: 2020, SemesterCode: 9, Unique: 50001, Respondents: 10, CourseAverage: 4.0, ProfessorAverage: 4.0},
	}
	report, err := r.UpsertScores(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 1, report.Applied)

	var updated models.Professor
	require.NoError(t, setup.Store.DB().First(&updated, professor.ID).Error)
	require.InDelta(t, 4.0, updated.SurveyAverage, 1e-9)
	require.EqualValues(t, 10, updated.SurveyRespondents)

	// a second measurement shifts the weighted mean
	more := []ScoreRecord{
		{Year: 2020, SemesterCode: 9, Unique: 50001, Respondents: 30, CourseAverage: 2.0, ProfessorAverage: 2.0},
	}
	_, err = r.UpsertScores(ctx, more)
	require.NoError(t, err)

	require.NoError(t, setup.Store.DB().First(&updated, professor.ID).Error)
	require.InDelta(t, 2.5, updated.SurveyAverage, 1e-9)
	require.EqualValues(t, 40, updated.SurveyRespondents)
}

func TestUpsertScoresIdempotent(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "services/survey"})
	defer cleanup()
	r := NewReconciler(setup.Store)
	ctx := context.Background()
	professor := seedOffering(t, setup.Store, 50001)

	batch := []ScoreRecord{
		{Year: 2020, SemesterCode: 9, Unique: 50001, Respondents: 10, CourseAverage: 4.0, ProfessorAverage: 4.0},
	}
	_, err := r.UpsertScores(ctx, batch)
	require.NoError(t, err)

	report, err := r.UpsertScores(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 0, report.Applied)
	require.Equal(t, 1, report.Duplicates)

	var scores int64
	require.NoError(t, setup.Store.DB().Model(&models.EcisScore{}).Count(&scores).Error)
	require.EqualValues(t, 1, scores)

	var updated models.Professor
	require.NoError(t, setup.Store.DB().First(&updated, professor.ID).Error)
	require.EqualValues(t, 10, updated.SurveyRespondents)
}

func TestUpsertScoresUnresolved(t *testing.T) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{Name: "services/survey"})
	defer cleanup()
	r := NewReconciler(setup.Store)
	ctx := context.Background()
	seedOffering(t, setup.Store, 50001)

	batch := []ScoreRecord{
		{Year: 2020, SemesterCode: 9, Unique: 99999, Respondents: 5, CourseAverage: 3.0, ProfessorAverage: 3.0},
		{Year: 2031, SemesterCode: 2, Unique: 50001, Respondents: 5, CourseAverage: 3.0, ProfessorAverage: 3.0},
	}
	report, err := r.UpsertScores(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 0, report.Applied)
	require.Equal(t, []string{"20209/99999", "20312/50001"}, report.UnresolvedOfferings)
}
