package survey

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"
	"github.com/KiboNaku/utreview-backend-sub000/internal/store"
	"github.com/KiboNaku/utreview-backend-sub000/services/aggregate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/survey")

type Reconciler struct {
	st store.Store
}

func NewReconciler(st store.Store) Reconciler {
	return Reconciler{st: st}
}

type Report struct {
	Applied int
	// Duplicates are rows whose measurement is already stored; re-running
	// a sheet must not double-count aggregates.
	Duplicates int
	// UnresolvedOfferings lists "year*10+code/unique" keys no offering
	// instance matched, sorted for the end-of-batch report.
	UnresolvedOfferings []string
}

// UpsertScores appends survey measurements and folds each new one into the
// professor's running survey average, weighted by respondent count. Records
// that reference an unknown semester or offering are reported, never fatal.
func (r Reconciler) UpsertScores(ctx context.Context, batch []ScoreRecord) (Report, error) {
	ctx, span := tracer.Start(ctx, "UpsertScores")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(batch)))

	report := Report{}
	unresolved := map[string]bool{}

	for _, record := range batch {
		err := r.upsertScore(ctx, record, &report, unresolved)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}

	for key := range unresolved {
		report.UnresolvedOfferings = append(report.UnresolvedOfferings, key)
	}
	sort.Strings(report.UnresolvedOfferings)
	if len(report.UnresolvedOfferings) > 0 {
		slog.WarnContext(ctx, "survey batch referenced unknown offerings",
			"offerings", report.UnresolvedOfferings)
	}
	return report, nil
}

func (r Reconciler) upsertScore(ctx context.Context, record ScoreRecord, report *Report, unresolved map[string]bool) error {
	key := fmt.Sprintf("%d%d/%d", record.Year, record.SemesterCode, record.Unique)

	semester, found, err := r.st.SemesterByYearCode(ctx, record.Year, record.SemesterCode)
	if err != nil {
		return err
	}
	if !found {
		unresolved[key] = true
		return nil
	}

	pcs, found, err := r.st.ProfCourseSemesterByOffering(ctx, semester.ID, record.Unique)
	if err != nil {
		return err
	}
	if !found {
		unresolved[key] = true
		return nil
	}

	var existing int64
	err = r.st.DB().WithContext(ctx).Model(&models.EcisScore{}).
		Where("prof_course_semester_id = ? AND course_average = ? AND professor_average = ? AND respondents = ?",
			pcs.ID, record.CourseAverage, record.ProfessorAverage, record.Respondents).
		Count(&existing).Error
	if err != nil {
		return err
	}
	if existing > 0 {
		report.Duplicates++
		return nil
	}

	score := models.EcisScore{
		ProfCourseSemesterID: pcs.ID,
		CourseAverage:        record.CourseAverage,
		ProfessorAverage:     record.ProfessorAverage,
		Respondents:          record.Respondents,
	}
	err = r.st.DB().WithContext(ctx).Create(&score).Error
	if err != nil {
		return fmt.Errorf("create survey score: %w", err)
	}

	err = r.applyProfessorAggregate(ctx, pcs.ProfCourseID, record)
	if err != nil {
		return err
	}
	report.Applied++
	return nil
}

func (r Reconciler) applyProfessorAggregate(ctx context.Context, profCourseID uint, record ScoreRecord) error {
	var pc models.ProfCourse
	err := r.st.DB().WithContext(ctx).First(&pc, profCourseID).Error
	if err != nil {
		return fmt.Errorf("load prof course %d: %w", profCourseID, err)
	}

	var professor models.Professor
	err = r.st.DB().WithContext(ctx).First(&professor, pc.ProfessorID).Error
	if err != nil {
		return fmt.Errorf("load professor %d: %w", pc.ProfessorID, err)
	}

	mean := aggregate.Mean{Value: professor.SurveyAverage, Count: professor.SurveyRespondents}
	mean = mean.Apply(record.ProfessorAverage, int64(record.Respondents))

	err = r.st.DB().WithContext(ctx).Model(&models.Professor{}).
		Where("id = ?", professor.ID).
		Updates(map[string]any{
			"survey_average":     mean.Value,
			"survey_respondents": mean.Count,
		}).Error
	if err != nil {
		return fmt.Errorf("update professor survey aggregate: %w", err)
	}
	return nil
}
