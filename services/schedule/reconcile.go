package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"
	"github.com/KiboNaku/utreview-backend-sub000/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/schedule")

// Markers are the three advertised semesters in combined year*10+code form,
// nil when a report was unavailable this run.
type Markers struct {
	Current *int `json:"current"`
	Next    *int `json:"next"`
	Future  *int `json:"future"`
}

type Reconciler struct {
	st store.Store
}

func NewReconciler(st store.Store) Reconciler {
	return Reconciler{st: st}
}

type Report struct {
	Created int
	Updated int
	Skipped int
	// UnknownDepartments lists abbreviations no section could resolve,
	// sorted, deduplicated, reported once per batch.
	UnknownDepartments []string
}

// UpsertSections reconciles a batch of validated extract rows. A record
// that cannot be resolved is skipped or reported; the batch never aborts
// and is safely re-runnable.
func (r Reconciler) UpsertSections(ctx context.Context, drafts []SectionDraft, markers Markers) (Report, error) {
	ctx, span := tracer.Start(ctx, "UpsertSections")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(drafts)))

	report := Report{}
	unknownDepts := map[string]bool{}

	for _, draft := range drafts {
		err := r.upsertSection(ctx, draft, markers, &report, unknownDepts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}

	for abbr := range unknownDepts {
		report.UnknownDepartments = append(report.UnknownDepartments, abbr)
	}
	sort.Strings(report.UnknownDepartments)
	if len(report.UnknownDepartments) > 0 {
		slog.WarnContext(ctx, "batch referenced unknown departments",
			"departments", report.UnknownDepartments)
	}
	return report, nil
}

func (r Reconciler) upsertSection(ctx context.Context, draft SectionDraft, markers Markers, report *Report, unknownDepts map[string]bool) error {
	dept, found, err := r.st.DepartmentByAbbr(ctx, draft.Dept)
	if err != nil {
		return err
	}
	if !found {
		unknownDepts[draft.Dept] = true
		report.Skipped++
		return nil
	}

	course, err := r.resolveCourse(ctx, dept.ID, draft)
	if err != nil {
		return err
	}

	professor, err := r.resolveProfessor(ctx, draft)
	if err != nil {
		return err
	}

	semester, err := r.resolveSemester(ctx, draft.Year, draft.SemesterCode)
	if err != nil {
		return err
	}

	section, sectionFound, err := r.st.SectionByUnique(ctx, draft.Unique, semester.ID)
	if err != nil {
		return err
	}

	var professorID *uint
	if professor != nil {
		professorID = &professor.ID
	}

	if !sectionFound {
		crossListedID, err := r.resolveCrossListing(ctx, draft, semester.ID, nil)
		if err != nil {
			return err
		}
		section = models.ScheduledCourse{
			UniqueNumber:  draft.Unique,
			SemesterID:    semester.ID,
			CourseID:      course.ID,
			ProfessorID:   professorID,
			CrossListedID: crossListedID,
			Session:       draft.Session,
			Days:          draft.Days,
			TimeBegin:     draft.TimeBegin,
			TimeEnd:       draft.TimeEnd,
			Location:      draft.Location,
			MaxEnrolled:   draft.MaxEnrolled,
			CurEnrolled:   draft.CurEnrolled,
		}
		err = r.st.DB().WithContext(ctx).Create(&section).Error
		if err != nil {
			return fmt.Errorf("create section %d: %w", draft.Unique, err)
		}
		report.Created++
	} else {
		// existing group membership takes precedence over anything the
		// incoming record declares
		crossListedID, err := r.resolveCrossListing(ctx, draft, semester.ID, section.CrossListedID)
		if err != nil {
			return err
		}
		section.CourseID = course.ID
		section.ProfessorID = professorID
		section.CrossListedID = crossListedID
		section.Session = draft.Session
		section.Days = draft.Days
		section.TimeBegin = draft.TimeBegin
		section.TimeEnd = draft.TimeEnd
		section.Location = draft.Location
		section.MaxEnrolled = draft.MaxEnrolled
		section.CurEnrolled = draft.CurEnrolled
		section.Removed = false
		err = r.st.DB().WithContext(ctx).Save(&section).Error
		if err != nil {
			return fmt.Errorf("update section %d: %w", draft.Unique, err)
		}
		report.Updated++
	}

	if professor != nil {
		err = r.upsertProfCourse(ctx, professor.ID, course.ID, semester.ID, draft.Unique)
		if err != nil {
			return err
		}
	}

	return r.flagPresence(ctx, course, professor, semester, markers)
}

// resolveCourse finds the course an extract row refers to, falling back from
// the row's topic number to the no-topic row. A course never seen in the
// catalog is created lazily with the extract's title.
func (r Reconciler) resolveCourse(ctx context.Context, deptID uint, draft SectionDraft) (models.Course, error) {
	course, found, err := r.st.CourseByKey(ctx, deptID, draft.CourseNumber, draft.TopicNumber)
	if err != nil {
		return models.Course{}, err
	}
	if found {
		return course, nil
	}
	if draft.TopicNumber != models.NoTopic {
		course, found, err = r.st.CourseByKey(ctx, deptID, draft.CourseNumber, models.NoTopic)
		if err != nil {
			return models.Course{}, err
		}
		if found {
			return course, nil
		}
	}

	course = models.Course{
		DepartmentID: deptID,
		Number:       draft.CourseNumber,
		TopicNumber:  draft.TopicNumber,
		Title:        draft.Title,
	}
	err = r.st.DB().WithContext(ctx).Create(&course).Error
	if err != nil {
		return models.Course{}, fmt.Errorf("create course %s: %w", draft.CourseNumber, err)
	}
	slog.InfoContext(ctx, "created course from extract", "number", draft.CourseNumber)
	return course, nil
}

// resolveProfessor returns nil without error when the extract listed no
// instructor; the section keeps a null professor reference.
func (r Reconciler) resolveProfessor(ctx context.Context, draft SectionDraft) (*models.Professor, error) {
	if draft.ProfessorEID == "" {
		return nil, nil
	}
	professor, found, err := r.st.ProfessorByDirectoryID(ctx, draft.ProfessorEID)
	if err != nil {
		return nil, err
	}
	if found {
		return &professor, nil
	}
	professor = models.Professor{
		DirectoryID: draft.ProfessorEID,
		FirstName:   draft.ProfessorFirst,
		LastName:    draft.ProfessorLast,
	}
	err = r.st.DB().WithContext(ctx).Create(&professor).Error
	if err != nil {
		return nil, fmt.Errorf("create professor %s: %w", draft.ProfessorEID, err)
	}
	return &professor, nil
}

func (r Reconciler) resolveSemester(ctx context.Context, year, code int) (models.Semester, error) {
	semester, found, err := r.st.SemesterByYearCode(ctx, year, code)
	if err != nil {
		return models.Semester{}, err
	}
	if found {
		return semester, nil
	}
	semester = models.Semester{Year: year, Code: code}
	err = r.st.DB().WithContext(ctx).Create(&semester).Error
	if err != nil {
		return models.Semester{}, fmt.Errorf("create semester %d%d: %w", year, code, err)
	}
	return semester, nil
}

// resolveCrossListing joins the group of the first declared sibling that
// already has one, else allocates a new group when siblings are declared.
// An existing membership wins the tie; when the declared siblings span more
// than one group the losers are folded into the winner, keeping group
// membership transitive regardless of arrival order.
func (r Reconciler) resolveCrossListing(ctx context.Context, draft SectionDraft, semesterID uint, existing *uint) (*uint, error) {
	if existing == nil && len(draft.CrossListings) == 0 {
		return nil, nil
	}

	var groups []uint
	if existing != nil {
		groups = append(groups, *existing)
	}
	for _, sibling := range draft.CrossListings {
		section, found, err := r.st.SectionByUnique(ctx, sibling, semesterID)
		if err != nil {
			return nil, err
		}
		if found && section.CrossListedID != nil && !slices.Contains(groups, *section.CrossListedID) {
			groups = append(groups, *section.CrossListedID)
		}
	}

	if len(groups) == 0 {
		group := models.CrossListed{}
		err := r.st.DB().WithContext(ctx).Create(&group).Error
		if err != nil {
			return nil, fmt.Errorf("create cross-listing group: %w", err)
		}
		return &group.ID, nil
	}

	winner := groups[0]
	for _, loser := range groups[1:] {
		err := r.st.DB().WithContext(ctx).Model(&models.ScheduledCourse{}).
			Where("cross_listed_id = ?", loser).
			Update("cross_listed_id", winner).Error
		if err != nil {
			return nil, fmt.Errorf("merge cross-listing group %d: %w", loser, err)
		}
		err = r.st.DB().WithContext(ctx).Delete(&models.CrossListed{}, loser).Error
		if err != nil {
			return nil, fmt.Errorf("drop merged cross-listing group %d: %w", loser, err)
		}
	}
	return &winner, nil
}

func (r Reconciler) upsertProfCourse(ctx context.Context, professorID, courseID, semesterID uint, unique int) error {
	pc, found, err := r.st.ProfCourse(ctx, professorID, courseID)
	if err != nil {
		return err
	}
	if !found {
		pc = models.ProfCourse{ProfessorID: professorID, CourseID: courseID}
		err = r.st.DB().WithContext(ctx).Create(&pc).Error
		if err != nil {
			return fmt.Errorf("create prof course: %w", err)
		}
	}

	_, found, err = r.st.ProfCourseSemester(ctx, pc.ID, semesterID, unique)
	if err != nil {
		return err
	}
	if !found {
		pcs := models.ProfCourseSemester{
			ProfCourseID: pc.ID,
			SemesterID:   semesterID,
			UniqueNumber: unique,
		}
		err = r.st.DB().WithContext(ctx).Create(&pcs).Error
		if err != nil {
			return fmt.Errorf("create prof course semester: %w", err)
		}
	}
	return nil
}

// flagPresence marks the offering's course and professor for whichever of
// the three advertised semesters it lands in.
func (r Reconciler) flagPresence(ctx context.Context, course models.Course, professor *models.Professor, semester models.Semester, markers Markers) error {
	combined := semester.Combined()
	matches := func(marker *int) bool {
		return marker != nil && *marker == combined
	}

	current, next, future := matches(markers.Current), matches(markers.Next), matches(markers.Future)
	if !current && !next && !future {
		return nil
	}

	updates := map[string]any{}
	if current {
		updates["current"] = true
	}
	if next {
		updates["next"] = true
	}
	if future {
		updates["future"] = true
	}

	err := r.st.DB().WithContext(ctx).Model(&models.Course{}).
		Where("id = ?", course.ID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("flag course presence: %w", err)
	}
	if professor != nil {
		err = r.st.DB().WithContext(ctx).Model(&models.Professor{}).
			Where("id = ?", professor.ID).Updates(updates).Error
		if err != nil {
			return fmt.Errorf("flag professor presence: %w", err)
		}
	}
	return nil
}

// ResetPresenceFlags clears every current/next/future flag ahead of a full
// re-flagging pass.
func (r Reconciler) ResetPresenceFlags(ctx context.Context) error {
	updates := map[string]any{"current": false, "next": false, "future": false}

	err := r.st.DB().WithContext(ctx).Model(&models.Course{}).
		Where("current OR next OR future").Updates(updates).Error
	if err != nil {
		return fmt.Errorf("reset course presence: %w", err)
	}
	err = r.st.DB().WithContext(ctx).Model(&models.Professor{}).
		Where("current OR next OR future").Updates(updates).Error
	if err != nil {
		return fmt.Errorf("reset professor presence: %w", err)
	}
	return nil
}

// SoftDeleteMissing flags sections of a semester that the newest extract no
// longer mentions. Rows are retained.
func (r Reconciler) SoftDeleteMissing(ctx context.Context, semesterID uint, seen []int) error {
	ctx, span := tracer.Start(ctx, "SoftDeleteMissing")
	defer span.End()

	query := r.st.DB().WithContext(ctx).Model(&models.ScheduledCourse{}).
		Where("semester_id = ? AND NOT removed", semesterID)
	if len(seen) > 0 {
		query = query.Where("unique_number NOT IN ?", seen)
	}
	result := query.Update("removed", true)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Error())
		return fmt.Errorf("soft delete sections: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		slog.InfoContext(ctx, "soft deleted sections absent from extract",
			"semester_id", semesterID, "count", result.RowsAffected)
	}
	return nil
}
