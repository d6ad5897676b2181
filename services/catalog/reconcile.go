package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"
	"github.com/KiboNaku/utreview-backend-sub000/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/catalog")

type Reconciler struct {
	st store.Store
}

func NewReconciler(st store.Store) Reconciler {
	return Reconciler{st: st}
}

type Options struct {
	// Replace overwrites mutable fields of an existing course. Used for
	// targeted re-ingestion of a specific page/semester; the daily run
	// leaves existing courses untouched.
	Replace bool
	// OverrideDept overwrites name/college of a department that already
	// exists instead of keeping the first-seen values.
	OverrideDept bool
}

type Report struct {
	Created int
	Updated int
	Skipped int
}

// UpsertDepartment creates a department on first sight. With override set,
// an existing row's display fields are replaced; otherwise first-seen
// values win.
func (r Reconciler) UpsertDepartment(ctx context.Context, abbr, name, college string, override bool) (models.Department, error) {
	dept, found, err := r.st.DepartmentByAbbr(ctx, abbr)
	if err != nil {
		return models.Department{}, err
	}
	if !found {
		dept = models.Department{Abbreviation: abbr, Name: name, College: college}
		err = r.st.DB().WithContext(ctx).Create(&dept).Error
		if err != nil {
			return models.Department{}, fmt.Errorf("create department %s: %w", abbr, err)
		}
		slog.InfoContext(ctx, "created department", "abbr", abbr)
		return dept, nil
	}
	if override {
		dept.Name = name
		dept.College = college
		err = r.st.DB().WithContext(ctx).Save(&dept).Error
		if err != nil {
			return models.Department{}, fmt.Errorf("override department %s: %w", abbr, err)
		}
	}
	return dept, nil
}

// UpsertCourses reconciles a parsed catalog batch. One bad record never
// aborts the batch; re-running the same batch is a no-op.
func (r Reconciler) UpsertCourses(ctx context.Context, batch []CourseRecord, opts Options) (Report, error) {
	ctx, span := tracer.Start(ctx, "UpsertCourses")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", len(batch)))

	report := Report{}
	for _, record := range batch {
		err := r.upsertCourse(ctx, record, opts, &report)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}
	return report, nil
}

func (r Reconciler) upsertCourse(ctx context.Context, record CourseRecord, opts Options, report *Report) error {
	dept, err := r.UpsertDepartment(ctx, record.Dept, "", "", false)
	if err != nil {
		return err
	}

	record, err = r.applyInheritance(ctx, dept.ID, record)
	if err != nil {
		return err
	}

	existing, found, err := r.st.CourseByKey(ctx, dept.ID, record.Number, record.TopicNumber)
	if err != nil {
		return err
	}
	switch {
	case !found:
		topicID, err := r.courseTopic(ctx, dept.ID, record)
		if err != nil {
			return err
		}
		course := models.Course{
			DepartmentID:  dept.ID,
			Number:        record.Number,
			TopicNumber:   record.TopicNumber,
			TopicID:       topicID,
			Title:         record.Title,
			Description:   record.Description,
			Restrictions:  record.Restrictions,
			Prerequisites: record.Prerequisites,
		}
		err = r.st.DB().WithContext(ctx).Create(&course).Error
		if err != nil {
			return fmt.Errorf("create course %s %s: %w", record.Dept, record.Number, err)
		}
		report.Created++
	case opts.Replace:
		topicID, err := r.courseTopic(ctx, dept.ID, record)
		if err != nil {
			return err
		}
		existing.Title = record.Title
		existing.Description = record.Description
		existing.Restrictions = record.Restrictions
		existing.Prerequisites = record.Prerequisites
		existing.TopicID = topicID
		err = r.st.DB().WithContext(ctx).Save(&existing).Error
		if err != nil {
			return fmt.Errorf("update course %s %s: %w", record.Dept, record.Number, err)
		}
		report.Updated++
	default:
		// a course first created from a schedule extract has no topic
		// attached yet; adopt one without touching its other fields
		if existing.TopicID == nil {
			topicID, err := r.courseTopic(ctx, dept.ID, record)
			if err != nil {
				return err
			}
			if topicID != nil {
				existing.TopicID = topicID
				err = r.st.DB().WithContext(ctx).Save(&existing).Error
				if err != nil {
					return fmt.Errorf("attach topic to course %s %s: %w", record.Dept, record.Number, err)
				}
			}
		}
		slog.InfoContext(ctx, "course already existed",
			"dept", record.Dept, "number", record.Number, "topic", record.TopicNumber)
		report.Skipped++
	}

	if record.TopicNumber == models.ParentTopic {
		err = r.backfillInheritance(ctx, dept.ID, record)
		if err != nil {
			return err
		}
	}
	return nil
}

// courseTopic resolves the shared Topic a record belongs to, nil for
// topic-less courses. Only called when the result will be attached, so no
// orphan Topic rows are allocated on skipped records.
func (r Reconciler) courseTopic(ctx context.Context, deptID uint, record CourseRecord) (*uint, error) {
	if record.TopicNumber < 0 {
		return nil, nil
	}
	id, err := r.resolveTopic(ctx, deptID, record.Number)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveTopic reuses the Topic already attached to a same-numbered sibling,
// else allocates a new one. The first sibling found by topic number wins a
// tie, which keeps resolution deterministic across re-runs.
func (r Reconciler) resolveTopic(ctx context.Context, deptID uint, number string) (uint, error) {
	siblings, err := r.st.CoursesByNumber(ctx, deptID, number)
	if err != nil {
		return 0, err
	}
	for _, sibling := range siblings {
		if sibling.TopicID != nil {
			return *sibling.TopicID, nil
		}
	}

	topic := models.Topic{}
	err = r.st.DB().WithContext(ctx).Create(&topic).Error
	if err != nil {
		return 0, fmt.Errorf("create topic: %w", err)
	}
	return topic.ID, nil
}

// applyInheritance resolves the inheritance marker in a child record's text
// fields from the topic-number-0 sibling, when one exists.
func (r Reconciler) applyInheritance(ctx context.Context, deptID uint, record CourseRecord) (CourseRecord, error) {
	if record.TopicNumber <= 0 {
		return record, nil
	}
	parent, found, err := r.st.CourseByKey(ctx, deptID, record.Number, models.ParentTopic)
	if err != nil || !found {
		return record, err
	}

	if record.Title == models.InheritMarker {
		record.Title = parent.Title
	}
	if record.Description == models.InheritMarker {
		record.Description = parent.Description
	}
	if record.Restrictions == models.InheritMarker {
		record.Restrictions = parent.Restrictions
	}
	if record.Prerequisites == models.InheritMarker {
		record.Prerequisites = parent.Prerequisites
	}
	return record, nil
}

// backfillInheritance handles the parent arriving after its children: any
// sibling whose stored fields still hold the marker picks up the parent's
// text.
func (r Reconciler) backfillInheritance(ctx context.Context, deptID uint, parent CourseRecord) error {
	siblings, err := r.st.CoursesByNumber(ctx, deptID, parent.Number)
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.TopicNumber <= 0 {
			continue
		}
		changed := false
		if sibling.Title == models.InheritMarker {
			sibling.Title = parent.Title
			changed = true
		}
		if sibling.Description == models.InheritMarker {
			sibling.Description = parent.Description
			changed = true
		}
		if sibling.Restrictions == models.InheritMarker {
			sibling.Restrictions = parent.Restrictions
			changed = true
		}
		if sibling.Prerequisites == models.InheritMarker {
			sibling.Prerequisites = parent.Prerequisites
			changed = true
		}
		if !changed {
			continue
		}
		err = r.st.DB().WithContext(ctx).Save(&sibling).Error
		if err != nil {
			return fmt.Errorf("backfill topic child %s: %w", sibling.Number, err)
		}
	}
	return nil
}
