package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/KiboNaku/utreview-backend-sub000/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `json:"driver"`
	// DSN is a file path (sqlite) or a connection string (postgres).
	Dsn string `json:"dsn"`
}

// Store wraps a single gorm handle. There is exactly one ingestion actor, so
// all reads observe all prior writes without further coordination.
type Store struct {
	db *gorm.DB
}

func Open(config Config) (Store, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "postgres":
		dialector = postgres.Open(config.Dsn)
	case "sqlite", "":
		dsn := config.Dsn
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	default:
		return Store{}, fmt.Errorf("unknown store driver: %q", config.Driver)
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return Store{}, fmt.Errorf("open store: %w", err)
	}
	err = db.AutoMigrate(models.All()...)
	if err != nil {
		return Store{}, fmt.Errorf("migrate store: %w", err)
	}
	return Store{db: db}, nil
}

func (s Store) DB() *gorm.DB { return s.db }

// notFound maps gorm's sentinel to (zero, false, nil) so lookup helpers can
// distinguish "absent" from a real failure.
func notFound(err error) (bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (s Store) DepartmentByAbbr(ctx context.Context, abbr string) (models.Department, bool, error) {
	var dept models.Department
	err := s.db.WithContext(ctx).Where("abbreviation = ?", abbr).First(&dept).Error
	if err != nil {
		ok, err := notFound(err)
		return models.Department{}, ok, err
	}
	return dept, true, nil
}

// CourseByKey resolves a course by its full natural key.
func (s Store) CourseByKey(ctx context.Context, deptID uint, number string, topicNumber int) (models.Course, bool, error) {
	var course models.Course
	err := s.db.WithContext(ctx).
		Where("department_id = ? AND number = ? AND topic_number = ?", deptID, number, topicNumber).
		First(&course).Error
	if err != nil {
		ok, err := notFound(err)
		return models.Course{}, ok, err
	}
	return course, true, nil
}

// CoursesByNumber returns every topic sibling for (department, number).
func (s Store) CoursesByNumber(ctx context.Context, deptID uint, number string) ([]models.Course, error) {
	var courses []models.Course
	err := s.db.WithContext(ctx).
		Where("department_id = ? AND number = ?", deptID, number).
		Order("topic_number").
		Find(&courses).Error
	return courses, err
}

func (s Store) ProfessorByDirectoryID(ctx context.Context, directoryID string) (models.Professor, bool, error) {
	var prof models.Professor
	err := s.db.WithContext(ctx).Where("directory_id = ?", directoryID).First(&prof).Error
	if err != nil {
		ok, err := notFound(err)
		return models.Professor{}, ok, err
	}
	return prof, true, nil
}

func (s Store) SemesterByYearCode(ctx context.Context, year, code int) (models.Semester, bool, error) {
	var sem models.Semester
	err := s.db.WithContext(ctx).Where("year = ? AND code = ?", year, code).First(&sem).Error
	if err != nil {
		ok, err := notFound(err)
		return models.Semester{}, ok, err
	}
	return sem, true, nil
}

// SectionByUnique resolves a scheduled section by (unique number, semester).
func (s Store) SectionByUnique(ctx context.Context, uniqueNumber int, semesterID uint) (models.ScheduledCourse, bool, error) {
	var section models.ScheduledCourse
	err := s.db.WithContext(ctx).
		Where("unique_number = ? AND semester_id = ?", uniqueNumber, semesterID).
		First(&section).Error
	if err != nil {
		ok, err := notFound(err)
		return models.ScheduledCourse{}, ok, err
	}
	return section, true, nil
}

func (s Store) ProfCourse(ctx context.Context, professorID, courseID uint) (models.ProfCourse, bool, error) {
	var pc models.ProfCourse
	err := s.db.WithContext(ctx).
		Where("professor_id = ? AND course_id = ?", professorID, courseID).
		First(&pc).Error
	if err != nil {
		ok, err := notFound(err)
		return models.ProfCourse{}, ok, err
	}
	return pc, true, nil
}

func (s Store) ProfCourseSemester(ctx context.Context, profCourseID, semesterID uint, uniqueNumber int) (models.ProfCourseSemester, bool, error) {
	var pcs models.ProfCourseSemester
	err := s.db.WithContext(ctx).
		Where("prof_course_id = ? AND semester_id = ? AND unique_number = ?", profCourseID, semesterID, uniqueNumber).
		First(&pcs).Error
	if err != nil {
		ok, err := notFound(err)
		return models.ProfCourseSemester{}, ok, err
	}
	return pcs, true, nil
}

// ProfCourseSemesterByOffering resolves the survey join target: any offering
// instance with the given unique number in the given semester.
func (s Store) ProfCourseSemesterByOffering(ctx context.Context, semesterID uint, uniqueNumber int) (models.ProfCourseSemester, bool, error) {
	var pcs models.ProfCourseSemester
	err := s.db.WithContext(ctx).
		Where("semester_id = ? AND unique_number = ?", semesterID, uniqueNumber).
		First(&pcs).Error
	if err != nil {
		ok, err := notFound(err)
		return models.ProfCourseSemester{}, ok, err
	}
	return pcs, true, nil
}
