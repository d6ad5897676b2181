package models

// Canonical relational model for the ingestion pipeline. Every entity is
// created lazily on first sighting and, with the exception of scheduled
// sections (soft-deleted), never removed.

// InheritMarker is the literal text the catalog emits for a topic child whose
// title/description/restrictions/prerequisites should be taken from the
// topic-number-0 parent.
const InheritMarker = "(Subject matter given under topic title.)"

// Topic numbers.
const (
	NoTopic     = -1
	ParentTopic = 0
)

// Semester codes as used by the registrar.
const (
	Spring = 2
	Summer = 6
	Fall   = 9
)

type Department struct {
	ID           uint   `gorm:"primaryKey"`
	Abbreviation string `gorm:"size:4;uniqueIndex;not null"`
	Name         string `gorm:"size:128"`
	College      string `gorm:"size:64"`

	Courses []Course `gorm:"foreignKey:DepartmentID"`
}

// Topic is an anonymous grouping key shared by a base course and its
// numbered content variants. It carries no data of its own.
type Topic struct {
	ID uint `gorm:"primaryKey"`

	Courses []Course `gorm:"foreignKey:TopicID"`
}

type Course struct {
	ID           uint `gorm:"primaryKey"`
	DepartmentID uint `gorm:"uniqueIndex:idx_course_natural;not null"`
	// Number may carry a one-letter session prefix, e.g. "F 310".
	Number string `gorm:"size:16;uniqueIndex:idx_course_natural;not null"`
	// TopicNumber carries no column default: gorm skips zero-valued fields
	// that have one, which would corrupt the natural key for parent-topic
	// rows. Every writer sets it explicitly.
	TopicNumber   int `gorm:"uniqueIndex:idx_course_natural;not null"`
	TopicID       *uint
	Title         string `gorm:"size:256"`
	Description   string
	Restrictions  string
	Prerequisites string

	// Presence flags, reset and re-derived on every full ingestion run.
	Current bool
	Next    bool
	Future  bool

	// Running review aggregates, maintained incrementally (see the
	// aggregate package). Approval is a 0..1 ratio.
	Approval    float64
	Usefulness  float64
	Difficulty  float64
	Workload    float64
	ReviewCount int64

	Department Department `gorm:"foreignKey:DepartmentID"`
	Topic      *Topic     `gorm:"foreignKey:TopicID"`
}

// CrossListed is an identity shared by scheduled sections offered as one
// physical section under different course numbers.
type CrossListed struct {
	ID uint `gorm:"primaryKey"`

	Sections []ScheduledCourse `gorm:"foreignKey:CrossListedID"`
}

type Professor struct {
	ID uint `gorm:"primaryKey"`
	// DirectoryID is the external directory identifier. Sections scraped
	// without a resolvable professor never create a row here.
	DirectoryID string `gorm:"size:32;uniqueIndex"`
	FirstName   string `gorm:"size:64"`
	LastName    string `gorm:"size:64"`

	// Running survey aggregate: mean professor score weighted by the
	// respondent count of each survey.
	SurveyAverage     float64
	SurveyRespondents int64

	// Running review aggregates, same shape as Course.
	Approval    float64
	Usefulness  float64
	Difficulty  float64
	Workload    float64
	ReviewCount int64

	Current bool
	Next    bool
	Future  bool
}

type Semester struct {
	ID   uint `gorm:"primaryKey"`
	Year int  `gorm:"uniqueIndex:idx_semester_natural;not null"`
	Code int  `gorm:"uniqueIndex:idx_semester_natural;not null"`
}

// Combined collapses (year, code) into the single ordered integer form the
// registrar uses, e.g. 2020 Fall = 20209.
func (s Semester) Combined() int {
	return s.Year*10 + s.Code
}

type ScheduledCourse struct {
	ID uint `gorm:"primaryKey"`
	// UniqueNumber is the registrar section id, unique within a semester.
	UniqueNumber  int  `gorm:"uniqueIndex:idx_section_natural;not null"`
	SemesterID    uint `gorm:"uniqueIndex:idx_section_natural;not null"`
	CourseID      uint `gorm:"not null"`
	ProfessorID   *uint
	CrossListedID *uint

	Session     string `gorm:"size:1"`
	Days        string `gorm:"size:16"`
	TimeBegin   *int
	TimeEnd     *int
	Location    string `gorm:"size:32"`
	MaxEnrolled int
	CurEnrolled int

	// Removed marks a section that disappeared from a later extract for
	// the same semester. The row is retained.
	Removed bool

	Course      Course       `gorm:"foreignKey:CourseID"`
	Professor   *Professor   `gorm:"foreignKey:ProfessorID"`
	Semester    Semester     `gorm:"foreignKey:SemesterID"`
	CrossListed *CrossListed `gorm:"foreignKey:CrossListedID"`
}

// ProfCourse records that a professor has ever taught a course.
type ProfCourse struct {
	ID          uint `gorm:"primaryKey"`
	ProfessorID uint `gorm:"uniqueIndex:idx_prof_course_natural;not null"`
	CourseID    uint `gorm:"uniqueIndex:idx_prof_course_natural;not null"`

	Professor Professor `gorm:"foreignKey:ProfessorID"`
	Course    Course    `gorm:"foreignKey:CourseID"`
}

// ProfCourseSemester is one offering instance of a ProfCourse pairing.
type ProfCourseSemester struct {
	ID           uint `gorm:"primaryKey"`
	ProfCourseID uint `gorm:"uniqueIndex:idx_pcs_natural;not null"`
	SemesterID   uint `gorm:"uniqueIndex:idx_pcs_natural;not null"`
	UniqueNumber int  `gorm:"uniqueIndex:idx_pcs_natural;not null"`

	ProfCourse ProfCourse `gorm:"foreignKey:ProfCourseID"`
	Semester   Semester   `gorm:"foreignKey:SemesterID"`
}

// EcisScore is one end-of-semester survey measurement. Rows are append-only.
type EcisScore struct {
	ID                   uint `gorm:"primaryKey"`
	ProfCourseSemesterID uint `gorm:"not null"`
	CourseAverage        float64
	ProfessorAverage     float64
	Respondents          int

	ProfCourseSemester ProfCourseSemester `gorm:"foreignKey:ProfCourseSemesterID"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&Department{},
		&Topic{},
		&Course{},
		&CrossListed{},
		&Professor{},
		&Semester{},
		&ScheduledCourse{},
		&ProfCourse{},
		&ProfCourseSemester{},
		&EcisScore{},
	}
}
