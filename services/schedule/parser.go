package schedule

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KiboNaku/utreview-backend-sub000/lib/textutil"
)

// Extract field names after lower-casing the header row.
const (
	fieldYear     = "year"
	fieldSemester = "semester"
	fieldDept     = "dept"
	fieldCourse   = "course number"
	fieldTopic    = "topic"
	fieldUnique   = "unique"
	fieldDays     = "days"
	fieldFrom     = "from"
	fieldTo       = "to"
	fieldBuilding = "building"
	fieldRoom     = "room"
	fieldMax      = "max enrollment"
	fieldTaken    = "seats taken"
	fieldEID      = "instructor eid"
	fieldName     = "instructor name"
	fieldXList    = "cross listings"
	fieldTitle    = "title"
	fieldSession  = "session"
)

// webMarker flags a web-based section in the title when building/room are
// blank, e.g. "WRITING SEMINAR -W".
const webMarker = "-w"

// Row is one tab-delimited extract line keyed by header field name. Rows are
// internal to parsing; only validated SectionDrafts reach the reconciler.
type Row map[string]string

// ValidationError describes a row that cannot become a section draft. The
// caller skips the row and continues with the batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SectionDraft is a validated extract row, ready for reconciliation.
type SectionDraft struct {
	Year         int
	SemesterCode int
	Dept         string
	CourseNumber string
	TopicNumber  int
	Unique       int
	Session      string
	Days         string
	TimeBegin    *int
	TimeEnd      *int
	Location     string
	MaxEnrolled  int
	CurEnrolled  int
	// ProfessorEID is empty when the extract lists no instructor; such a
	// section keeps a null professor reference.
	ProfessorEID   string
	ProfessorFirst string
	ProfessorLast  string
	// CrossListings holds the sibling unique numbers this section is
	// offered together with.
	CrossListings []int
	Title         string
}

// ParseExtract splits a tab-delimited schedule report into rows. The header
// is the first line containing the token "year" (case-insensitive); all text
// is lower-cased for uniform matching. Lines before the header and empty
// lines are skipped.
func ParseExtract(data []byte) ([]Row, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var header []string
	var rows []Row
	for scanner.Scan() {
		line := strings.ToLower(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		if header == nil {
			for _, f := range fields {
				if strings.TrimSpace(f) == fieldYear {
					header = trimAll(fields)
					break
				}
			}
			continue
		}

		row := Row{}
		for i, value := range trimAll(fields) {
			if i >= len(header) {
				break
			}
			row[header[i]] = value
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan extract: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("no header row containing %q found", fieldYear)
	}
	return rows, nil
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

// BuildDraft validates one row into a section draft.
func BuildDraft(row Row) (SectionDraft, error) {
	if row[fieldCourse] == "" {
		return SectionDraft{}, ValidationError{Field: fieldCourse, Reason: "blank"}
	}
	unique, err := strconv.Atoi(row[fieldUnique])
	if err != nil {
		return SectionDraft{}, ValidationError{
			Field:  fieldUnique,
			Reason: fmt.Sprintf("not numeric: %q", row[fieldUnique]),
		}
	}
	year, err := strconv.Atoi(row[fieldYear])
	if err != nil {
		return SectionDraft{}, ValidationError{
			Field:  fieldYear,
			Reason: fmt.Sprintf("not numeric: %q", row[fieldYear]),
		}
	}
	code, err := strconv.Atoi(row[fieldSemester])
	if err != nil {
		return SectionDraft{}, ValidationError{
			Field:  fieldSemester,
			Reason: fmt.Sprintf("not numeric: %q", row[fieldSemester]),
		}
	}

	first, last := splitName(row[fieldName])

	draft := SectionDraft{
		Year:           year,
		SemesterCode:   code,
		Dept:           textutil.CourseNumber(row[fieldDept]),
		CourseNumber:   textutil.CourseNumber(row[fieldCourse]),
		TopicNumber:    intOr(row[fieldTopic], -1),
		Unique:         unique,
		Session:        strings.ToUpper(row[fieldSession]),
		Days:           strings.ToUpper(row[fieldDays]),
		TimeBegin:      militaryTime(row[fieldFrom]),
		TimeEnd:        militaryTime(row[fieldTo]),
		Location:       location(row[fieldBuilding], row[fieldRoom], row[fieldTitle]),
		MaxEnrolled:    intOr(row[fieldMax], 0),
		CurEnrolled:    intOr(row[fieldTaken], 0),
		ProfessorEID:   row[fieldEID],
		ProfessorFirst: first,
		ProfessorLast:  last,
		CrossListings:  crossListings(row[fieldXList]),
		Title:          textutil.Collapse(row[fieldTitle]),
	}
	return draft, nil
}

// DraftAll validates every row, skipping and logging invalid ones. The
// skipped count is returned for per-file reporting.
func DraftAll(ctx context.Context, rows []Row) (drafts []SectionDraft, skipped int) {
	for _, row := range rows {
		draft, err := BuildDraft(row)
		if err != nil {
			slog.WarnContext(ctx, "skipping extract row", "err", err, "unique", row[fieldUnique])
			skipped++
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts, skipped
}

// ExtractSemester reports the (year, code) of the first valid row. Each
// extract file covers exactly one semester, so this doubles as the header
// scan that feeds the semester-marker file.
func ExtractSemester(rows []Row) (year, code int, ok bool) {
	for _, row := range rows {
		y, err := strconv.Atoi(row[fieldYear])
		if err != nil {
			continue
		}
		c, err := strconv.Atoi(row[fieldSemester])
		if err != nil {
			continue
		}
		return y, c, true
	}
	return 0, 0, false
}

// location renders the meeting place. Blank building and room mean either a
// web section (title carries the web marker) or no location at all.
func location(building, room, title string) string {
	building = strings.TrimSpace(building)
	room = strings.TrimSpace(room)
	if building == "" && room == "" {
		if textutil.ContainsFold(title, webMarker) {
			return "WEB"
		}
		return "N/A"
	}
	return strings.ToUpper(textutil.Collapse(building + " " + room))
}

// militaryTime parses an integer military time, nil when non-numeric.
func militaryTime(s string) *int {
	t, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func intOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

// splitName splits the extract's "last, first" instructor form.
func splitName(name string) (first, last string) {
	parts := strings.SplitN(name, ",", 2)
	if len(parts) == 2 {
		return textutil.Collapse(parts[1]), textutil.Collapse(parts[0])
	}
	return "", textutil.Collapse(name)
}

func crossListings(raw string) []int {
	var out []int
	for _, token := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	}) {
		n, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
