package catalog

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/KiboNaku/utreview-backend-sub000/lib/htmlutil"
	"github.com/KiboNaku/utreview-backend-sub000/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// CourseRecord is one parsed catalog row. Text fields may still contain the
// inheritance marker; resolving it against the topic parent is the
// reconciler's job, not the parser's.
type CourseRecord struct {
	Dept          string
	Number        string
	Title         string
	Description   string
	Restrictions  string
	Prerequisites string
	TopicNumber   int
}

type DeptOption struct {
	Abbr string
	Name string
}

// Raw topic codes with fixed meaning. Anything else is a numbered topic
// variant and gets a sequential positive number per parent in first-seen
// order.
const (
	topicCodeNone   = ""
	topicCodeParent = "0"
)

// TopicAllocator assigns positive topic numbers to raw topic codes,
// per (dept, number), in first-seen order. Callers own the allocator and
// pass it explicitly; it must live at least as long as one listing pass so
// repeated codes resolve to the same number.
type TopicAllocator struct {
	assigned map[string]map[string]int
}

func NewTopicAllocator() *TopicAllocator {
	return &TopicAllocator{assigned: map[string]map[string]int{}}
}

// Assign maps a raw topic code to a topic number.
func (a *TopicAllocator) Assign(dept, number, rawCode string) int {
	switch textutil.NormalizeKey(rawCode) {
	case topicCodeNone, "n/a", "none":
		return -1
	case topicCodeParent:
		return 0
	}

	parent := fmt.Sprintf("%s %s", textutil.NormalizeKey(dept), textutil.NormalizeKey(number))
	codes, ok := a.assigned[parent]
	if !ok {
		codes = map[string]int{}
		a.assigned[parent] = codes
	}
	if n, ok := codes[rawCode]; ok {
		return n
	}
	n := len(codes) + 1
	codes[rawCode] = n
	return n
}

// ParseDepartments extracts the department option list from a catalog
// listing page's department <select>.
func ParseDepartments(page []byte) ([]DeptOption, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse department listing: %w", err)
	}

	var depts []DeptOption
	for _, opt := range htmlutil.GetOptions(doc.Find(`select[name="dept"]`)) {
		abbr := textutil.CourseNumber(opt.Value)
		if abbr == "" {
			continue
		}
		depts = append(depts, DeptOption{
			Abbr: abbr,
			Name: textutil.Collapse(opt.Label),
		})
	}
	return depts, nil
}

// ParsePage extracts the course rows of one catalog listing page. The
// allocator is shared across pages of the same listing so topic variants
// keep their first-seen numbering.
func ParsePage(page []byte, alloc *TopicAllocator) ([]CourseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	var records []CourseRecord
	doc.Find("div.course").Each(func(_ int, course *goquery.Selection) {
		dept := textutil.CourseNumber(htmlutil.CleanText(course.Find("span.dept")))
		number := textutil.CourseNumber(htmlutil.CleanText(course.Find("span.number")))
		if dept == "" || number == "" {
			return
		}
		rawTopic := htmlutil.CleanText(course.Find("span.topic"))

		records = append(records, CourseRecord{
			Dept:          dept,
			Number:        number,
			Title:         textutil.Collapse(htmlutil.CleanText(course.Find("span.title"))),
			Description:   textutil.Collapse(htmlutil.CleanText(course.Find("p.description"))),
			Restrictions:  textutil.Collapse(htmlutil.CleanText(course.Find("p.restrictions"))),
			Prerequisites: textutil.Collapse(htmlutil.CleanText(course.Find("p.prerequisites"))),
			TopicNumber:   alloc.Assign(dept, number, rawTopic),
		})
	})
	return records, nil
}

// NextPageQuery extracts the "next page" continuation a listing page embeds
// as hidden form fields. ok is false on the final page.
func NextPageQuery(page []byte) (url.Values, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, false
	}

	form := doc.Find(`form[name="next_page"]`)
	if form.Length() == 0 {
		return nil, false
	}
	query := url.Values{}
	for name, value := range htmlutil.HiddenInputs(form) {
		query.Set(name, value)
	}
	if len(query) == 0 {
		return nil, false
	}
	return query, true
}
