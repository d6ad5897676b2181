package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/KiboNaku/utreview-backend-sub000/lib/fetch"
	"github.com/KiboNaku/utreview-backend-sub000/services/catalog"
	"github.com/KiboNaku/utreview-backend-sub000/services/schedule"
	"github.com/KiboNaku/utreview-backend-sub000/services/survey"
)

// Command verbs accepted in the maintenance queue.
const (
	VerbCourse     = "course"
	VerbEcis       = "ecis"
	VerbProfCourse = "prof_course"
)

// pageLimit bounds how far a catalog listing continuation is followed.
const pageLimit = 50

// Command is one line of the operator command file:
//
//	course <dept> <page,page,...>
//	ecis <path> <sheet,sheet,...>
//	prof_course <path>
type Command struct {
	Verb string
	Path string
	Args []string
}

// ParseCommand parses one command-file line. ok is false for blank,
// malformed, or unrecognized lines, which the queue silently skips.
func ParseCommand(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, false
	}

	cmd := Command{Verb: fields[0], Path: fields[1]}
	if len(fields) > 2 {
		for _, arg := range strings.Split(fields[2], ",") {
			arg = strings.TrimSpace(arg)
			if arg != "" {
				cmd.Args = append(cmd.Args, arg)
			}
		}
	}

	switch cmd.Verb {
	case VerbCourse, VerbEcis:
		if len(cmd.Args) == 0 {
			return Command{}, false
		}
	case VerbProfCourse:
	default:
		return Command{}, false
	}
	return cmd, true
}

// ProcessCommands drains the append-only command file. Each command runs
// independently; a failing command is logged and the rest still run. The
// file is truncated after the pass so commands execute once.
func (o *Orchestrator) ProcessCommands(ctx context.Context) error {
	if o.config.CommandFile == "" {
		return nil
	}
	file, err := os.Open(o.config.CommandFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, ok := ParseCommand(line)
		if !ok {
			if strings.TrimSpace(line) != "" {
				slog.WarnContext(ctx, "ignoring malformed command", "line", line)
			}
			continue
		}

		err := o.runCommand(ctx, cmd)
		if err != nil {
			slog.ErrorContext(ctx, "maintenance command failed",
				"verb", cmd.Verb, "path", cmd.Path, "err", err)
		}
	}
	scanErr := scanner.Err()
	file.Close()
	if scanErr != nil {
		return fmt.Errorf("read command file: %w", scanErr)
	}

	return os.Truncate(o.config.CommandFile, 0)
}

func (o *Orchestrator) runCommand(ctx context.Context, cmd Command) error {
	slog.InfoContext(ctx, "running maintenance command", "verb", cmd.Verb, "path", cmd.Path, "args", cmd.Args)

	switch cmd.Verb {
	case VerbCourse:
		return o.ReingestCatalog(ctx, cmd.Path, cmd.Args)
	case VerbEcis:
		return o.ReingestScores(ctx, cmd.Path, cmd.Args)
	case VerbProfCourse:
		return o.ReingestSections(ctx, cmd.Path)
	}
	return fmt.Errorf("unknown verb %q", cmd.Verb)
}

// ReingestCatalog re-scrapes the given catalog pages for a department and
// replaces existing course rows, following embedded continuations.
func (o *Orchestrator) ReingestCatalog(ctx context.Context, dept string, pages []string) error {
	alloc := catalog.NewTopicAllocator()

	for _, page := range pages {
		query := url.Values{}
		query.Set("dept", dept)
		query.Set("page", page)

		fetched, err := o.fetcher.FollowPages(ctx, o.config.CatalogURL, query, pageLimit,
			func(body []byte) fetch.NextPage {
				next, ok := catalog.NextPageQuery(body)
				return fetch.NextPage{Query: next, Ok: ok}
			})
		if err != nil {
			return err
		}

		for _, body := range fetched {
			depts, err := catalog.ParseDepartments(body)
			if err != nil {
				return err
			}
			for _, option := range depts {
				_, err = o.catalog.UpsertDepartment(ctx, option.Abbr, option.Name, "", true)
				if err != nil {
					return err
				}
			}

			records, err := catalog.ParsePage(body, alloc)
			if err != nil {
				return err
			}
			report, err := o.catalog.UpsertCourses(ctx, records, catalog.Options{Replace: true})
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "catalog page reconciled",
				"dept", dept, "page", page,
				"created", report.Created, "updated", report.Updated)
		}
	}
	return nil
}

// ReingestScores re-parses the named sheets of a survey score report on
// local disk.
func (o *Orchestrator) ReingestScores(ctx context.Context, path string, sheets []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read score report: %w", err)
	}

	for _, sheet := range sheets {
		records, _, err := survey.ParseSheet(ctx, data, sheet)
		if err != nil {
			slog.ErrorContext(ctx, "unparseable score sheet", "path", path, "sheet", sheet, "err", err)
			continue
		}
		report, err := o.survey.UpsertScores(ctx, records)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "score sheet reconciled",
			"sheet", sheet,
			"applied", report.Applied,
			"duplicates", report.Duplicates,
			"unresolved", report.UnresolvedOfferings)
	}
	return nil
}

// ReingestSections merges a schedule extract from local disk, re-deriving
// professor/course/semester pairings for its offerings.
func (o *Orchestrator) ReingestSections(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read extract: %w", err)
	}

	rows, err := schedule.ParseExtract(data)
	if err != nil {
		return err
	}
	drafts, skipped := schedule.DraftAll(ctx, rows)
	if skipped > 0 {
		slog.InfoContext(ctx, "extract rows skipped", "path", path, "skipped", skipped)
	}

	markers, err := ReadMarkers(o.config.MarkerFile)
	if err != nil {
		return err
	}
	report, err := o.schedule.UpsertSections(ctx, drafts, markers)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "extract reconciled",
		"path", path,
		"created", report.Created,
		"updated", report.Updated,
		"unknown_departments", report.UnknownDepartments)
	return nil
}
