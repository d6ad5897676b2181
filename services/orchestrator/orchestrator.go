// Package orchestrator sequences the daily ingestion run: fetch the three
// schedule extracts, reconcile them, then drain the operator command queue
// and archive old logs. It is the only component with scheduling concerns;
// everything it calls is synchronous and safely re-runnable.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KiboNaku/utreview-backend-sub000/internal/store"
	"github.com/KiboNaku/utreview-backend-sub000/lib/fetch"
	"github.com/KiboNaku/utreview-backend-sub000/lib/timezone"
	"github.com/KiboNaku/utreview-backend-sub000/services/catalog"
	"github.com/KiboNaku/utreview-backend-sub000/services/schedule"
	"github.com/KiboNaku/utreview-backend-sub000/services/survey"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/orchestrator")

// ReportNames are the fixed remote filenames of the three schedule extracts.
type ReportNames struct {
	Current string `json:"current"`
	Next    string `json:"next"`
	Future  string `json:"future"`
}

type Config struct {
	Store       store.Config `json:"store"`
	CatalogURL  string       `json:"catalog_url"`
	FtpHost     string       `json:"ftp_host"`
	Reports     ReportNames  `json:"reports"`
	CommandFile string       `json:"command_file"`
	MarkerFile  string       `json:"marker_file"`
	LogDir      string       `json:"log_dir"`
}

type Orchestrator struct {
	config   Config
	fetcher  *fetch.Client
	st       store.Store
	catalog  catalog.Reconciler
	schedule schedule.Reconciler
	survey   survey.Reconciler
}

func New(config Config, fetcher *fetch.Client, st store.Store) *Orchestrator {
	return &Orchestrator{
		config:   config,
		fetcher:  fetcher,
		st:       st,
		catalog:  catalog.NewReconciler(st),
		schedule: schedule.NewReconciler(st),
		survey:   survey.NewReconciler(st),
	}
}

// Run blocks, executing a full ingestion pass every day at 01:00 local time
// until the context is cancelled. Process termination is the only other way
// out, matching the single-actor model.
func (o *Orchestrator) Run(ctx context.Context) error {
	cronner := cron.New(cron.WithLocation(timezone.Location))
	_, err := cronner.AddFunc("0 1 * * *", func() {
		err := o.RunOnce(ctx)
		if err != nil {
			// nothing in ingestion is fatal, the next run proceeds
			slog.ErrorContext(ctx, "daily ingestion run failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule daily run: %w", err)
	}

	slog.InfoContext(ctx, "orchestrator started", "next_run", timezone.NextRun(timezone.Now(), 1))
	cronner.Start()
	<-ctx.Done()
	cronner.Stop()
	return ctx.Err()
}

// RunOnce performs one complete ingestion pass.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RunOnce")
	defer span.End()

	o.fetcher.Reset()

	err := o.ingestExtracts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = o.ProcessCommands(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if o.config.LogDir != "" {
		err = ArchiveLogs(o.config.LogDir, timezone.Now())
		if err != nil {
			slog.WarnContext(ctx, "log archive pass failed", "err", err)
		}
	}

	if failures := o.fetcher.Failures(); len(failures) > 0 {
		slog.WarnContext(ctx, "sources unavailable this run", "sources", failures)
	}
	return nil
}

type extractRun struct {
	name   string
	marker **int
}

// ingestExtracts fetches and reconciles the three fixed-name extracts. The
// semester markers come from scanning each extract's rows; a missing report
// leaves its marker nil for this run.
func (o *Orchestrator) ingestExtracts(ctx context.Context) error {
	markers := schedule.Markers{}
	runs := []extractRun{
		{name: o.config.Reports.Current, marker: &markers.Current},
		{name: o.config.Reports.Next, marker: &markers.Next},
		{name: o.config.Reports.Future, marker: &markers.Future},
	}

	type parsedExtract struct {
		drafts []schedule.SectionDraft
		year   int
		code   int
	}
	var parsed []parsedExtract

	for _, run := range runs {
		data, err := o.fetcher.GetFTP(ctx, o.config.FtpHost, run.name)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}

		rows, err := schedule.ParseExtract(data)
		if err != nil {
			slog.ErrorContext(ctx, "unparseable extract", "report", run.name, "err", err)
			continue
		}
		year, code, ok := schedule.ExtractSemester(rows)
		if ok {
			combined := year*10 + code
			*run.marker = &combined
		}

		drafts, skipped := schedule.DraftAll(ctx, rows)
		if skipped > 0 {
			slog.InfoContext(ctx, "extract rows skipped", "report", run.name, "skipped", skipped)
		}
		parsed = append(parsed, parsedExtract{drafts: drafts, year: year, code: code})
	}

	err := WriteMarkers(o.config.MarkerFile, markers)
	if err != nil {
		return err
	}

	// clear old flags once, then re-flag from every extract
	err = o.schedule.ResetPresenceFlags(ctx)
	if err != nil {
		return err
	}

	for _, extract := range parsed {
		report, err := o.schedule.UpsertSections(ctx, extract.drafts, markers)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "extract reconciled",
			"semester", extract.year*10+extract.code,
			"created", report.Created,
			"updated", report.Updated,
			"skipped", report.Skipped,
			"unknown_departments", report.UnknownDepartments)

		err = o.softDeleteExtract(ctx, extract.year, extract.code, extract.drafts)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) softDeleteExtract(ctx context.Context, year, code int, drafts []schedule.SectionDraft) error {
	semester, found, err := o.st.SemesterByYearCode(ctx, year, code)
	if err != nil || !found {
		return err
	}
	seen := make([]int, 0, len(drafts))
	for _, draft := range drafts {
		seen = append(seen, draft.Unique)
	}
	return o.schedule.SoftDeleteMissing(ctx, semester.ID, seen)
}
