package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KiboNaku/utreview-backend-sub000/lib/timezone"
)

// ArchiveLogs moves log files last modified before today into
// year/month/week-bucketed subdirectories of the log dir, e.g.
// logs/2020/09/week2/ingest.log. Week buckets are 1-based within the month.
func ArchiveLogs(dir string, now time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, timezone.Location)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		modified := info.ModTime().In(timezone.Location)
		if !modified.Before(startOfToday) {
			continue
		}

		bucket := filepath.Join(
			dir,
			fmt.Sprintf("%04d", modified.Year()),
			fmt.Sprintf("%02d", modified.Month()),
			fmt.Sprintf("week%d", (modified.Day()-1)/7+1),
		)
		err = os.MkdirAll(bucket, 0755)
		if err != nil {
			return err
		}
		err = os.Rename(filepath.Join(dir, entry.Name()), filepath.Join(bucket, entry.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}
