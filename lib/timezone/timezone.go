package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Chicago")
	if err != nil {
		panic(err)
	}
}

// force the campus timezone regardless of where the server lands, since the
// daily run boundary and semester math use <time.Time>.Year()/Month()/Day().
func Now() time.Time {
	return time.Now().In(Location)
}

// NextRun returns the next occurrence of hour:00 local time strictly after
// now. Used to compute the daily ingestion sleep.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
