package archive

import (
	"time"

	"staktrakr/internal/domain"
	"staktrakr/internal/store"
)

// LatestSeedDate scans every yearly archive and returns the most recent
// date carried by any record. Records with malformed timestamps are
// skipped. ok is false when no archive holds a parseable record.
func LatestSeedDate(s *store.SpotStore) (latest time.Time, ok bool, err error) {
	years, err := s.Years()
	if err != nil {
		return time.Time{}, false, err
	}

	for _, year := range years {
		records, err := s.LoadYear(year)
		if err != nil {
			return time.Time{}, false, err
		}
		for _, r := range records {
			t, perr := time.Parse(domain.TimeLayout, r.Timestamp)
			if perr != nil {
				continue
			}
			day := t.Truncate(24 * time.Hour)
			if !ok || day.After(latest) {
				latest = day
				ok = true
			}
		}
	}
	return latest, ok, nil
}

// SeedDateExists reports whether the yearly archive already holds a record
// whose timestamp starts with the given "YYYY-MM-DD" date. The check scans
// the file rather than a cached flag, so it stays correct across restarts.
func SeedDateExists(s *store.SpotStore, date string) (bool, error) {
	year, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return false, err
	}
	records, err := s.LoadYear(year.Year())
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Date() == date {
			return true, nil
		}
	}
	return false, nil
}

// HourCell identifies one (day, hour) slot in the hourly snapshot tree.
type HourCell struct {
	Day  time.Time
	Hour int
}

// MissingHours enumerates the trailing window of hours ending one hour
// before now (the still-in-progress hour is excluded) and reports the cells
// that have no hourly snapshot file, most recent first. This backs the
// self-healing of missed poll cycles without a persisted cursor.
func MissingHours(s *store.SpotStore, now time.Time, window int) []HourCell {
	var missing []HourCell
	for h := 1; h <= window; h++ {
		target := now.Add(-time.Duration(h) * time.Hour)
		day := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
		if !s.HourlyExists(day, target.Hour()) {
			missing = append(missing, HourCell{Day: day, Hour: target.Hour()})
		}
	}
	return missing
}
