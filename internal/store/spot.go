// Package store persists price records as JSON files under a single data
// directory, in three layers with different mutation policies: yearly seed
// archives (merged full-file rewrites), an hourly snapshot tree
// (overwritable), and a 15-minute snapshot tree (write-once).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"staktrakr/internal/domain"
)

// SpotStore reads and writes the three storage layers rooted at DataDir.
type SpotStore struct {
	DataDir string
}

// NewSpotStore creates a SpotStore rooted at the given data directory.
func NewSpotStore(dataDir string) *SpotStore {
	return &SpotStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Yearly seed archives
// ---------------------------------------------------------------------------

// YearPath returns the filesystem path of a yearly archive.
// Layout: <DataDir>/spot-history-<YYYY>.json
func (s *SpotStore) YearPath(year int) string {
	return filepath.Join(s.DataDir, fmt.Sprintf("spot-history-%d.json", year))
}

// LoadYear reads the archive for one year. A missing file yields an empty
// slice, not an error.
func (s *SpotStore) LoadYear(year int) ([]domain.PriceRecord, error) {
	data, err := os.ReadFile(s.YearPath(year))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading year %d archive: %w", year, err)
	}

	var records []domain.PriceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing year %d archive: %w", year, err)
	}
	return records, nil
}

// SaveYear writes the full record sequence for one year, replacing the
// file's previous contents entirely.
func (s *SpotStore) SaveYear(year int, records []domain.PriceRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding year %d archive: %w", year, err)
	}
	if err := os.WriteFile(s.YearPath(year), data, 0o644); err != nil {
		return fmt.Errorf("writing year %d archive: %w", year, err)
	}
	return nil
}

// Years lists the years that have an archive file, ascending.
func (s *SpotStore) Years() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.DataDir, "spot-history-*.json"))
	if err != nil {
		return nil, err
	}

	var years []int
	for _, path := range matches {
		name := filepath.Base(path)
		y := strings.TrimSuffix(strings.TrimPrefix(name, "spot-history-"), ".json")
		year, err := strconv.Atoi(y)
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// ---------------------------------------------------------------------------
// Hourly snapshot tree
// ---------------------------------------------------------------------------

// HourlyPath returns the filesystem path of an hourly snapshot cell.
// Layout: <DataDir>/hourly/YYYY/MM/DD/HH.json
func (s *SpotStore) HourlyPath(day time.Time, hour int) string {
	return filepath.Join(
		s.DataDir, "hourly",
		strconv.Itoa(day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d", day.Day()),
		fmt.Sprintf("%02d.json", hour),
	)
}

// HourlyExists reports whether a snapshot file exists for the given cell.
func (s *SpotStore) HourlyExists(day time.Time, hour int) bool {
	_, err := os.Stat(s.HourlyPath(day, hour))
	return err == nil
}

// WriteHourly writes an hourly snapshot. When the cell already exists and
// overwrite is false no write occurs and false is returned; otherwise the
// cell is written (directories created as needed) and true is returned.
// Live polls pass overwrite=true so the hour tracks its freshest value.
func (s *SpotStore) WriteHourly(records []domain.PriceRecord, day time.Time, hour int, overwrite bool) (bool, error) {
	path := s.HourlyPath(day, hour)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := writeSnapshot(path, records); err != nil {
		return false, fmt.Errorf("writing hourly snapshot: %w", err)
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// 15-minute snapshot tree
// ---------------------------------------------------------------------------

// FifteenMinPath returns the filesystem path of a 15-minute snapshot cell.
// Layout: <DataDir>/15min/YYYY/MM/DD/HHMM.json
func (s *SpotStore) FifteenMinPath(day time.Time, hour, minute int) string {
	return filepath.Join(
		s.DataDir, "15min",
		strconv.Itoa(day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%02d", day.Day()),
		fmt.Sprintf("%02d%02d.json", hour, minute),
	)
}

// Write15Min writes a 15-minute snapshot. Cells are permanent point-in-time
// records: an existing cell is never overwritten, regardless of caller
// intent, and false is returned for the attempt.
func (s *SpotStore) Write15Min(records []domain.PriceRecord, day time.Time, hour, minute int) (bool, error) {
	path := s.FifteenMinPath(day, hour, minute)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := writeSnapshot(path, records); err != nil {
		return false, fmt.Errorf("writing 15-min snapshot: %w", err)
	}
	return true, nil
}

// writeSnapshot pretty-prints records to path, creating parent directories.
func writeSnapshot(path string, records []domain.PriceRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
