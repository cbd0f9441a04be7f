// Package archive implements the merge and gap-detection logic for the
// yearly seed archives. Merge is the single serialization point that
// enforces the no-duplicate-key invariant; the store itself does not.
package archive

import (
	"fmt"
	"strconv"

	"staktrakr/internal/domain"
	"staktrakr/internal/store"
)

// MergeMode selects how records that share a key with existing archive
// entries are handled.
type MergeMode int

const (
	// Additive only adds records whose key is absent; existing records are
	// never altered.
	Additive MergeMode = iota
	// Replacing substitutes existing records that share a key with the new
	// values, and appends net-new keys. Used for same-day corrections.
	Replacing
)

// Merge deduplicates new records against the yearly archives they belong to
// and persists the merged, re-sorted sequences. It returns the count of
// records added per year touched. In Replacing mode the reported count is
// simply the input count for that year; it does not distinguish replaced
// from appended records. With dryRun set, nothing is persisted.
//
// In Additive mode a year with zero genuinely-new records is not rewritten
// at all, keeping file modification times meaningful and diffs empty.
func Merge(s *store.SpotStore, records []domain.PriceRecord, mode MergeMode, dryRun bool) (map[int]int, error) {
	byYear := make(map[int][]domain.PriceRecord)
	for _, r := range records {
		year, err := recordYear(r)
		if err != nil {
			// Malformed timestamp on an input record: skip it.
			continue
		}
		byYear[year] = append(byYear[year], r)
	}

	results := make(map[int]int, len(byYear))
	for year, newRecs := range byYear {
		existing, err := s.LoadYear(year)
		if err != nil {
			return nil, err
		}

		var merged []domain.PriceRecord
		var count int

		switch mode {
		case Replacing:
			newByKey := make(map[domain.Key]domain.PriceRecord, len(newRecs))
			order := make([]domain.Key, 0, len(newRecs))
			for _, r := range newRecs {
				if _, seen := newByKey[r.Key()]; !seen {
					order = append(order, r.Key())
				}
				newByKey[r.Key()] = r
			}

			// Substitute in place, consuming matches from the lookup.
			merged = make([]domain.PriceRecord, 0, len(existing)+len(newRecs))
			for _, e := range existing {
				if repl, ok := newByKey[e.Key()]; ok {
					merged = append(merged, repl)
					delete(newByKey, e.Key())
					continue
				}
				merged = append(merged, e)
			}
			// Append new records whose key had no match.
			for _, k := range order {
				if r, ok := newByKey[k]; ok {
					merged = append(merged, r)
				}
			}
			count = len(newRecs)

		default: // Additive
			existingKeys := make(map[domain.Key]struct{}, len(existing))
			for _, e := range existing {
				existingKeys[e.Key()] = struct{}{}
			}

			var toAdd []domain.PriceRecord
			for _, r := range newRecs {
				if _, dup := existingKeys[r.Key()]; dup {
					continue
				}
				existingKeys[r.Key()] = struct{}{}
				toAdd = append(toAdd, r)
			}
			if len(toAdd) == 0 {
				results[year] = 0
				continue
			}
			merged = append(existing, toAdd...)
			count = len(toAdd)
		}

		domain.SortRecords(merged)

		if !dryRun {
			if err := s.SaveYear(year, merged); err != nil {
				return nil, err
			}
		}
		results[year] = count
	}

	return results, nil
}

// recordYear extracts the calendar year from a record's timestamp prefix.
func recordYear(r domain.PriceRecord) (int, error) {
	if len(r.Timestamp) < 4 {
		return 0, fmt.Errorf("timestamp %q too short", r.Timestamp)
	}
	return strconv.Atoi(r.Timestamp[:4])
}
