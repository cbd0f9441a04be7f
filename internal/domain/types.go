// Package domain defines the core data types shared across the StakTrakr
// spot-price archiver: price records, the metal enumeration, and the
// identity key used for deduplication and ordering.
package domain

import (
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// Metals
// ---------------------------------------------------------------------------

// Metal is the full name of a tracked precious metal.
type Metal string

const (
	MetalGold      Metal = "Gold"
	MetalSilver    Metal = "Silver"
	MetalPlatinum  Metal = "Platinum"
	MetalPalladium Metal = "Palladium"
)

// CanonicalSymbols lists the three-letter metal symbols in the fixed output
// order used everywhere records are produced, regardless of input ordering.
var CanonicalSymbols = []string{"XAU", "XAG", "XPT", "XPD"}

// SymbolToMetal maps API metal symbols to full metal names. Symbols absent
// from this table are ignored by the transform.
var SymbolToMetal = map[string]Metal{
	"XAU": MetalGold,
	"XAG": MetalSilver,
	"XPT": MetalPlatinum,
	"XPD": MetalPalladium,
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// Provider tags every record with the producing system.
const Provider = "StakTrakr"

// Record provenance values. 15-minute snapshots reuse SourceHourly at write
// time.
const (
	SourceSeed   = "seed"
	SourceHourly = "hourly"
)

// Timestamp layouts for the naive local-format strings stored in records.
const (
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

// PriceRecord is one metal's price at one point in time. Field order matches
// the on-disk JSON shape.
type PriceRecord struct {
	Spot      float64 `json:"spot"`
	Metal     Metal   `json:"metal"`
	Source    string  `json:"source"`
	Provider  string  `json:"provider"`
	Timestamp string  `json:"timestamp"`
}

// Key identifies a record within a yearly archive. No two records in an
// archive may share a Key.
type Key struct {
	Timestamp string
	Metal     Metal
}

// Key returns the record's identity key.
func (r PriceRecord) Key() Key {
	return Key{Timestamp: r.Timestamp, Metal: r.Metal}
}

// Date returns the date portion of the record's timestamp ("YYYY-MM-DD"),
// or the empty string if the timestamp is too short to contain one.
func (r PriceRecord) Date() string {
	if len(r.Timestamp) < len(DateLayout) {
		return ""
	}
	return r.Timestamp[:len(DateLayout)]
}

// SeedTimestamp builds the fixed-noon timestamp used by seed records.
func SeedTimestamp(date string) string {
	return date + " 12:00:00"
}

// PollTimestamp builds the actual-poll-time timestamp used by hourly and
// 15-minute records. Seconds are always zero.
func PollTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04") + ":00"
}

// SortRecords orders records ascending by (timestamp, metal), metal names
// compared lexically. This is the persisted archive order.
func SortRecords(recs []PriceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp < recs[j].Timestamp
		}
		return recs[i].Metal < recs[j].Metal
	})
}
