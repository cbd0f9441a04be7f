package rates

import (
	"math"
	"sort"

	"staktrakr/internal/domain"
)

// InvertRates converts API rates (units of metal per 1 USD) into price per
// troy ounce, rounded to 2 decimal places. Symbols with a zero rate are
// dropped, guarding the division.
//
//	{"XAU": 0.0005} → {"XAU": 2000.00}
func InvertRates(rates map[string]float64) map[string]float64 {
	inverted := make(map[string]float64, len(rates))
	for symbol, rate := range rates {
		if rate == 0 {
			continue
		}
		inverted[symbol] = math.Round(100/rate) / 100
	}
	return inverted
}

// SeedRecords converts timeframe rates (date → symbol → rate) into seed
// records stamped at noon, ordered by date then canonical metal order.
// Unknown symbols are ignored.
func SeedRecords(ratesByDate map[string]map[string]float64) []domain.PriceRecord {
	dates := make([]string, 0, len(ratesByDate))
	for d := range ratesByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var records []domain.PriceRecord
	for _, date := range dates {
		records = append(records, LatestSeedRecords(ratesByDate[date], date)...)
	}
	return records
}

// LatestSeedRecords converts a single day's rates into seed records for
// that date, one per known metal present, in canonical metal order.
func LatestSeedRecords(rates map[string]float64, date string) []domain.PriceRecord {
	inverted := InvertRates(rates)

	var records []domain.PriceRecord
	for _, symbol := range domain.CanonicalSymbols {
		spot, ok := inverted[symbol]
		if !ok {
			continue
		}
		records = append(records, domain.PriceRecord{
			Spot:      spot,
			Metal:     domain.SymbolToMetal[symbol],
			Source:    domain.SourceSeed,
			Provider:  domain.Provider,
			Timestamp: domain.SeedTimestamp(date),
		})
	}
	return records
}

// RetagHourly clones records with source "hourly" and the given timestamp.
// Used by the pollers: the seed-shaped records keep their noon stamp for
// the yearly archive while the snapshot trees carry the actual poll time.
func RetagHourly(records []domain.PriceRecord, timestamp string) []domain.PriceRecord {
	out := make([]domain.PriceRecord, len(records))
	for i, r := range records {
		r.Source = domain.SourceHourly
		r.Timestamp = timestamp
		out[i] = r
	}
	return out
}
