// One-shot tool: backfill gaps in the yearly spot-history archives from the
// rates API timeframe endpoint. Run manually, review the output, commit
// when ready.
//
// Usage:
//
//	go build -o bin/spot-backfill ./cmd/spot-backfill/
//	bin/spot-backfill                                  # auto-detect gap, fill to today
//	bin/spot-backfill -dry-run                         # preview without writing
//	bin/spot-backfill -start-date 2026-01-15 -end-date 2026-02-01
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"staktrakr/internal/archive"
	"staktrakr/internal/config"
	"staktrakr/internal/domain"
	"staktrakr/internal/gather"
	"staktrakr/internal/rates"
	"staktrakr/internal/store"
	"staktrakr/internal/util"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "show what would be added without writing files")
	startDate := flag.String("start-date", "", "override start date (YYYY-MM-DD); default: day after latest seed data")
	endDate := flag.String("end-date", "", "override end date (YYYY-MM-DD); default: today")
	flag.Parse()

	cfgPath := "config/staktrakr.yaml"
	if p := os.Getenv("STAKTRAKR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	s := store.NewSpotStore(cfg.Storage.DataDir)
	client := rates.NewClient(cfg.API.BaseURL, cfg.API.Key)

	fmt.Println("Seed Data Updater")
	fmt.Println("=================")

	var start time.Time
	if *startDate != "" {
		start, err = time.Parse(domain.DateLayout, *startDate)
		if err != nil {
			log.Fatalf("invalid -start-date %q: %v", *startDate, err)
		}
	} else {
		latest, ok, err := archive.LatestSeedDate(s)
		if err != nil {
			log.Fatalf("scanning seed archives: %v", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: no existing seed data found. Use -start-date to specify.")
			os.Exit(1)
		}
		fmt.Printf("Latest data: %s\n", latest.Format(domain.DateLayout))
		start = latest.AddDate(0, 0, 1)
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if *endDate != "" {
		end, err = time.Parse(domain.DateLayout, *endDate)
		if err != nil {
			log.Fatalf("invalid -end-date %q: %v", *endDate, err)
		}
	}

	if start.After(end) {
		fmt.Println("Already up to date.")
		return
	}

	r := gather.DateRange{Start: start, End: end}
	fmt.Printf("Fetching: %s to %s (%d days)\n", start.Format(domain.DateLayout), end.Format(domain.DateLayout), r.Days())
	if *dryRun {
		fmt.Println("(dry run: no files will be modified)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := gather.NewBackfiller(client, s, r, cfg.API.ChunkDays, *dryRun)
	results, err := b.Backfill(ctx)
	if err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
	if results == nil {
		fmt.Println("No data returned from API (weekend/holiday gap?).")
		return
	}

	if *dryRun {
		fmt.Println("Would update files:")
	} else {
		fmt.Println("Updated files:")
	}
	years := make([]int, 0, len(results))
	for year := range results {
		years = append(years, year)
	}
	sort.Ints(years)

	total := 0
	for _, year := range years {
		count := results[year]
		total += count
		if count > 0 {
			fmt.Printf("  spot-history-%d.json: +%d entries\n", year, count)
		} else {
			fmt.Printf("  spot-history-%d.json: no new entries (already present)\n", year)
		}
	}
	if *dryRun {
		fmt.Printf("Done. %d entries would be added.\n", total)
	} else {
		fmt.Printf("Done. %d entries added.\n", total)
	}
}
