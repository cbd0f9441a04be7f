package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"staktrakr/internal/archive"
	"staktrakr/internal/domain"
	"staktrakr/internal/rates"
	"staktrakr/internal/store"
)

var _ Gatherer = (*Poller)(nil)

// Poller runs the live poll cycle: fetch latest rates, write the hourly and
// 15-minute snapshots, and once per day (from the noon-window hour onward)
// merge the daily seed record into the yearly archive.
type Poller struct {
	Source RatesSource
	Store  *store.SpotStore

	// NoonHourUTC is the UTC hour from which the daily seed write is
	// allowed. The reference market noon is a fixed UTC offset; daylight
	// saving shifts are deliberately not modelled.
	NoonHourUTC int
	// BackfillHours is the trailing window scanned for missed hourly cells
	// in single-shot mode.
	BackfillHours int
	// ChunkDays bounds the span of a single timeframe request.
	ChunkDays int
	// CronSpec schedules the poll cycle in daemon mode.
	CronSpec string

	log *slog.Logger
	now func() time.Time
}

// NewPoller creates a Poller with the given collaborators and timing
// parameters.
func NewPoller(src RatesSource, s *store.SpotStore, noonHourUTC, backfillHours, chunkDays int, cronSpec string) *Poller {
	return &Poller{
		Source:        src,
		Store:         s,
		NoonHourUTC:   noonHourUTC,
		BackfillHours: backfillHours,
		ChunkDays:     chunkDays,
		CronSpec:      cronSpec,
		log:           slog.Default().With("gatherer", "spot-poller"),
		now:           time.Now,
	}
}

// Name returns the gatherer identifier.
func (p *Poller) Name() string { return "spot-poller" }

// Run is the daemon mode: catch up the seed archive, poll immediately, then
// keep polling on the cron schedule until ctx is cancelled. Fetch failures
// inside the loop are logged and the loop continues; filesystem failures
// terminate it.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Catchup(ctx, p.now()); err != nil {
		return err
	}

	if err := p.PollOnce(ctx, p.now()); err != nil {
		return err
	}

	c := cron.New(cron.WithSeconds())
	errCh := make(chan error, 1)
	if _, err := c.AddFunc(p.CronSpec, func() {
		if err := p.PollOnce(ctx, p.now()); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}); err != nil {
		return fmt.Errorf("registering poll schedule %q: %w", p.CronSpec, err)
	}

	p.log.Info("entering polling loop", "schedule", p.CronSpec)
	c.Start()
	defer c.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunOnce is the single-shot mode: heal the trailing hourly window, then
// poll once.
func (p *Poller) RunOnce(ctx context.Context) error {
	if err := p.BackfillRecentHours(ctx, p.now()); err != nil {
		return err
	}
	return p.PollOnce(ctx, p.now())
}

// PollOnce performs one poll cycle at the given wall-clock time. Fetch and
// data-shape problems are logged and skipped (the next cycle retries
// naturally); storage errors are returned.
func (p *Poller) PollOnce(ctx context.Context, now time.Time) error {
	now = now.UTC()
	today := now.Format(domain.DateLayout)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hour := now.Hour()

	p.log.Info("polling latest prices", "date", today, "hour", hour)
	latest, err := p.Source.Latest(ctx)
	if err != nil {
		p.log.Error("poll fetch failed", "err", err)
		return nil
	}
	if len(latest) == 0 {
		p.log.Warn("no rates in response")
		return nil
	}

	seed := rates.LatestSeedRecords(latest, today)
	if len(seed) == 0 {
		p.log.Warn("no valid records after transformation")
		return nil
	}

	// Snapshot trees carry the actual poll time and hourly provenance; the
	// seed records keep their noon stamp for the yearly archive.
	hourly := rates.RetagHourly(seed, domain.PollTimestamp(now))

	if _, err := p.Store.WriteHourly(hourly, day, hour, true); err != nil {
		return err
	}
	p.log.Info("hourly snapshot written", "records", len(hourly), "path", p.Store.HourlyPath(day, hour))

	written, err := p.Store.Write15Min(hourly, day, hour, now.Minute())
	if err != nil {
		return err
	}
	if written {
		p.log.Info("15-min snapshot written", "records", len(hourly), "path", p.Store.FifteenMinPath(day, hour, now.Minute()))
	} else {
		p.log.Info("15-min snapshot already exists, skipped", "path", p.Store.FifteenMinPath(day, hour, now.Minute()))
	}

	if hour >= p.NoonHourUTC {
		exists, err := archive.SeedDateExists(p.Store, today)
		if err != nil {
			return err
		}
		if exists {
			p.log.Info("daily seed already present, skipping", "date", today)
			return nil
		}
		results, err := archive.Merge(p.Store, seed, archive.Additive, false)
		if err != nil {
			return err
		}
		for year, count := range results {
			if count > 0 {
				p.log.Info("daily seed written", "date", today, "year", year, "added", count)
			}
		}
	}
	return nil
}

// Catchup backfills the seed archive from the day after the last recorded
// date through yesterday. Today's seed stays the noon poll's to write. A
// fetch failure is logged and catchup abandoned; the archive self-heals on
// the next start.
func (p *Poller) Catchup(ctx context.Context, now time.Time) error {
	latest, ok, err := archive.LatestSeedDate(p.Store)
	if err != nil {
		return err
	}
	if !ok {
		p.log.Info("no existing seed data, skipping catchup")
		return nil
	}

	now = now.UTC()
	yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	start := latest.AddDate(0, 0, 1)
	if start.After(yesterday) {
		p.log.Info("catchup already current", "latest", latest.Format(domain.DateLayout))
		return nil
	}

	p.log.Info("catchup backfilling",
		"start", start.Format(domain.DateLayout),
		"end", yesterday.Format(domain.DateLayout),
	)
	ratesByDate, err := FetchRange(ctx, p.Source, start, yesterday, p.ChunkDays, p.log)
	if err != nil {
		p.log.Error("catchup fetch failed", "err", err)
		return nil
	}

	records := rates.SeedRecords(ratesByDate)
	if len(records) == 0 {
		p.log.Info("catchup returned no data (weekends/holidays?)")
		return nil
	}

	results, err := archive.Merge(p.Store, records, archive.Additive, false)
	if err != nil {
		return err
	}
	for year, count := range results {
		if count > 0 {
			p.log.Info("catchup merged", "year", year, "added", count)
		}
	}
	return nil
}

// BackfillRecentHours fills absent hourly cells in the trailing window with
// historical prices from one consolidated timeframe request, bounding
// external-call volume to a single fetch regardless of how many cells are
// missing. Existing cells are never overwritten.
func (p *Poller) BackfillRecentHours(ctx context.Context, now time.Time) error {
	now = now.UTC()
	missing := archive.MissingHours(p.Store, now, p.BackfillHours)
	if len(missing) == 0 {
		p.log.Info("no gaps in recent hourly data", "window", p.BackfillHours)
		return nil
	}
	p.log.Info("missing hourly cells found", "count", len(missing))

	start, end := missing[0].Day, missing[0].Day
	for _, cell := range missing[1:] {
		if cell.Day.Before(start) {
			start = cell.Day
		}
		if cell.Day.After(end) {
			end = cell.Day
		}
	}

	ratesByDate, err := p.Source.Timeframe(ctx, start, end)
	if err != nil {
		p.log.Error("recent-hours fetch failed", "err", err)
		return nil
	}

	filled := 0
	for _, cell := range missing {
		date := cell.Day.Format(domain.DateLayout)
		dayRates, ok := ratesByDate[date]
		if !ok {
			continue
		}
		seed := rates.LatestSeedRecords(dayRates, date)
		if len(seed) == 0 {
			continue
		}
		hourly := rates.RetagHourly(seed, fmt.Sprintf("%s %02d:00:00", date, cell.Hour))

		written, err := p.Store.WriteHourly(hourly, cell.Day, cell.Hour, false)
		if err != nil {
			return err
		}
		if written {
			filled++
		}
	}
	p.log.Info("recent-hours backfill done", "filled", filled, "missing", len(missing))
	return nil
}
