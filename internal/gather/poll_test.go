package gather

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"staktrakr/internal/domain"
	"staktrakr/internal/store"
)

func newTestPoller(s *store.SpotStore, src RatesSource) *Poller {
	return NewPoller(src, s, 17, 24, 365, "@every 1h")
}

func TestPollOnceBeforeNoonWindow(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	src := &fakeSource{
		latestFn: func() (map[string]float64, error) {
			return map[string]float64{"XAU": 0.0005, "XAG": 0.012}, nil
		},
	}
	p := newTestPoller(s, src)

	now := time.Date(2026, 2, 10, 7, 20, 0, 0, time.UTC)
	if err := p.PollOnce(context.Background(), now); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	d := day(2026, 2, 10)
	if !s.HourlyExists(d, 7) {
		t.Error("hourly snapshot not written")
	}
	data, err := os.ReadFile(s.HourlyPath(d, 7))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "2026-02-10 07:20:00") {
		t.Error("hourly records must carry the actual poll time")
	}
	if !strings.Contains(string(data), `"source": "hourly"`) {
		t.Error("hourly records must be retagged with hourly provenance")
	}

	if _, err := os.Stat(s.FifteenMinPath(d, 7, 20)); err != nil {
		t.Error("15-min snapshot not written")
	}

	// Before the noon window no seed record may appear.
	if _, err := os.Stat(s.YearPath(2026)); !os.IsNotExist(err) {
		t.Error("seed archive must not be written before the noon window")
	}
}

func TestPollOnceNoonSeedWrittenOnce(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	src := &fakeSource{
		latestFn: func() (map[string]float64, error) {
			return map[string]float64{"XAU": 0.0005}, nil
		},
	}
	p := newTestPoller(s, src)

	// Hour 17 UTC is the noon-window threshold.
	if err := p.PollOnce(context.Background(), time.Date(2026, 2, 10, 17, 5, 0, 0, time.UTC)); err != nil {
		t.Fatalf("PollOnce (noon): %v", err)
	}

	recs, err := s.LoadYear(2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("archive holds %d records, want 1", len(recs))
	}
	if recs[0].Timestamp != "2026-02-10 12:00:00" {
		t.Errorf("seed timestamp = %q, want fixed noon", recs[0].Timestamp)
	}
	if recs[0].Source != domain.SourceSeed {
		t.Errorf("seed source = %q, want seed", recs[0].Source)
	}

	// A later poll the same day finds the date present and does not add a
	// second seed record, even across a simulated restart.
	p2 := newTestPoller(s, src)
	if err := p2.PollOnce(context.Background(), time.Date(2026, 2, 10, 18, 5, 0, 0, time.UTC)); err != nil {
		t.Fatalf("PollOnce (later): %v", err)
	}
	recs, err = s.LoadYear(2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("archive holds %d records after second poll, want 1", len(recs))
	}
}

func TestPollOnceFetchErrorSkipsCycle(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	src := &fakeSource{
		latestFn: func() (map[string]float64, error) {
			return nil, errors.New("connection reset")
		},
	}
	p := newTestPoller(s, src)

	// A transport failure is recovered: the cycle is skipped, not fatal.
	if err := p.PollOnce(context.Background(), time.Date(2026, 2, 10, 7, 20, 0, 0, time.UTC)); err != nil {
		t.Fatalf("PollOnce should swallow fetch errors, got %v", err)
	}
	if s.HourlyExists(day(2026, 2, 10), 7) {
		t.Error("no snapshot may be written on a failed fetch")
	}
}

func TestPollOnceHourlyFreshness(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	spot := 0.0005
	src := &fakeSource{
		latestFn: func() (map[string]float64, error) {
			return map[string]float64{"XAU": spot}, nil
		},
	}
	p := newTestPoller(s, src)
	ctx := context.Background()

	if err := p.PollOnce(ctx, time.Date(2026, 2, 10, 7, 5, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	spot = 0.0004 // 2500.00/oz on the next poll in the same hour
	if err := p.PollOnce(ctx, time.Date(2026, 2, 10, 7, 20, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	d := day(2026, 2, 10)
	data, err := os.ReadFile(s.HourlyPath(d, 7))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "2500") {
		t.Error("hourly cell must track the freshest value within the hour")
	}

	// Both polls leave their own permanent 15-min snapshots.
	first, err := os.ReadFile(s.FifteenMinPath(d, 7, 5))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(first), "2000") {
		t.Error("first 15-min snapshot must keep the first poll's value")
	}
	if _, err := os.Stat(s.FifteenMinPath(d, 7, 20)); err != nil {
		t.Error("second 15-min snapshot missing")
	}
}

func TestBackfillRecentHours(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	now := time.Date(2026, 2, 10, 6, 30, 0, 0, time.UTC)
	today := day(2026, 2, 10)
	yesterday := day(2026, 2, 9)

	// Hours 4 and 5 today are present; the rest of the 24h window is not.
	for _, h := range []int{4, 5} {
		if _, err := s.WriteHourly([]domain.PriceRecord{{
			Spot: 2000, Metal: domain.MetalGold, Source: domain.SourceHourly,
			Provider: domain.Provider, Timestamp: "2026-02-10 04:00:00",
		}}, today, h, true); err != nil {
			t.Fatal(err)
		}
	}

	src := &fakeSource{
		timeframeFn: func(start, end time.Time) (map[string]map[string]float64, error) {
			return map[string]map[string]float64{
				"2026-02-09": {"XAU": 0.0005},
				"2026-02-10": {"XAU": 0.00049},
			}, nil
		},
	}
	p := newTestPoller(s, src)

	if err := p.BackfillRecentHours(context.Background(), now); err != nil {
		t.Fatalf("BackfillRecentHours: %v", err)
	}

	// One consolidated fetch covering the missing dates, not one per hour.
	if len(src.timeframeCalls) != 1 {
		t.Fatalf("issued %d timeframe requests, want 1", len(src.timeframeCalls))
	}
	call := src.timeframeCalls[0]
	if !call.Start.Equal(yesterday) || !call.End.Equal(today) {
		t.Errorf("fetch range = %v..%v, want %v..%v", call.Start, call.End, yesterday, today)
	}

	// Missing cells are filled with top-of-hour stamps.
	if !s.HourlyExists(today, 3) {
		t.Error("hour 3 today should be filled")
	}
	data, err := os.ReadFile(s.HourlyPath(today, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "2026-02-10 03:00:00") {
		t.Error("backfilled cell must carry a top-of-hour timestamp")
	}
	if !s.HourlyExists(yesterday, 23) {
		t.Error("hour 23 yesterday should be filled")
	}

	// Pre-existing cells keep their original content.
	kept, err := os.ReadFile(s.HourlyPath(today, 4))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(kept), "04:00:00") {
		t.Error("existing hourly cell must not be overwritten by backfill")
	}

	// The in-progress hour 6 stays untouched.
	if s.HourlyExists(today, 6) {
		t.Error("current hour must be excluded from the window")
	}
}

func TestCatchup(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	if err := s.SaveYear(2026, []domain.PriceRecord{{
		Spot: 2000, Metal: domain.MetalGold, Source: domain.SourceSeed,
		Provider: domain.Provider, Timestamp: "2026-02-07 12:00:00",
	}}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{
		timeframeFn: func(start, end time.Time) (map[string]map[string]float64, error) {
			return map[string]map[string]float64{
				"2026-02-08": {"XAU": 0.0005},
				"2026-02-09": {"XAU": 0.00049},
			}, nil
		},
	}
	p := newTestPoller(s, src)

	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	if err := p.Catchup(context.Background(), now); err != nil {
		t.Fatalf("Catchup: %v", err)
	}

	if len(src.timeframeCalls) != 1 {
		t.Fatalf("issued %d requests, want 1", len(src.timeframeCalls))
	}
	call := src.timeframeCalls[0]
	if !call.Start.Equal(day(2026, 2, 8)) {
		t.Errorf("catchup start = %v, want day after latest seed", call.Start)
	}
	if !call.End.Equal(day(2026, 2, 9)) {
		t.Errorf("catchup end = %v, want yesterday", call.End)
	}

	recs, err := s.LoadYear(2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Errorf("archive holds %d records after catchup, want 3", len(recs))
	}
}

func TestCatchupAlreadyCurrent(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	if err := s.SaveYear(2026, []domain.PriceRecord{{
		Spot: 2000, Metal: domain.MetalGold, Source: domain.SourceSeed,
		Provider: domain.Provider, Timestamp: "2026-02-09 12:00:00",
	}}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{
		timeframeFn: func(start, end time.Time) (map[string]map[string]float64, error) {
			t.Error("no fetch may happen when already current")
			return nil, nil
		},
	}
	p := newTestPoller(s, src)

	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	if err := p.Catchup(context.Background(), now); err != nil {
		t.Fatalf("Catchup: %v", err)
	}
	if len(src.timeframeCalls) != 0 {
		t.Errorf("issued %d requests, want 0", len(src.timeframeCalls))
	}
}

func TestCatchupNoSeedData(t *testing.T) {
	s := store.NewSpotStore(t.TempDir())
	src := &fakeSource{
		timeframeFn: func(start, end time.Time) (map[string]map[string]float64, error) {
			t.Error("no fetch may happen without existing seed data")
			return nil, nil
		},
	}
	p := newTestPoller(s, src)

	if err := p.Catchup(context.Background(), time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Catchup: %v", err)
	}
}
