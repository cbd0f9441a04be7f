// Long-running poller: on startup backfills any gap since the last seed
// entry, then polls the latest rates on a fixed schedule, writing hourly
// and 15-minute snapshots and, from the noon window onward, the daily seed
// entry. With -once it heals the trailing hourly window, polls a single
// time, and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"staktrakr/internal/config"
	"staktrakr/internal/gather"
	"staktrakr/internal/rates"
	"staktrakr/internal/store"
	"staktrakr/internal/util"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle (with recent-hours backfill) and exit")
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
	slog.Info("spot poller starting", "data_dir", cfg.Storage.DataDir, "single_shot", *once)

	if _, err := os.Stat(cfg.Storage.DataDir); err != nil {
		log.Fatalf("data directory %s does not exist (is the volume mounted?): %v", cfg.Storage.DataDir, err)
	}

	s := store.NewSpotStore(cfg.Storage.DataDir)
	client := rates.NewClient(cfg.API.BaseURL, cfg.API.Key)
	p := gather.NewPoller(client, s, cfg.Poll.NoonHourUTC, cfg.Poll.BackfillHours, cfg.API.ChunkDays, cfg.Poll.Cron)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := p.RunOnce(ctx); err != nil {
			log.Fatalf("%s error: %v", p.Name(), err)
		}
		slog.Info("done (single shot)")
		return
	}

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%s error: %v", p.Name(), err)
	}
	slog.Info("spot poller stopped")
}
