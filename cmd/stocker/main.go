package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/paramtully/stocker/internal/app"
)

const usage = `stocker runs one ingestion job per invocation.

Jobs:
  collect-daily     fetch today's candle for every tracked ticker
  reconcile         scan the recent window for missing trading days and refetch
  backfill          fetch full candle history for every tracked ticker
  collect-news      fetch and summarize recent news
  detect-splits     detect and apply stock splits
  detect-listings   diff the exchange symbol list against the stored snapshot
  load-candles      move year-partitioned candles into the transactional store
`

func main() {
	configPath := flag.String("config", "", "path to config file")
	job := flag.String("job", "", "job to run (see usage)")
	resume := flag.String("resume", "", "explicit resume unit for load-candles")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *job == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := runJob(ctx, a, *job, *resume); err != nil {
		a.Logger.Error().Err(err).Str("job", *job).Msg("Job failed")
		os.Exit(1)
	}

	a.Logger.Info().Str("job", *job).Msg("Job complete")
}

func runJob(ctx context.Context, a *app.App, job, resume string) error {
	switch job {
	case "collect-daily":
		return a.Ingest.CollectDailyCandles(ctx)
	case "reconcile":
		return a.Ingest.ReconcileRecentDays(ctx)
	case "backfill":
		return a.Ingest.BackfillHistorical(ctx)
	case "collect-news":
		return a.Ingest.CollectNews(ctx)
	case "detect-splits":
		return detectSplits(ctx, a)
	case "detect-listings":
		fresh, err := a.Ingest.DetectNewListings(ctx, a.Listings)
		if err != nil {
			return err
		}
		for _, l := range fresh {
			a.Logger.Info().Str("ticker", l.Ticker).Str("name", l.Name).Msg("New listing")
		}
		return nil
	case "load-candles":
		return loadCandles(ctx, a, resume)
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

func detectSplits(ctx context.Context, a *app.App) error {
	for _, ticker := range a.Config.Tickers {
		applied, err := a.Splits.DetectAndApply(ctx, ticker)
		if err != nil {
			return fmt.Errorf("split detection for %s: %w", ticker, err)
		}
		if len(applied) > 0 {
			a.Logger.Info().Str("ticker", ticker).Int("applied", len(applied)).Msg("Splits applied")
		}
	}
	return nil
}

// loadCandles drives the checkpointed loader over every stored candle year.
// When an invocation yields on its time budget, the loop re-invokes with the
// returned resume unit, standing in for the platform's re-invocation trigger.
func loadCandles(ctx context.Context, a *app.App, resume string) error {
	years, err := a.Candles.Years(ctx)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		a.Logger.Info().Msg("No candle years to load")
		return nil
	}

	units := make([]string, 0, len(years))
	for _, y := range years {
		units = append(units, strconv.Itoa(y))
	}

	for {
		cont, err := a.Loader.Run(ctx, units, resume)
		if err != nil {
			return err
		}
		if cont == nil {
			return nil
		}
		a.Logger.Info().Str("resume_unit", cont.ResumeUnit).Msg("Continuing load")
		resume = cont.ResumeUnit
	}
}
