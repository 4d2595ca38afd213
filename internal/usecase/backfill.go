package usecase

import (
	"context"
	"fmt"
	"time"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
	"BarFlow/internal/timeframe"
	applogger "BarFlow/pkg/logger"
)

// Backfiller closes gaps in the canonical 1m series for one (provider,
// symbol) key. Per-gap fetch failures are isolated into the report; only a
// structural store failure aborts the call.
type Backfiller struct {
	store   domrepo.BarStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewBackfiller(store domrepo.BarStore, metrics domrepo.Metrics, log *applogger.Logger) *Backfiller {
	return &Backfiller{store: store, metrics: metrics, log: log}
}

// Backfill loads the stored 1m series for the window, detects missing
// sub-ranges, and fetches each one independently in ascending order. A
// request for a higher timeframe is first resolved to the equivalent 1m
// window (start floored to the target boundary); rollup derivation is the
// cache coordinator's job, not this one's.
//
// Returns the best-effort merged 1m series and a report of what was
// requested, filled, and still missing. Partially-filled results are not
// an error.
func (f *Backfiller) Backfill(
	ctx context.Context,
	prov domrepo.BarProvider,
	symbol string,
	spec timeframe.Spec,
	w models.Window,
) ([]models.Bar, *models.BackfillReport, error) {
	start := time.Now()
	w1 := models.Window{Start: spec.Align(w.Start), End: w.End}
	key := models.BarsKey(prov.Name(), symbol, timeframe.Minute)

	existing, err := f.store.Read(ctx, key, w1)
	if err != nil {
		f.metrics.RecordError("backfill_load")
		return nil, nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
	}

	gaps := DetectGaps(existing, timeframe.Minute, w1)
	f.metrics.RecordGapsDetected(prov.Name(), symbol, len(gaps))

	report := &models.BackfillReport{
		Provider:      prov.Name(),
		Symbol:        symbol,
		Timeframe:     timeframe.Minute.String(),
		Window:        w1,
		GapsRequested: gaps,
	}
	if len(gaps) == 0 {
		f.log.Debug("backfill: no gaps",
			applogger.String("key", key.String()),
			applogger.String("window", w1.String()),
		)
		return existing, report, nil
	}

	f.log.Info("backfill: gaps detected",
		applogger.String("key", key.String()),
		applogger.String("window", w1.String()),
		applogger.Int("gaps", len(gaps)),
	)

	var fetched []models.Bar
	for _, gap := range gaps {
		bars, err := f.fetchGap(ctx, prov, symbol, gap)
		if err != nil {
			f.metrics.RecordGapFailed(prov.Name(), symbol)
			f.log.Warn("backfill: gap fetch failed",
				applogger.String("key", key.String()),
				applogger.String("gap", gap.String()),
				applogger.Error(err),
			)
			report.GapsMissing = append(report.GapsMissing, models.GapFailure{Gap: gap, Reason: err.Error()})
			continue
		}
		if len(bars) == 0 {
			f.metrics.RecordGapFailed(prov.Name(), symbol)
			report.GapsMissing = append(report.GapsMissing, models.GapFailure{Gap: gap, Reason: "no data"})
			continue
		}

		// Append is dedup-safe: re-fetching an already-present timestamp
		// merges to a no-op in the store.
		if err := f.store.Append(ctx, key, bars); err != nil {
			f.metrics.RecordError("backfill_append")
			return nil, nil, fmt.Errorf("%w: append %s: %v", models.ErrStoreUnavailable, key, err)
		}
		f.metrics.RecordGapFilled(prov.Name(), symbol)
		f.metrics.RecordBarsAppended(timeframe.Minute.String(), len(bars))
		report.GapsFilled = append(report.GapsFilled, gap)
		report.BarsFetched += len(bars)
		fetched = append(fetched, bars...)
	}

	merged := models.MergeBars(existing, fetched)
	f.metrics.RecordLatency("backfill", time.Since(start).Seconds())
	f.log.Info("backfill: done",
		applogger.String("key", key.String()),
		applogger.Int("filled", len(report.GapsFilled)),
		applogger.Int("missing", len(report.GapsMissing)),
		applogger.Int("bars", report.BarsFetched),
	)
	return merged, report, nil
}

// fetchGap fetches exactly one gap's sub-range, with a single retry when
// the provider flags the failure as retryable.
func (f *Backfiller) fetchGap(
	ctx context.Context,
	prov domrepo.BarProvider,
	symbol string,
	gap models.Gap,
) ([]models.Bar, error) {
	bars, err := prov.FetchBars(ctx, symbol, gap.Window())
	if err == nil || !models.IsRetryable(err) {
		return bars, err
	}
	f.log.Debug("backfill: retrying gap",
		applogger.String("gap", gap.String()),
		applogger.Error(err),
	)
	return prov.FetchBars(ctx, symbol, gap.Window())
}
