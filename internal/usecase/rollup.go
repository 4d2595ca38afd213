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

// Rollup serves higher-timeframe series, caching derived bars in the store
// under the rollup key. Identical input minutes always produce identical
// aggregated output (wall-clock alignment), so recomputing an overlapping
// window and re-appending is idempotent.
type Rollup struct {
	store      domrepo.BarStore
	backfiller *Backfiller
	metrics    domrepo.Metrics
	log        *applogger.Logger
}

func NewRollup(store domrepo.BarStore, backfiller *Backfiller, metrics domrepo.Metrics, log *applogger.Logger) *Rollup {
	return &Rollup{store: store, backfiller: backfiller, metrics: metrics, log: log}
}

// Load returns the aggregated series for the window, trimmed to the
// boundary-aligned window (a request starting mid-period includes the
// floored boundary bar). 1m requests read straight from the store. For higher frames the cached
// rollup is served only when it fully covers the window at the target
// step and its final period is complete in the underlying 1m series;
// otherwise the 1m window is (back)filled, aggregated, and re-cached. The
// returned report is non-nil whenever a backfill ran, so callers learn
// about any still-missing minutes under the aggregation.
func (r *Rollup) Load(
	ctx context.Context,
	prov domrepo.BarProvider,
	symbol string,
	spec timeframe.Spec,
	w models.Window,
) ([]models.Bar, *models.BackfillReport, error) {
	if spec.IsMinute() {
		key := models.BarsKey(prov.Name(), symbol, spec)
		bars, err := r.store.Read(ctx, key, w)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
		}
		return bars, nil, nil
	}

	wa := models.Window{Start: spec.Align(w.Start), End: w.End}
	key := models.BarsKey(prov.Name(), symbol, spec)

	cached, err := r.store.Read(ctx, key, wa)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
	}
	if len(cached) > 0 && len(DetectGaps(cached, spec, wa)) == 0 {
		fresh, err := r.fresh(ctx, prov.Name(), symbol, spec, cached)
		if err != nil {
			return nil, nil, err
		}
		if fresh {
			r.metrics.RecordLatency("rollup_cache_hit", 0)
			r.log.Debug("rollup: cache hit",
				applogger.String("key", key.String()),
				applogger.String("window", wa.String()),
			)
			return models.TrimBars(cached, wa), nil, nil
		}
	}

	return r.Rebuild(ctx, prov, symbol, spec, w)
}

// Rebuild recomputes the rollup from the canonical 1m series regardless of
// the cached state. The backfill/rollup path calls this directly after new
// 1m appends: any cache entry over a modified 1m range counts as stale.
func (r *Rollup) Rebuild(
	ctx context.Context,
	prov domrepo.BarProvider,
	symbol string,
	spec timeframe.Spec,
	w models.Window,
) ([]models.Bar, *models.BackfillReport, error) {
	start := time.Now()
	key := models.BarsKey(prov.Name(), symbol, spec)
	wa := models.Window{Start: spec.Align(w.Start), End: w.End}

	// Backfill and aggregate whole target periods. Caching a bar derived
	// from a truncated final period would be served verbatim by later,
	// wider loads once the 1m series extends past the period.
	wf := models.Window{Start: wa.Start, End: spec.PeriodEnd(spec.Align(w.End.Add(-time.Nanosecond)))}

	minutes, report, err := r.backfiller.Backfill(ctx, prov, symbol, spec, wf)
	if err != nil {
		return nil, nil, err
	}
	if len(minutes) == 0 {
		r.log.Warn("rollup: no 1m data in window",
			applogger.String("key", key.String()),
			applogger.String("window", wa.String()),
		)
		return nil, report, nil
	}

	agg, err := Aggregate(minutes, spec)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate %s: %w", key, err)
	}

	if err := r.store.Append(ctx, key, agg); err != nil {
		r.metrics.RecordError("rollup_append")
		return nil, nil, fmt.Errorf("%w: append %s: %v", models.ErrStoreUnavailable, key, err)
	}
	r.metrics.RecordBarsAppended(spec.String(), len(agg))
	r.metrics.RecordLatency("rollup_rebuild", time.Since(start).Seconds())
	r.log.Info("rollup: rebuilt",
		applogger.String("key", key.String()),
		applogger.String("window", wa.String()),
		applogger.Int("bars", len(agg)),
	)
	return models.TrimBars(agg, wa), report, nil
}

// fresh reports whether the cached rollup's final period is complete in
// the underlying 1m series. A period still accumulating minutes must be
// recomputed on every load until it closes.
func (r *Rollup) fresh(ctx context.Context, provider, symbol string, spec timeframe.Spec, cached []models.Bar) (bool, error) {
	baseKey := models.BarsKey(provider, symbol, timeframe.Minute)
	_, last, err := r.store.DateRange(ctx, baseKey)
	if err != nil {
		return false, fmt.Errorf("%w: date range %s: %v", models.ErrStoreUnavailable, baseKey, err)
	}
	if last.IsZero() {
		return false, nil
	}
	lastBoundary := cached[len(cached)-1].Timestamp
	return !spec.PeriodEnd(lastBoundary).After(last.Add(time.Minute)), nil
}
