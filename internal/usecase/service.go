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

// DataService is the public fetch/load/backfill surface, composing the
// backfiller and rollup coordinator over a provider registry.
type DataService struct {
	store     domrepo.BarStore
	providers map[string]domrepo.BarProvider
	backfill  *Backfiller
	rollup    *Rollup
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

func NewDataService(
	store domrepo.BarStore,
	providers map[string]domrepo.BarProvider,
	backfill *Backfiller,
	rollup *Rollup,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *DataService {
	return &DataService{
		store:     store,
		providers: providers,
		backfill:  backfill,
		rollup:    rollup,
		metrics:   metrics,
		log:       log,
	}
}

func (s *DataService) provider(name string) (domrepo.BarProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownProvider, name)
	}
	return p, nil
}

// Fetch pulls 1m bars straight from the provider for the window and
// appends them to the canonical 1m series. QA runs on the fetched batch
// before anything is stored.
func (s *DataService) Fetch(ctx context.Context, provider, symbol string, w models.Window, save bool) ([]models.Bar, error) {
	prov, err := s.provider(provider)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	bars, err := prov.FetchBars(ctx, symbol, w)
	if err != nil {
		s.metrics.RecordError("fetch")
		return nil, fmt.Errorf("fetch %s/%s: %w", provider, symbol, err)
	}
	s.metrics.RecordLatency("fetch", time.Since(start).Seconds())

	if qa := RunBarQA(bars); !qa.Valid {
		s.metrics.RecordError("fetch_qa")
		return nil, fmt.Errorf("fetch %s/%s: qa failed: %v", provider, symbol, qa.Errors)
	}

	if save && len(bars) > 0 {
		key := models.BarsKey(provider, symbol, timeframe.Minute)
		if err := s.store.Append(ctx, key, bars); err != nil {
			return nil, fmt.Errorf("%w: append %s: %v", models.ErrStoreUnavailable, key, err)
		}
		s.metrics.RecordBarsAppended(timeframe.Minute.String(), len(bars))
		s.log.Info("fetch: stored",
			applogger.String("key", key.String()),
			applogger.Int("bars", len(bars)),
		)
	}
	return bars, nil
}

// Load serves the series at the requested timeframe through the rollup
// cache coordinator. The report is non-nil when serving required a
// backfill of the underlying minutes.
func (s *DataService) Load(ctx context.Context, provider, symbol, tf string, w models.Window) ([]models.Bar, *models.BackfillReport, error) {
	prov, err := s.provider(provider)
	if err != nil {
		return nil, nil, err
	}
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, nil, err
	}
	return s.rollup.Load(ctx, prov, symbol, spec, w)
}

// Backfill closes 1m gaps in the window and, for higher timeframes,
// rebuilds the rollup over the (possibly modified) underlying range.
func (s *DataService) Backfill(ctx context.Context, provider, symbol, tf string, w models.Window) ([]models.Bar, *models.BackfillReport, error) {
	prov, err := s.provider(provider)
	if err != nil {
		return nil, nil, err
	}
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, nil, err
	}

	if spec.IsMinute() {
		return s.backfill.Backfill(ctx, prov, symbol, spec, w)
	}

	// Rebuild runs the 1m backfill itself, so the gaps are fetched exactly
	// once and the returned report reflects what the rollup was built from.
	return s.rollup.Rebuild(ctx, prov, symbol, spec, w)
}

// Gaps reports missing sub-ranges in the stored series at tf, walking
// expectedMinutes steps across the window.
func (s *DataService) Gaps(ctx context.Context, provider, symbol, tf string, expectedMinutes int, w models.Window) ([]models.Gap, error) {
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, err
	}
	if expectedMinutes <= 0 {
		expectedMinutes = spec.Minutes
	}
	key := models.BarsKey(provider, symbol, spec)
	series, err := s.store.Read(ctx, key, w)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
	}
	return DetectGaps(series, timeframe.Spec{Minutes: expectedMinutes}, w), nil
}

// Validate runs bar-level QA over the stored series.
func (s *DataService) Validate(ctx context.Context, provider, symbol, tf string, w models.Window) (*QAResult, error) {
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, err
	}
	key := models.BarsKey(provider, symbol, spec)
	series, err := s.store.Read(ctx, key, w)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
	}
	return RunBarQA(series), nil
}

// SeriesInfo is the metadata summary for one stored series.
type SeriesInfo struct {
	Key      string    `json:"key"`
	RowCount int       `json:"row_count"`
	First    time.Time `json:"first"`
	Last     time.Time `json:"last"`
}

// Info returns row count and date range for a stored series.
func (s *DataService) Info(ctx context.Context, provider, symbol, tf string) (*SeriesInfo, error) {
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, err
	}
	key := models.BarsKey(provider, symbol, spec)
	series, err := s.store.Read(ctx, key, models.Window{})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", models.ErrStoreUnavailable, key, err)
	}
	info := &SeriesInfo{Key: key.String(), RowCount: len(series)}
	if len(series) > 0 {
		info.First = series[0].Timestamp
		info.Last = series[len(series)-1].Timestamp
	}
	return info, nil
}

// ListSeries enumerates stored bar series, optionally filtered by provider.
func (s *DataService) ListSeries(ctx context.Context, provider string) ([]models.SeriesRef, error) {
	prefix := ""
	if provider != "" {
		prefix = provider + "/"
	}
	keys, err := s.store.ListKeys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", models.ErrStoreUnavailable, err)
	}
	refs := make([]models.SeriesRef, 0, len(keys))
	for _, k := range keys {
		if ref, ok := models.ParseBarsKey(k); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Delete removes one stored series. Retention is a store concern; this is
// operator tooling, never called by the engine itself.
func (s *DataService) Delete(ctx context.Context, provider, symbol, tf string) error {
	spec, err := timeframe.Parse(tf)
	if err != nil {
		return err
	}
	key := models.BarsKey(provider, symbol, spec)
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", models.ErrStoreUnavailable, key, err)
	}
	s.log.Info("series deleted", applogger.String("key", key.String()))
	return nil
}

// ValidateCredentials checks provider credentials via the provider client.
func (s *DataService) ValidateCredentials(ctx context.Context, provider string) error {
	prov, err := s.provider(provider)
	if err != nil {
		return err
	}
	return prov.ValidateCredentials(ctx)
}
