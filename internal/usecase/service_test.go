package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	domrepo "BarFlow/internal/domain/repository"
	"BarFlow/internal/repository"
	"BarFlow/internal/timeframe"
	applogger "BarFlow/pkg/logger"
)

func newService(store *repository.MemoryBarStore, provs ...domrepo.BarProvider) *DataService {
	m := make(map[string]domrepo.BarProvider, len(provs))
	for _, p := range provs {
		m[p.Name()] = p
	}
	bf := NewBackfiller(store, nopMetrics{}, applogger.Nop())
	ru := NewRollup(store, bf, nopMetrics{}, applogger.Nop())
	return NewDataService(store, m, bf, ru, nopMetrics{}, applogger.Nop())
}

func TestServiceUnknownProvider(t *testing.T) {
	svc := newService(repository.NewMemoryBarStore())
	_, err := svc.Fetch(context.Background(), "nope", "AAPL", models.Window{}, false)
	assert.ErrorIs(t, err, models.ErrUnknownProvider)

	err = svc.ValidateCredentials(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrUnknownProvider)
}

func TestServiceInvalidTimeframe(t *testing.T) {
	svc := newService(repository.NewMemoryBarStore(), newFakeProvider("fake"))
	_, _, err := svc.Load(context.Background(), "fake", "AAPL", "90s", models.Window{})
	assert.ErrorIs(t, err, timeframe.ErrInvalidTimeframe)
}

func TestServiceFetchStoresCanonicalMinutes(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	svc := newService(store, prov)

	bars, err := svc.Fetch(ctx, "fake", "AAPL", window(start, 10), true)
	require.NoError(t, err)
	assert.Len(t, bars, 10)

	stored, err := store.Read(ctx, models.BarsKey("fake", "AAPL", timeframe.Minute), models.Window{})
	require.NoError(t, err)
	assert.Len(t, stored, 10)
}

func TestServiceFetchRejectsBadData(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.bars[start.Unix()] = models.Bar{
		Provider: "fake", Symbol: "AAPL", Timestamp: start,
		Open: 10, High: 9, Low: 11, Close: 10, Volume: 1, // high < low
	}
	svc := newService(store, prov)

	_, err := svc.Fetch(ctx, "fake", "AAPL", window(start, 1), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qa failed")

	ok, err := store.Exists(ctx, models.BarsKey("fake", "AAPL", timeframe.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "rejected batch must not reach the store")
}

func TestServiceLoadAggregates(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 8, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 60)
	svc := newService(store, prov)

	bars, report, err := svc.Load(ctx, "fake", "AAPL", "1h", models.Window{Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, bars, 1)
	assert.Equal(t, 300.0, bars[0].Volume)
}

func TestServiceBackfillRebuildsRollup(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 8, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 60)
	svc := newService(store, prov)

	bars, report, err := svc.Backfill(ctx, "fake", "AAPL", "1h", models.Window{Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, bars, 1)

	// Rollup key materialized alongside the minutes.
	ok, err := store.Exists(ctx, models.BarsKey("fake", "AAPL", timeframe.MustParse("1h")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceBackfillFetchesEachGapOnce(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 8, 0)
	store := repository.NewMemoryBarStore()
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	require.NoError(t, store.Append(ctx, key, minuteBars("fake", "AAPL", start, 60)))

	// The second hour is missing and the provider rejects it outright: one
	// user-level backfill must hit the provider exactly once for that gap,
	// and the returned report must carry the failure.
	prov := newFakeProvider("fake")
	prov.errs = []error{&models.ProviderError{Provider: "fake", Retryable: false, Err: errors.New("bad symbol")}}
	svc := newService(store, prov)

	bars, report, err := svc.Backfill(ctx, "fake", "AAPL", "1h",
		models.Window{Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, prov.calls, 1)
	require.NotNil(t, report)
	require.Len(t, report.GapsMissing, 1)
	assert.Contains(t, report.GapsMissing[0].Reason, "bad symbol")
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(start))
}

func TestServiceGapsDefaultsExpectedStep(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	series := minuteBars("fake", "AAPL", start, 10)
	require.NoError(t, store.Append(ctx, key, dropMinutes(series, start.Add(3*time.Minute))))
	svc := newService(store, newFakeProvider("fake"))

	gaps, err := svc.Gaps(ctx, "fake", "AAPL", "1m", 0, window(start, 10))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Start.Equal(start.Add(3*time.Minute)))
}

func TestServiceInfoListDelete(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	prov.seed("MSFT", start, 5)
	svc := newService(store, prov)

	_, err := svc.Fetch(ctx, "fake", "AAPL", window(start, 10), true)
	require.NoError(t, err)
	_, err = svc.Fetch(ctx, "fake", "MSFT", window(start, 5), true)
	require.NoError(t, err)

	info, err := svc.Info(ctx, "fake", "AAPL", "1m")
	require.NoError(t, err)
	assert.Equal(t, 10, info.RowCount)
	assert.True(t, info.First.Equal(start))
	assert.True(t, info.Last.Equal(start.Add(9*time.Minute)))

	refs, err := svc.ListSeries(ctx, "fake")
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	require.NoError(t, svc.Delete(ctx, "fake", "MSFT", "1m"))
	refs, err = svc.ListSeries(ctx, "fake")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "AAPL", refs[0].Symbol)
}

func TestServiceValidate(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	require.NoError(t, store.Append(ctx, key, minuteBars("fake", "AAPL", start, 10)))
	svc := newService(store, newFakeProvider("fake"))

	res, err := svc.Validate(ctx, "fake", "AAPL", "1m", models.Window{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 10, res.RowCount)
}
