package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/repository"
	"BarFlow/internal/timeframe"
	applogger "BarFlow/pkg/logger"
)

func newBackfiller(store *repository.MemoryBarStore) *Backfiller {
	return NewBackfiller(store, nopMetrics{}, applogger.Nop())
}

func TestBackfillFillsGaps(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)

	// Store holds minutes 0-3 and 7-9; minutes 4-6 are missing.
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	all := minuteBars("fake", "AAPL", start, 10)
	require.NoError(t, store.Append(ctx, key, all[:4]))
	require.NoError(t, store.Append(ctx, key, all[7:]))

	merged, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Len(t, merged, 10)
	assert.Len(t, report.GapsRequested, 1)
	assert.Len(t, report.GapsFilled, 1)
	assert.Empty(t, report.GapsMissing)
	assert.Equal(t, 3, report.BarsFetched)
	assert.True(t, report.Complete())

	stored, err := store.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	assert.Len(t, stored, 10)
}

func TestBackfillRetriesRetryableOnce(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	prov.errs = []error{&models.ProviderError{Provider: "fake", Retryable: true, Err: errors.New("429")}}

	_, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)

	assert.Len(t, prov.calls, 2)
	assert.Len(t, report.GapsFilled, 1)
	assert.True(t, report.Complete())
}

func TestBackfillNonRetryableGoesStraightToMissing(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	prov.errs = []error{&models.ProviderError{Provider: "fake", Retryable: false, Err: errors.New("bad symbol")}}

	merged, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)

	assert.Len(t, prov.calls, 1)
	assert.Empty(t, merged)
	require.Len(t, report.GapsMissing, 1)
	assert.Contains(t, report.GapsMissing[0].Reason, "bad symbol")
	assert.False(t, report.Complete())
}

func TestBackfillEmptyFetchIsMissing(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake") // no data at all

	_, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)
	require.Len(t, report.GapsMissing, 1)
	assert.Equal(t, "no data", report.GapsMissing[0].Reason)
}

func TestBackfillPartialFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	// Two disjoint gaps; first fetch fails hard, second succeeds.
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	all := minuteBars("fake", "AAPL", start, 10)
	require.NoError(t, store.Append(ctx, key, all[0:2]))
	require.NoError(t, store.Append(ctx, key, all[4:6]))
	require.NoError(t, store.Append(ctx, key, all[8:]))
	prov.errs = []error{&models.ProviderError{Provider: "fake", Err: errors.New("boom")}}

	merged, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)

	assert.Len(t, report.GapsRequested, 2)
	assert.Len(t, report.GapsMissing, 1)
	assert.Len(t, report.GapsFilled, 1)
	assert.Len(t, merged, 8)
}

func TestBackfillIdempotentSecondRun(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", start, 10)
	bf := newBackfiller(store)
	w := window(start, 10)

	_, _, err := bf.Backfill(ctx, prov, "AAPL", timeframe.Minute, w)
	require.NoError(t, err)
	calls := len(prov.calls)

	merged, report, err := bf.Backfill(ctx, prov, "AAPL", timeframe.Minute, w)
	require.NoError(t, err)
	assert.Empty(t, report.GapsRequested)
	assert.Len(t, merged, 10)
	assert.Equal(t, calls, len(prov.calls), "no provider calls on a complete window")
}

func TestBackfillAlignsWindowToTargetFrame(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	day := mustUTC(2024, 5, 6, 0, 0)
	prov.seed("AAPL", day, 8*60)

	// Request 4h starting mid-period: the 1m window starts at the floored
	// boundary, not at the raw request start.
	w := models.Window{Start: day.Add(5 * time.Hour), End: day.Add(8 * time.Hour)}
	_, report, err := newBackfiller(store).Backfill(ctx, prov, "AAPL", timeframe.MustParse("4h"), w)
	require.NoError(t, err)
	assert.True(t, report.Window.Start.Equal(day.Add(4*time.Hour)))
	assert.Equal(t, 4*60, report.BarsFetched)
}
