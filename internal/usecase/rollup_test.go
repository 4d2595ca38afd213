package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/repository"
	"BarFlow/internal/timeframe"
	applogger "BarFlow/pkg/logger"
)

func newRollup(store *repository.MemoryBarStore) *Rollup {
	return NewRollup(store, newBackfiller(store), nopMetrics{}, applogger.Nop())
}

func TestRollupMinutePassthrough(t *testing.T) {
	ctx := context.Background()
	start := mustUTC(2024, 5, 6, 9, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")

	key := models.BarsKey("fake", "AAPL", timeframe.Minute)
	require.NoError(t, store.Append(ctx, key, minuteBars("fake", "AAPL", start, 10)))

	bars, report, err := newRollup(store).Load(ctx, prov, "AAPL", timeframe.Minute, window(start, 10))
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Len(t, bars, 10)
	assert.Empty(t, prov.calls)
}

func TestRollupMissThenHit(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", day, 8*60)
	ru := newRollup(store)
	w := models.Window{Start: day, End: day.Add(8 * time.Hour)}
	spec := timeframe.MustParse("4h")

	// First load backfills the minutes and derives the rollup.
	first, report, err := ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, first, 2)
	assert.True(t, report.Complete())

	// Second load is served from the cached rollup, bit-identical, with no
	// provider traffic and no report.
	calls := len(prov.calls)
	second, report, err := ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, len(prov.calls))
}

func TestRollupIncompleteFinalPeriodRecomputes(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	// Only 6h of minutes exist: the second 4h period is still accumulating.
	prov.seed("AAPL", day, 6*60)
	ru := newRollup(store)
	w := models.Window{Start: day, End: day.Add(6 * time.Hour)}
	spec := timeframe.MustParse("4h")

	first, report, err := ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, first, 2)

	// The cached final period is open, so a second load recomputes instead
	// of trusting the cache.
	_, report, err = ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestRollupGrowingMinutesRefreshFinalBar(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", day, 5*60)
	ru := newRollup(store)
	spec := timeframe.MustParse("4h")
	w := models.Window{Start: day, End: day.Add(5 * time.Hour)}

	first, _, err := ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	require.Len(t, first, 2)
	openVolume := first[1].Volume

	// More minutes arrive inside the open period; reload must fold them in.
	prov.seed("AAPL", day.Add(5*time.Hour), 60)
	w = models.Window{Start: day, End: day.Add(6 * time.Hour)}
	second, _, err := ru.Load(ctx, prov, "AAPL", spec, w)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Greater(t, second[1].Volume, openVolume)
}

func TestRollupReportsMissingMinutes(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	// Provider only has the first 4h; the rest of the window stays missing.
	prov.seed("AAPL", day, 4*60)
	ru := newRollup(store)

	bars, report, err := ru.Load(ctx, prov, "AAPL", timeframe.MustParse("4h"),
		models.Window{Start: day, End: day.Add(8 * time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Complete())
	assert.NotEmpty(t, report.GapsMissing)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(day))
}

func TestRollupTrimsToRequestedWindow(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", day, 8*60)
	ru := newRollup(store)

	// Request starts mid-period: the window is floored to the boundary, so
	// the 04:00 bar is part of the answer.
	w := models.Window{Start: day.Add(5 * time.Hour), End: day.Add(8 * time.Hour)}
	bars, _, err := ru.Load(ctx, prov, "AAPL", timeframe.MustParse("4h"), w)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(day.Add(4*time.Hour)))
}

func TestRollupWindowEndingMidPeriodAggregatesWholePeriod(t *testing.T) {
	ctx := context.Background()
	day := mustUTC(2024, 5, 6, 0, 0)
	store := repository.NewMemoryBarStore()
	prov := newFakeProvider("fake")
	prov.seed("AAPL", day, 8*60)
	ru := newRollup(store)
	spec := timeframe.MustParse("4h")

	// The request stops one hour into the second period, but the cached bar
	// must cover the whole period or a later, wider load would serve it
	// truncated.
	first, report, err := ru.Load(ctx, prov, "AAPL", spec,
		models.Window{Start: day, End: day.Add(5 * time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Complete())
	require.Len(t, first, 2)
	assert.Equal(t, 1200.0, first[1].Volume)

	// Widening the window takes the cache-hit path and must see the same
	// full-period bar, with no further provider traffic.
	calls := len(prov.calls)
	second, report, err := ru.Load(ctx, prov, "AAPL", spec,
		models.Window{Start: day, End: day.Add(8 * time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, first, second)
	assert.Equal(t, 1200.0, second[1].Volume)
	assert.Equal(t, calls, len(prov.calls))
}
