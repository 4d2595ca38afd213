package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
)

func testBars(symbol string, start time.Time, n int) []models.Bar {
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		px := 10 + float64(i)
		out = append(out, models.Bar{
			Provider:  "fake",
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      px, High: px, Low: px, Close: px, Volume: 1,
		})
	}
	return out
}

func TestMemoryStoreReadWindowAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)

	bars := testBars("AAPL", start, 10)
	// Append out of order; reads come back sorted.
	require.NoError(t, s.Append(ctx, key, bars[5:]))
	require.NoError(t, s.Append(ctx, key, bars[:5]))

	got, err := s.Read(ctx, key, models.Window{Start: start.Add(2 * time.Minute), End: start.Add(6 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
	}

	all, err := s.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestMemoryStoreReadAbsentKey(t *testing.T) {
	s := NewMemoryBarStore()
	got, err := s.Read(context.Background(), "fake/NOPE/bars/1m", models.Window{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreAppendDedupsByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)

	require.NoError(t, s.Append(ctx, key, testBars("AAPL", start, 3)))

	// Re-append the middle timestamp with a new close: last write wins,
	// row count unchanged.
	repl := testBars("AAPL", start.Add(time.Minute), 1)
	repl[0].Close = 99
	require.NoError(t, s.Append(ctx, key, repl))

	got, err := s.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 99.0, got[1].Close)
}

func TestMemoryStoreExistsListDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	k1 := models.BarsKey("binance", "BTCUSDT", timeframe.Minute)
	k2 := models.BarsKey("binance", "ETHUSDT", timeframe.Minute)
	k3 := models.BarsKey("polygon", "AAPL", timeframe.Minute)

	for _, k := range []models.StorageKey{k1, k2, k3} {
		require.NoError(t, s.Append(ctx, k, testBars("X", start, 1)))
	}

	ok, err := s.Exists(ctx, k1)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := s.ListKeys(ctx, "binance/")
	require.NoError(t, err)
	assert.Equal(t, []models.StorageKey{k1, k2}, keys)

	require.NoError(t, s.Delete(ctx, k1))
	ok, err = s.Exists(ctx, k1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDateRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	key := models.BarsKey("fake", "AAPL", timeframe.Minute)

	first, last, err := s.DateRange(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.IsZero())
	assert.True(t, last.IsZero())

	require.NoError(t, s.Append(ctx, key, testBars("AAPL", start, 10)))
	first, last, err = s.DateRange(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.Equal(start))
	assert.True(t, last.Equal(start.Add(9*time.Minute)))
}
