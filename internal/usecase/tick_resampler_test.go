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

func newResampler(store *repository.MemoryBarStore) *TickResampler {
	return NewTickResampler("ticks", "binance", store, nopMetrics{}, applogger.Nop())
}

func TestTickResamplerFoldsMinute(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBarStore()
	r := newResampler(store)
	minute := mustUTC(2024, 5, 6, 9, 0)

	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(5*time.Second), 100, 1))
	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(20*time.Second), 103, 2))
	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(40*time.Second), 99, 1))
	// Crossing into the next minute flushes the previous one.
	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(61*time.Second), 101, 1))

	key := models.BarsKey("binance", "BTCUSDT", timeframe.Minute)
	bars, err := store.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	require.Len(t, bars, 1)

	b := bars[0]
	assert.True(t, b.Timestamp.Equal(minute))
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 103.0, b.High)
	assert.Equal(t, 99.0, b.Low)
	assert.Equal(t, 99.0, b.Close)
	assert.Equal(t, 4.0, b.Volume)
}

func TestTickResamplerDropsLateTicks(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBarStore()
	r := newResampler(store)
	minute := mustUTC(2024, 5, 6, 9, 0)

	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(65*time.Second), 100, 1))
	// This tick belongs to the already-passed minute and must not reopen it.
	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(10*time.Second), 500, 9))
	require.NoError(t, r.Flush(ctx))

	key := models.BarsKey("binance", "BTCUSDT", timeframe.Minute)
	bars, err := store.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 1.0, bars[0].Volume)
}

func TestTickResamplerFlushPersistsOpenBars(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBarStore()
	r := newResampler(store)
	minute := mustUTC(2024, 5, 6, 9, 0)

	require.NoError(t, r.Ingest(ctx, "BTCUSDT", minute.Add(time.Second), 100, 1))
	require.NoError(t, r.Ingest(ctx, "ETHUSDT", minute.Add(2*time.Second), 50, 2))

	keys, err := store.ListKeys(ctx, "binance/")
	require.NoError(t, err)
	assert.Empty(t, keys, "open minutes are not persisted yet")

	require.NoError(t, r.Flush(ctx))
	keys, err = store.ListKeys(ctx, "binance/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestTickResamplerHandlesKafkaPayload(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryBarStore()
	r := newResampler(store)

	assert.Equal(t, "ticks", r.Topic())
	// Millisecond timestamps are normalized to seconds.
	payload := []byte(`{"symbol":"BTCUSDT","t":1714986005000,"p":100.5,"v":2}`)
	require.NoError(t, r.Handle(ctx, payload))
	require.NoError(t, r.Flush(ctx))

	key := models.BarsKey("binance", "BTCUSDT", timeframe.Minute)
	bars, err := store.Read(ctx, key, models.Window{})
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(time.Unix(1714986005, 0).UTC().Truncate(time.Minute)))
}

func TestTickResamplerRejectsGarbage(t *testing.T) {
	r := newResampler(repository.NewMemoryBarStore())
	assert.Error(t, r.Handle(context.Background(), []byte("not json")))
}
