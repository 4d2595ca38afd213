package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
)

func TestAggregateEmptyInput(t *testing.T) {
	_, err := Aggregate(nil, timeframe.MustParse("5m"))
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	_, err = Aggregate([]models.Bar{}, timeframe.Minute)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestAggregateMinuteIdentity(t *testing.T) {
	series := minuteBars("fake", "BTCUSDT", mustUTC(2024, 5, 6, 9, 0), 7)

	out, err := Aggregate(series, timeframe.Minute)
	require.NoError(t, err)
	assert.Equal(t, series, out)
}

func TestAggregateFourMinuteGroup(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := []models.Bar{
		{Symbol: "AAPL", Timestamp: start, Open: 10, High: 10.5, Low: 9.8, Close: 10, Volume: 5},
		{Symbol: "AAPL", Timestamp: start.Add(1 * time.Minute), Open: 10, High: 11.2, Low: 10, Close: 11, Volume: 5},
		{Symbol: "AAPL", Timestamp: start.Add(2 * time.Minute), Open: 11, High: 11, Low: 8.9, Close: 9, Volume: 5},
		{Symbol: "AAPL", Timestamp: start.Add(3 * time.Minute), Open: 9, High: 12.1, Low: 9, Close: 12, Volume: 5},
	}

	out, err := Aggregate(series, timeframe.MustParse("4m"))
	require.NoError(t, err)
	require.Len(t, out, 1)

	b := out[0]
	assert.True(t, b.Timestamp.Equal(start))
	assert.Equal(t, 10.0, b.Open)
	assert.Equal(t, 12.1, b.High)
	assert.Equal(t, 8.9, b.Low)
	assert.Equal(t, 12.0, b.Close)
	assert.Equal(t, 20.0, b.Volume)
}

func TestAggregatePartialGroups(t *testing.T) {
	// 6 minutes into 4m frames: full first group, 2-minute second group.
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 6)

	out, err := Aggregate(series, timeframe.MustParse("4m"))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.True(t, out[0].Timestamp.Equal(start))
	assert.Equal(t, 20.0, out[0].Volume)

	assert.True(t, out[1].Timestamp.Equal(start.Add(4*time.Minute)))
	assert.Equal(t, 10.0, out[1].Volume)
	assert.Equal(t, series[4].Open, out[1].Open)
	assert.Equal(t, series[5].Close, out[1].Close)
}

func TestAggregateWallClockAnchoring(t *testing.T) {
	// A series starting mid-period lands on the wall-clock boundary, not
	// on its own first timestamp.
	series := minuteBars("fake", "AAPL", mustUTC(2024, 5, 6, 10, 3), 5)

	out, err := Aggregate(series, timeframe.MustParse("4h"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Timestamp.Equal(mustUTC(2024, 5, 6, 8, 0)))
}

func TestAggregateDeterministic(t *testing.T) {
	series := minuteBars("fake", "AAPL", mustUTC(2024, 5, 6, 0, 0), 240)

	a, err := Aggregate(series, timeframe.MustParse("1h"))
	require.NoError(t, err)
	b, err := Aggregate(series, timeframe.MustParse("60m"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
