package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BarFlow/internal/domain/models"
	"BarFlow/internal/timeframe"
)

func window(start time.Time, minutes int) models.Window {
	return models.Window{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func dropMinutes(series []models.Bar, at ...time.Time) []models.Bar {
	drop := make(map[int64]struct{}, len(at))
	for _, ts := range at {
		drop[ts.Unix()] = struct{}{}
	}
	out := series[:0:0]
	for _, b := range series {
		if _, ok := drop[b.Timestamp.Unix()]; !ok {
			out = append(out, b)
		}
	}
	return out
}

func TestDetectGapsSingleMissingMinute(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 10)
	series = dropMinutes(series, start.Add(4*time.Minute))

	gaps := DetectGaps(series, timeframe.Minute, window(start, 10))
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Start.Equal(start.Add(4*time.Minute)))
	assert.True(t, gaps[0].End.Equal(start.Add(5*time.Minute)))
}

func TestDetectGapsCollapsesRuns(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 10)
	series = dropMinutes(series,
		start.Add(2*time.Minute),
		start.Add(3*time.Minute),
		start.Add(4*time.Minute),
		start.Add(8*time.Minute),
	)

	gaps := DetectGaps(series, timeframe.Minute, window(start, 10))
	require.Len(t, gaps, 2)
	assert.True(t, gaps[0].Start.Equal(start.Add(2*time.Minute)))
	assert.True(t, gaps[0].End.Equal(start.Add(5*time.Minute)))
	assert.True(t, gaps[1].Start.Equal(start.Add(8*time.Minute)))
	assert.True(t, gaps[1].End.Equal(start.Add(9*time.Minute)))
}

func TestDetectGapsCompleteSeries(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 10)
	assert.Empty(t, DetectGaps(series, timeframe.Minute, window(start, 10)))
}

func TestDetectGapsEmptySeries(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	w := window(start, 10)

	gaps := DetectGaps(nil, timeframe.Minute, w)
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Start.Equal(w.Start))
	assert.True(t, gaps[0].End.Equal(w.End))
}

func TestDetectGapsAtWindowEdges(t *testing.T) {
	start := mustUTC(2024, 5, 6, 9, 0)
	series := minuteBars("fake", "AAPL", start, 10)
	series = dropMinutes(series, start, start.Add(9*time.Minute))

	gaps := DetectGaps(series, timeframe.Minute, window(start, 10))
	require.Len(t, gaps, 2)
	assert.True(t, gaps[0].Start.Equal(start))
	assert.True(t, gaps[1].End.Equal(start.Add(10*time.Minute)))
}

func TestDetectGapsHigherStep(t *testing.T) {
	// 4h boundaries across one day with the 08:00 bar missing.
	day := mustUTC(2024, 5, 6, 0, 0)
	var series []models.Bar
	for _, hh := range []int{0, 4, 12, 16, 20} {
		series = append(series, models.Bar{Symbol: "AAPL", Timestamp: day.Add(time.Duration(hh) * time.Hour), Close: 1})
	}

	gaps := DetectGaps(series, timeframe.MustParse("4h"), models.Window{Start: day, End: day.AddDate(0, 0, 1)})
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Start.Equal(day.Add(8*time.Hour)))
	assert.True(t, gaps[0].End.Equal(day.Add(12*time.Hour)))
}

func TestDetectGapsUnalignedWindowStart(t *testing.T) {
	// The walk starts at the aligned boundary at or before w.Start.
	start := mustUTC(2024, 5, 6, 9, 2)
	gaps := DetectGaps(nil, timeframe.MustParse("5m"), window(start, 10))
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].Start.Equal(mustUTC(2024, 5, 6, 9, 0)))
}
